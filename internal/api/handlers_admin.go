package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veridian/aigov/internal/auth"
	"github.com/veridian/aigov/internal/notifications"
	"github.com/veridian/aigov/internal/reports"
	"github.com/veridian/aigov/internal/scheduler"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	token, err := s.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	respondJSON(w, http.StatusOK, token)
}

func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": claims.UserID,
		"email":   claims.Email,
		"role":    claims.Role,
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userStore.ListUsers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	if req.Role == "" {
		req.Role = auth.RoleAuditor
	}
	switch req.Role {
	case auth.RoleAdmin, auth.RoleComplianceOfficer, auth.RoleAuditor:
	default:
		respondError(w, http.StatusBadRequest, "validation_error", "Unknown role: "+string(req.Role))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "hash_error", err.Error())
		return
	}

	user := &auth.User{
		Email:    req.Email,
		Name:     req.Name,
		Password: hash,
		Role:     req.Role,
	}

	if err := s.userStore.CreateUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusCreated, user)
}

// --- Scheduled jobs ---

func (s *Server) listScheduledJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.schedulerStore.ListJobs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, jobs)
}

func (s *Server) createScheduledJob(w http.ResponseWriter, r *http.Request) {
	var job scheduler.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if job.Name == "" || job.Schedule == "" || job.JobType == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "name, schedule and job_type are required")
		return
	}

	if err := s.scheduler.AddJob(r.Context(), &job); err != nil {
		respondError(w, http.StatusInternalServerError, "scheduler_error", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, job)
}

func (s *Server) getScheduledJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.schedulerStore.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "not_found", "Job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

func (s *Server) updateScheduledJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	existing, err := s.schedulerStore.GetJob(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "not_found", "Job not found")
		return
	}

	var job scheduler.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	job.ID = jobID

	if err := s.scheduler.UpdateJob(r.Context(), &job); err != nil {
		respondError(w, http.StatusInternalServerError, "scheduler_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, job)
}

func (s *Server) deleteScheduledJob(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.DeleteJob(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		respondError(w, http.StatusInternalServerError, "scheduler_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) runScheduledJobNow(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.RunJobNow(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		respondError(w, http.StatusInternalServerError, "scheduler_error", err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) getJobExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	execs, err := s.schedulerStore.GetJobExecutions(r.Context(), chi.URLParam(r, "jobID"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, execs)
}

// --- Reports ---

func (s *Server) getReportTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, []map[string]interface{}{
		{
			"type":        reports.ReportTypeSystem,
			"name":        "System Compliance Report",
			"description": "Risk score breakdown, assessments and governance tasks for one AI system",
			"formats":     []reports.ReportFormat{reports.FormatPDF, reports.FormatCSV, reports.FormatJSON},
			"requires":    []string{"system_id"},
		},
		{
			"type":        reports.ReportTypeTasks,
			"name":        "Governance Tasks Report",
			"description": "Open, blocking and completed governance tasks for one AI system",
			"formats":     []reports.ReportFormat{reports.FormatPDF, reports.FormatCSV, reports.FormatJSON},
			"requires":    []string{"system_id"},
		},
		{
			"type":        reports.ReportTypeExecutive,
			"name":        "Executive Summary",
			"description": "Portfolio-wide risk posture across all registered AI systems",
			"formats":     []reports.ReportFormat{reports.FormatPDF, reports.FormatCSV, reports.FormatJSON},
			"requires":    []string{},
		},
	})
}

type generateReportRequest struct {
	Type     reports.ReportType   `json:"type"`
	Format   reports.ReportFormat `json:"format"`
	Title    string               `json:"title"`
	SystemID string               `json:"system_id"`
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "type is required")
		return
	}
	if req.Format == "" {
		req.Format = reports.FormatPDF
	}

	reportReq := &reports.ReportRequest{
		Type:   req.Type,
		Format: req.Format,
		Title:  req.Title,
	}

	if req.Type != reports.ReportTypeExecutive {
		if req.SystemID == "" {
			respondError(w, http.StatusBadRequest, "validation_error", "system_id is required for this report type")
			return
		}
		id, err := parseUUID(req.SystemID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
			return
		}
		reportReq.SystemID = id
	}

	report, err := s.reportGenerator.Generate(r.Context(), reportReq)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "report_error", err.Error())
		return
	}

	w.Header().Set("Content-Type", report.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Data)
}

func (s *Server) streamCSVReport(w http.ResponseWriter, r *http.Request) {
	reportType := reports.ReportType(r.URL.Query().Get("type"))
	if reportType == "" {
		reportType = reports.ReportTypeExecutive
	}

	req := &reports.ReportRequest{
		Type:   reportType,
		Format: reports.FormatCSV,
	}

	if sid := r.URL.Query().Get("system_id"); sid != "" {
		id, err := parseUUID(sid)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
			return
		}
		req.SystemID = id
	}

	filename := fmt.Sprintf("%s_report_%s.csv", reportType, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := s.reportGenerator.StreamCSV(r.Context(), w, req); err != nil {
		s.logger.Error("streaming report failed", "type", reportType, "error", err)
	}
}

// --- Notification settings ---

type notificationSettings struct {
	Slack struct {
		Enabled     bool   `json:"enabled"`
		WebhookURL  string `json:"webhook_url,omitempty"`
		Channel     string `json:"channel"`
		MinSeverity string `json:"min_severity"`
	} `json:"slack"`
	Email struct {
		Enabled     bool     `json:"enabled"`
		SMTPHost    string   `json:"smtp_host"`
		SMTPPort    int      `json:"smtp_port"`
		From        string   `json:"from"`
		To          []string `json:"to"`
		MinSeverity string   `json:"min_severity"`
	} `json:"email"`
}

func (s *Server) getNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var settings notificationSettings
	settings.Slack.Enabled = s.notificationConfig.Slack.Enabled
	settings.Slack.Channel = s.notificationConfig.Slack.Channel
	settings.Slack.MinSeverity = string(s.notificationConfig.Slack.MinSeverity)
	settings.Email.Enabled = s.notificationConfig.Email.Enabled
	settings.Email.SMTPHost = s.notificationConfig.Email.SMTPHost
	settings.Email.SMTPPort = s.notificationConfig.Email.SMTPPort
	settings.Email.From = s.notificationConfig.Email.From
	settings.Email.To = s.notificationConfig.Email.To
	settings.Email.MinSeverity = string(s.notificationConfig.Email.MinSeverity)

	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) updateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var settings notificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	cfg := s.notificationConfig
	cfg.Slack.Enabled = settings.Slack.Enabled
	if settings.Slack.WebhookURL != "" {
		cfg.Slack.WebhookURL = settings.Slack.WebhookURL
	}
	if settings.Slack.Channel != "" {
		cfg.Slack.Channel = settings.Slack.Channel
	}
	if settings.Slack.MinSeverity != "" {
		cfg.Slack.MinSeverity = notifications.Severity(settings.Slack.MinSeverity)
	}

	cfg.Email.Enabled = settings.Email.Enabled
	if settings.Email.SMTPHost != "" {
		cfg.Email.SMTPHost = settings.Email.SMTPHost
	}
	if settings.Email.SMTPPort != 0 {
		cfg.Email.SMTPPort = settings.Email.SMTPPort
	}
	if settings.Email.From != "" {
		cfg.Email.From = settings.Email.From
	}
	if len(settings.Email.To) > 0 {
		cfg.Email.To = settings.Email.To
	}
	if settings.Email.MinSeverity != "" {
		cfg.Email.MinSeverity = notifications.Severity(settings.Email.MinSeverity)
	}

	s.notificationConfig = cfg
	s.notificationService = notifications.NewService(cfg, s.logger)

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) testNotification(w http.ResponseWriter, r *http.Request) {
	notif := &notifications.Notification{
		Type:     notifications.NotifyBlockingTask,
		Title:    "Test Notification",
		Message:  "Notification channels are configured correctly.",
		Severity: notifications.SeverityCritical,
		Data: map[string]interface{}{
			"test": true,
		},
	}

	if err := s.notificationService.Send(r.Context(), notif); err != nil {
		respondError(w, http.StatusBadGateway, "notification_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
