package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/lifecycle"
	"github.com/veridian/aigov/internal/models"
	"github.com/veridian/aigov/internal/queue"
)

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// evaluateSystemJob re-runs governance evaluation for one system, through
// the queue when Redis is up and inline otherwise.
func (s *Server) evaluateSystemJob(ctx context.Context, systemID uuid.UUID, trigger string) error {
	if s.queue != nil {
		return s.queue.EnqueueEvalJob(ctx, &queue.Job{
			SystemID: systemID,
			Trigger:  trigger,
		})
	}
	_, err := s.evaluator.EvaluateSystem(ctx, systemID)
	return err
}

func (s *Server) listSystems(w http.ResponseWriter, r *http.Request) {
	var stage *models.LifecycleStage
	if st := r.URL.Query().Get("stage"); st != "" {
		stg := models.LifecycleStage(strings.ToLower(st))
		if !lifecycle.IsValidStage(stg) {
			respondError(w, http.StatusBadRequest, "invalid_stage", "Unknown lifecycle stage: "+st)
			return
		}
		stage = &stg
	}

	systems, err := s.store.ListSystems(r.Context(), stage)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, systems)
}

type createSystemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Sector      string `json:"sector"`
	Owner       string `json:"owner"`
}

func (s *Server) createSystem(w http.ResponseWriter, r *http.Request) {
	var req createSystemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	system := &models.AISystem{
		Name:           req.Name,
		Description:    req.Description,
		Sector:         req.Sector,
		Owner:          req.Owner,
		LifecycleStage: models.StageDraft,
	}

	if err := s.store.CreateSystem(r.Context(), system); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, system)
}

func (s *Server) getSystem(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	system, err := s.store.GetSystem(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if system == nil {
		respondError(w, http.StatusNotFound, "not_found", "System not found")
		return
	}

	respondJSON(w, http.StatusOK, system)
}

type transitionRequest struct {
	TargetStage models.LifecycleStage `json:"target_stage"`
}

type transitionResponse struct {
	System   *models.AISystem           `json:"system,omitempty"`
	Valid    bool                       `json:"valid"`
	Reason   string                     `json:"reason,omitempty"`
	Warnings []string                   `json:"warnings,omitempty"`
	Snapshot *models.ComplianceSnapshot `json:"snapshot,omitempty"`
}

func (s *Server) transitionSystem(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	target := models.LifecycleStage(strings.ToLower(string(req.TargetStage)))
	if !lifecycle.IsValidStage(target) {
		respondError(w, http.StatusBadRequest, "invalid_stage", "Unknown lifecycle stage: "+string(req.TargetStage))
		return
	}

	system, err := s.store.GetSystem(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if system == nil {
		respondError(w, http.StatusNotFound, "not_found", "System not found")
		return
	}

	snapshot, err := s.store.BuildSnapshot(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	summary, err := s.store.RiskSummary(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	result := lifecycle.ValidateTransition(system.LifecycleStage, target, snapshot, summary)
	if !result.Valid {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = s.notificationService.NotifyTransitionBlocked(ctx, system, target, result.Reason)
		}()

		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(apiResponse{
			Success: false,
			Data: transitionResponse{
				Valid:    false,
				Reason:   result.Reason,
				Warnings: result.Warnings,
				Snapshot: snapshot,
			},
			Error: &apiError{
				Code:    "transition_blocked",
				Message: result.Reason,
			},
		})
		return
	}

	if err := s.store.UpdateSystemStage(r.Context(), id, target); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	system.LifecycleStage = target

	if err := s.evaluateSystemJob(r.Context(), id, queue.TriggerTransition); err != nil {
		s.logger.Error("post-transition evaluation failed", "system_id", id, "error", err)
	}

	respondJSON(w, http.StatusOK, transitionResponse{
		System:   system,
		Valid:    true,
		Warnings: result.Warnings,
	})
}

func (s *Server) getStageConstraints(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	system, err := s.store.GetSystem(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if system == nil {
		respondError(w, http.StatusNotFound, "not_found", "System not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stage":       system.LifecycleStage,
		"constraints": lifecycle.StageConstraints(system.LifecycleStage),
	})
}

func (s *Server) getRiskScore(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	system, err := s.store.GetSystem(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if system == nil {
		respondError(w, http.StatusNotFound, "not_found", "System not found")
		return
	}

	snapshot, err := s.store.BuildSnapshot(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	assessments, err := s.store.ListAssessments(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, s.scorer.Calculate(snapshot, assessments))
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	snapshot, err := s.store.BuildSnapshot(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if snapshot == nil {
		respondError(w, http.StatusNotFound, "not_found", "No compliance record for system")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) evaluateSystem(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	system, err := s.store.GetSystem(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if system == nil {
		respondError(w, http.StatusNotFound, "not_found", "System not found")
		return
	}

	if s.queue != nil {
		job := &queue.Job{SystemID: id, Trigger: queue.TriggerManual}
		if err := s.queue.EnqueueEvalJob(r.Context(), job); err != nil {
			respondError(w, http.StatusInternalServerError, "queue_error", err.Error())
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"status": "queued",
			"job_id": job.ID,
		})
		return
	}

	tasks, err := s.evaluator.EvaluateSystem(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "evaluation_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) getComplianceRecords(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	eu, err := s.store.GetEURecord(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	uk, err := s.store.GetUKRecord(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	mas, err := s.store.GetMASRecord(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"eu_ai_act":       eu,
		"uk_ai_framework": uk,
		"mas_feat":        mas,
	})
}

func (s *Server) upsertEURecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var record models.EUComplianceRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	record.AISystemID = id

	if err := s.store.UpsertEURecord(r.Context(), &record); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	if err := s.evaluateSystemJob(r.Context(), id, queue.TriggerComplianceUpdate); err != nil {
		s.logger.Error("post-update evaluation failed", "system_id", id, "error", err)
	}

	respondJSON(w, http.StatusOK, record)
}

func (s *Server) upsertUKRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var record models.UKComplianceRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	record.AISystemID = id

	if err := s.store.UpsertUKRecord(r.Context(), &record); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	if err := s.evaluateSystemJob(r.Context(), id, queue.TriggerComplianceUpdate); err != nil {
		s.logger.Error("post-update evaluation failed", "system_id", id, "error", err)
	}

	respondJSON(w, http.StatusOK, record)
}

func (s *Server) upsertMASRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var record models.MASComplianceRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	record.AISystemID = id

	if err := s.store.UpsertMASRecord(r.Context(), &record); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	if err := s.evaluateSystemJob(r.Context(), id, queue.TriggerComplianceUpdate); err != nil {
		s.logger.Error("post-update evaluation failed", "system_id", id, "error", err)
	}

	respondJSON(w, http.StatusOK, record)
}

func (s *Server) listAssessments(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	assessments, err := s.store.ListAssessments(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, assessments)
}

type createAssessmentRequest struct {
	Category models.AssessmentCategory `json:"category"`
	Severity models.AssessmentSeverity `json:"severity"`
	Summary  string                    `json:"summary"`
}

func (s *Server) createAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var req createAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Category == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "category is required")
		return
	}

	system, err := s.store.GetSystem(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if system == nil {
		respondError(w, http.StatusNotFound, "not_found", "System not found")
		return
	}

	if !lifecycle.CanCreateRiskAssessmentInStage(system.LifecycleStage) {
		respondError(w, http.StatusConflict, "stage_constraint",
			"Risk assessments cannot be created for retired systems")
		return
	}

	assessment := &models.RiskAssessment{
		AISystemID: id,
		Category:   req.Category,
		Status:     models.AssessmentDraft,
		Severity:   req.Severity,
		Summary:    req.Summary,
	}

	if err := s.store.CreateAssessment(r.Context(), assessment); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, assessment)
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "assessmentID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid assessment ID")
		return
	}

	assessment, err := s.store.GetAssessment(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if assessment == nil {
		respondError(w, http.StatusNotFound, "not_found", "Assessment not found")
		return
	}

	respondJSON(w, http.StatusOK, assessment)
}

type updateAssessmentRequest struct {
	Status    models.AssessmentStatus   `json:"status,omitempty"`
	Severity  models.AssessmentSeverity `json:"severity,omitempty"`
	Mitigated *bool                     `json:"mitigated,omitempty"`
	Summary   *string                   `json:"summary,omitempty"`
}

func (s *Server) updateAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "assessmentID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid assessment ID")
		return
	}

	var req updateAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	assessment, err := s.store.GetAssessment(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if assessment == nil {
		respondError(w, http.StatusNotFound, "not_found", "Assessment not found")
		return
	}

	system, err := s.store.GetSystem(r.Context(), assessment.AISystemID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if system == nil {
		respondError(w, http.StatusNotFound, "not_found", "System not found")
		return
	}

	if !lifecycle.CanEditRiskAssessment(system.LifecycleStage, assessment.Status) {
		respondError(w, http.StatusConflict, "stage_constraint",
			"Assessment is not editable in the system's current lifecycle stage")
		return
	}

	approved := false
	if req.Status != "" {
		if req.Status == models.AssessmentApproved && assessment.Status != models.AssessmentApproved {
			approved = true
		}
		assessment.Status = req.Status
	}
	if req.Severity != "" {
		assessment.Severity = req.Severity
	}
	if req.Mitigated != nil {
		assessment.Mitigated = *req.Mitigated
	}
	if req.Summary != nil {
		assessment.Summary = *req.Summary
	}

	if err := s.store.UpdateAssessment(r.Context(), assessment); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	if approved {
		if err := s.evaluateSystemJob(r.Context(), assessment.AISystemID, queue.TriggerAssessmentApproved); err != nil {
			s.logger.Error("post-approval evaluation failed",
				"system_id", assessment.AISystemID, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, assessment)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var tasks []models.GovernanceTask
	if r.URL.Query().Get("blocking") == "true" {
		tasks, err = s.taskStore.ListBlockingTasks(r.Context(), id)
	} else {
		tasks, err = s.taskStore.ListTasks(r.Context(), id)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, tasks)
}

type completeTaskRequest struct {
	Regulation   models.Regulation `json:"regulation"`
	Title        string            `json:"title"`
	EvidenceLink string            `json:"evidence_link"`
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var req completeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Regulation == "" || req.Title == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "regulation and title are required")
		return
	}

	if err := s.taskStore.CompleteTask(r.Context(), id, req.Regulation, req.Title, req.EvidenceLink); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type createDocumentRequest struct {
	Regulation models.Regulation `json:"regulation"`
	Title      string            `json:"title"`
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "systemID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid system ID")
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if req.Regulation == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "regulation is required")
		return
	}
	if req.Title == "" {
		req.Title = "Compliance documentation"
	}

	doc := &models.ComplianceDocument{
		AISystemID: id,
		Regulation: req.Regulation,
		Title:      req.Title,
		Status:     models.DocumentCurrent,
	}

	if err := s.store.CreateDocument(r.Context(), doc); err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	// New documentation can clear the documentation task.
	if err := s.evaluateSystemJob(r.Context(), id, queue.TriggerComplianceUpdate); err != nil {
		s.logger.Error("post-document evaluation failed", "system_id", id, "error", err)
	}

	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) getDashboardSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.GetDashboardCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "db_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, counts)
}

func (s *Server) getQueueStats(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
		})
		return
	}

	stats, err := s.queue.GetQueueStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "queue_error", err.Error())
		return
	}

	workers, _ := s.queue.GetActiveWorkers(r.Context(), 30*time.Second)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"jobs":    stats,
		"workers": workers,
	})
}
