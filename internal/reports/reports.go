package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/models"
	"github.com/veridian/aigov/internal/scoring"
)

type ReportType string

const (
	ReportTypeSystem    ReportType = "system"
	ReportTypeTasks     ReportType = "tasks"
	ReportTypeExecutive ReportType = "executive"
)

type ReportFormat string

const (
	FormatCSV  ReportFormat = "csv"
	FormatPDF  ReportFormat = "pdf"
	FormatJSON ReportFormat = "json"
)

type ReportRequest struct {
	Type     ReportType
	Format   ReportFormat
	Title    string
	SystemID uuid.UUID
}

type Report struct {
	ID          string
	Type        ReportType
	Format      ReportFormat
	Title       string
	GeneratedAt time.Time
	GeneratedBy string
	Data        []byte
	Filename    string
	MimeType    string
}

// SystemReport bundles everything the per-system compliance report
// renders: the registered system, its resolved regulation snapshot, the
// current risk score and the open governance work.
type SystemReport struct {
	System      *models.AISystem
	Snapshot    *models.ComplianceSnapshot
	Score       *scoring.Result
	Assessments []models.RiskAssessment
	Tasks       []models.GovernanceTask
}

// SystemSummary is one row of the portfolio-level report.
type SystemSummary struct {
	ID             uuid.UUID
	Name           string
	Stage          string
	Regulation     string
	RiskTier       string
	RiskLevel      string
	CompositeScore float64
	OpenTasks      int
	BlockingTasks  int
}

type PortfolioStats struct {
	TotalSystems    int
	ByStage         map[string]int
	ByRiskLevel     map[string]int
	OpenTasks       int
	BlockingTasks   int
	CompletedTasks  int
	UngovernedCount int // systems with no compliance record
}

type DataProvider interface {
	GetSystemReport(ctx context.Context, systemID uuid.UUID) (*SystemReport, error)
	ListSystemSummaries(ctx context.Context) ([]*SystemSummary, error)
	GetPortfolioStats(ctx context.Context) (*PortfolioStats, error)
}

type Generator struct {
	provider DataProvider
}

func NewGenerator(provider DataProvider) *Generator {
	return &Generator{provider: provider}
}

func (g *Generator) Generate(ctx context.Context, req *ReportRequest) (*Report, error) {
	switch req.Type {
	case ReportTypeSystem:
		return g.generateSystemReport(ctx, req)
	case ReportTypeTasks:
		return g.generateTasksReport(ctx, req)
	case ReportTypeExecutive:
		return g.generateExecutiveReport(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported report type: %s", req.Type)
	}
}

func (g *Generator) generateSystemReport(ctx context.Context, req *ReportRequest) (*Report, error) {
	sr, err := g.provider.GetSystemReport(ctx, req.SystemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch system report data: %w", err)
	}
	if sr == nil || sr.System == nil {
		return nil, fmt.Errorf("system not found: %s", req.SystemID)
	}

	if req.Title == "" {
		req.Title = fmt.Sprintf("Compliance Report: %s", sr.System.Name)
	}

	var data []byte
	var filename string
	var mimeType string

	switch req.Format {
	case FormatCSV:
		data, err = g.systemToCSV(sr)
		filename = fmt.Sprintf("system_%s.csv", time.Now().Format("20060102_150405"))
		mimeType = "text/csv"
	case FormatPDF:
		data, err = g.systemToPDF(sr, req.Title)
		filename = fmt.Sprintf("system_%s.pdf", time.Now().Format("20060102_150405"))
		mimeType = "application/pdf"
	case FormatJSON:
		data, err = json.MarshalIndent(sr, "", "  ")
		filename = fmt.Sprintf("system_%s.json", time.Now().Format("20060102_150405"))
		mimeType = "application/json"
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}

	if err != nil {
		return nil, err
	}

	return &Report{
		Type:        req.Type,
		Format:      req.Format,
		Title:       req.Title,
		GeneratedAt: time.Now(),
		Data:        data,
		Filename:    filename,
		MimeType:    mimeType,
	}, nil
}

func (g *Generator) systemToCSV(sr *SystemReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"System Compliance Report"})
	_ = w.Write([]string{"System", sr.System.Name})
	_ = w.Write([]string{"Stage", string(sr.System.LifecycleStage)})
	if sr.Snapshot != nil {
		_ = w.Write([]string{"Regulation", string(sr.Snapshot.Regulation)})
		_ = w.Write([]string{"Risk Tier", string(sr.Snapshot.RiskTier)})
		_ = w.Write([]string{"Compliance Status", string(sr.Snapshot.ComplianceStatus)})
	}
	_ = w.Write([]string{""})

	if sr.Score != nil {
		_ = w.Write([]string{"Dimension", "Score"})
		_ = w.Write([]string{"Technical", fmt.Sprintf("%d", sr.Score.Scores.Technical)})
		_ = w.Write([]string{"Operational", fmt.Sprintf("%d", sr.Score.Scores.Operational)})
		_ = w.Write([]string{"Legal/Regulatory", fmt.Sprintf("%d", sr.Score.Scores.LegalRegulatory)})
		_ = w.Write([]string{"Ethical/Societal", fmt.Sprintf("%d", sr.Score.Scores.EthicalSocietal)})
		_ = w.Write([]string{"Business", fmt.Sprintf("%d", sr.Score.Scores.Business)})
		_ = w.Write([]string{"Composite", fmt.Sprintf("%.2f", sr.Score.CompositeScore)})
		_ = w.Write([]string{"Overall Risk Level", string(sr.Score.OverallRiskLevel)})
		_ = w.Write([]string{""})
	}

	_ = w.Write([]string{"Task", "Regulation", "Status", "Blocking", "Created At"})
	for _, t := range sr.Tasks {
		_ = w.Write([]string{
			t.Title,
			string(t.Regulation),
			string(t.Status),
			fmt.Sprintf("%t", t.Blocking),
			t.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func (g *Generator) systemToPDF(sr *SystemReport, title string) ([]byte, error) {
	pdf := NewPDFReport(title)

	pdf.AddSection("System Overview")
	pdf.AddParagraph(fmt.Sprintf("%s (%s stage, sector: %s)",
		sr.System.Name, sr.System.LifecycleStage, sr.System.Sector))
	if sr.Snapshot != nil {
		pdf.AddParagraph(fmt.Sprintf("Governed under %s. Risk tier %s, compliance status %s.",
			sr.Snapshot.Regulation, sr.Snapshot.RiskTier, sr.Snapshot.ComplianceStatus))
	} else {
		pdf.AddParagraph("No compliance record on file for this system.")
	}

	if sr.Score != nil {
		pdf.AddSection("Risk Dimensions")
		pdf.AddChart("", map[string]int{
			"Technical":        sr.Score.Scores.Technical,
			"Operational":      sr.Score.Scores.Operational,
			"Legal/Regulatory": sr.Score.Scores.LegalRegulatory,
			"Ethical/Societal": sr.Score.Scores.EthicalSocietal,
			"Business":         sr.Score.Scores.Business,
		})
		pdf.AddParagraph(fmt.Sprintf("Composite score %.2f (%s).",
			sr.Score.CompositeScore, sr.Score.OverallRiskLevel))

		for _, dim := range scoring.Dimensions {
			detail, ok := sr.Score.Details[dim]
			if !ok || len(detail.ComplianceGaps) == 0 {
				continue
			}
			pdf.AddSection(fmt.Sprintf("Gaps: %s", dim))
			for _, gap := range detail.ComplianceGaps {
				pdf.AddParagraph("- " + gap)
			}
		}
	}

	pdf.AddSection("Governance Tasks")
	headers := []string{"Task", "Regulation", "Status", "Blocking"}
	rows := make([][]string, len(sr.Tasks))
	for i, t := range sr.Tasks {
		rows[i] = []string{
			truncate(t.Title, 40),
			string(t.Regulation),
			string(t.Status),
			fmt.Sprintf("%t", t.Blocking),
		}
	}
	pdf.AddTable(headers, rows)

	if len(sr.Assessments) > 0 {
		pdf.AddSection("Risk Assessments")
		aHeaders := []string{"Category", "Status", "Severity", "Mitigated"}
		aRows := make([][]string, len(sr.Assessments))
		for i, a := range sr.Assessments {
			aRows[i] = []string{
				string(a.Category),
				string(a.Status),
				string(a.Severity),
				fmt.Sprintf("%t", a.Mitigated),
			}
		}
		pdf.AddTable(aHeaders, aRows)
	}

	return pdf.Output()
}

func (g *Generator) generateTasksReport(ctx context.Context, req *ReportRequest) (*Report, error) {
	sr, err := g.provider.GetSystemReport(ctx, req.SystemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	if sr == nil || sr.System == nil {
		return nil, fmt.Errorf("system not found: %s", req.SystemID)
	}

	if req.Title == "" {
		req.Title = fmt.Sprintf("Governance Tasks: %s", sr.System.Name)
	}

	var data []byte
	var filename string
	var mimeType string

	switch req.Format {
	case FormatCSV:
		data, err = g.tasksToCSV(sr.Tasks)
		filename = fmt.Sprintf("tasks_%s.csv", time.Now().Format("20060102_150405"))
		mimeType = "text/csv"
	case FormatPDF:
		data, err = g.tasksToPDF(sr.Tasks, req.Title)
		filename = fmt.Sprintf("tasks_%s.pdf", time.Now().Format("20060102_150405"))
		mimeType = "application/pdf"
	case FormatJSON:
		data, err = json.MarshalIndent(sr.Tasks, "", "  ")
		filename = fmt.Sprintf("tasks_%s.json", time.Now().Format("20060102_150405"))
		mimeType = "application/json"
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}

	if err != nil {
		return nil, err
	}

	return &Report{
		Type:        req.Type,
		Format:      req.Format,
		Title:       req.Title,
		GeneratedAt: time.Now(),
		Data:        data,
		Filename:    filename,
		MimeType:    mimeType,
	}, nil
}

func (g *Generator) tasksToCSV(tasks []models.GovernanceTask) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"ID", "Regulation", "Title", "Description", "Status", "Blocking",
		"Evidence", "Completed At", "Created At",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		completed := ""
		if t.CompletedAt != nil {
			completed = t.CompletedAt.Format(time.RFC3339)
		}
		row := []string{
			t.ID.String(),
			string(t.Regulation),
			t.Title,
			t.Description,
			string(t.Status),
			fmt.Sprintf("%t", t.Blocking),
			t.EvidenceLink,
			completed,
			t.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func (g *Generator) tasksToPDF(tasks []models.GovernanceTask, title string) ([]byte, error) {
	pdf := NewPDFReport(title)

	pdf.AddSection("Summary")
	summary := map[string]int{
		"Pending": 0, "Blocked": 0, "Completed": 0,
	}
	blocking := 0
	for _, t := range tasks {
		switch t.Status {
		case models.TaskPending:
			summary["Pending"]++
		case models.TaskBlocked:
			summary["Blocked"]++
		case models.TaskCompleted:
			summary["Completed"]++
		}
		if t.Blocking && t.Status != models.TaskCompleted {
			blocking++
		}
	}
	summary["Blocking Open"] = blocking
	pdf.AddSummaryTable(summary)

	pdf.AddSection("Task Detail")
	headers := []string{"Title", "Regulation", "Status", "Blocking"}
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{
			truncate(t.Title, 40),
			string(t.Regulation),
			string(t.Status),
			fmt.Sprintf("%t", t.Blocking),
		}
	}
	pdf.AddTable(headers, rows)

	return pdf.Output()
}

func (g *Generator) generateExecutiveReport(ctx context.Context, req *ReportRequest) (*Report, error) {
	stats, err := g.provider.GetPortfolioStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch portfolio stats: %w", err)
	}

	summaries, err := g.provider.ListSystemSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch system summaries: %w", err)
	}

	if req.Title == "" {
		req.Title = "AI Governance Executive Summary"
	}

	var data []byte
	var filename string
	var mimeType string

	switch req.Format {
	case FormatCSV:
		data, err = g.executiveToCSV(stats, summaries)
		filename = fmt.Sprintf("executive_%s.csv", time.Now().Format("20060102_150405"))
		mimeType = "text/csv"
	case FormatPDF:
		data, err = g.executiveToPDF(stats, summaries, req.Title)
		filename = fmt.Sprintf("executive_%s.pdf", time.Now().Format("20060102_150405"))
		mimeType = "application/pdf"
	case FormatJSON:
		data, err = json.MarshalIndent(struct {
			Stats   *PortfolioStats  `json:"stats"`
			Systems []*SystemSummary `json:"systems"`
		}{stats, summaries}, "", "  ")
		filename = fmt.Sprintf("executive_%s.json", time.Now().Format("20060102_150405"))
		mimeType = "application/json"
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}

	if err != nil {
		return nil, err
	}

	return &Report{
		Type:        req.Type,
		Format:      req.Format,
		Title:       req.Title,
		GeneratedAt: time.Now(),
		Data:        data,
		Filename:    filename,
		MimeType:    mimeType,
	}, nil
}

func (g *Generator) executiveToCSV(stats *PortfolioStats, summaries []*SystemSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"AI Governance Executive Summary"})
	_ = w.Write([]string{"Generated", time.Now().Format(time.RFC1123)})
	_ = w.Write([]string{""})

	_ = w.Write([]string{"Metric", "Value"})
	_ = w.Write([]string{"Total Systems", fmt.Sprintf("%d", stats.TotalSystems)})
	_ = w.Write([]string{"Open Tasks", fmt.Sprintf("%d", stats.OpenTasks)})
	_ = w.Write([]string{"Blocking Tasks", fmt.Sprintf("%d", stats.BlockingTasks)})
	_ = w.Write([]string{"Completed Tasks", fmt.Sprintf("%d", stats.CompletedTasks)})
	_ = w.Write([]string{"Ungoverned Systems", fmt.Sprintf("%d", stats.UngovernedCount)})
	_ = w.Write([]string{""})

	_ = w.Write([]string{"System", "Stage", "Regulation", "Risk Tier", "Risk Level", "Composite", "Open Tasks"})
	for _, s := range summaries {
		_ = w.Write([]string{
			s.Name,
			s.Stage,
			s.Regulation,
			s.RiskTier,
			s.RiskLevel,
			fmt.Sprintf("%.2f", s.CompositeScore),
			fmt.Sprintf("%d", s.OpenTasks),
		})
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func (g *Generator) executiveToPDF(stats *PortfolioStats, summaries []*SystemSummary, title string) ([]byte, error) {
	pdf := NewPDFReport(title)

	pdf.AddSection("Portfolio Summary")
	pdf.AddParagraph(fmt.Sprintf("Report generated on %s", time.Now().Format(time.RFC1123)))

	pdf.AddSection("Key Metrics")
	pdf.AddSummaryTable(map[string]int{
		"Total Systems":      stats.TotalSystems,
		"Open Tasks":         stats.OpenTasks,
		"Blocking Tasks":     stats.BlockingTasks,
		"Completed Tasks":    stats.CompletedTasks,
		"Ungoverned Systems": stats.UngovernedCount,
	})

	if len(stats.ByRiskLevel) > 0 {
		pdf.AddSection("Systems by Risk Level")
		pdf.AddChart("", stats.ByRiskLevel)
	}

	if len(stats.ByStage) > 0 {
		pdf.AddSection("Systems by Lifecycle Stage")
		pdf.AddChart("", stats.ByStage)
	}

	pdf.AddSection("Registered Systems")
	headers := []string{"System", "Stage", "Regulation", "Level", "Open Tasks"}
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			truncate(s.Name, 30),
			s.Stage,
			s.Regulation,
			s.RiskLevel,
			fmt.Sprintf("%d", s.OpenTasks),
		}
	}
	pdf.AddTable(headers, rows)

	return pdf.Output()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// StreamCSV writes a report directly to w without buffering the whole
// payload, for the HTTP export endpoints.
func (g *Generator) StreamCSV(ctx context.Context, w io.Writer, req *ReportRequest) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	switch req.Type {
	case ReportTypeTasks:
		sr, err := g.provider.GetSystemReport(ctx, req.SystemID)
		if err != nil {
			return err
		}
		if sr == nil {
			return fmt.Errorf("system not found: %s", req.SystemID)
		}

		header := []string{"ID", "Regulation", "Title", "Status", "Blocking", "Created At"}
		if err := csvWriter.Write(header); err != nil {
			return err
		}

		for _, t := range sr.Tasks {
			row := []string{
				t.ID.String(), string(t.Regulation), t.Title,
				string(t.Status), fmt.Sprintf("%t", t.Blocking),
				t.CreatedAt.Format(time.RFC3339),
			}
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}

	case ReportTypeExecutive:
		summaries, err := g.provider.ListSystemSummaries(ctx)
		if err != nil {
			return err
		}

		header := []string{"ID", "Name", "Stage", "Regulation", "Risk Level", "Composite", "Open Tasks"}
		if err := csvWriter.Write(header); err != nil {
			return err
		}

		for _, s := range summaries {
			row := []string{
				s.ID.String(), s.Name, s.Stage, s.Regulation,
				s.RiskLevel, fmt.Sprintf("%.2f", s.CompositeScore),
				fmt.Sprintf("%d", s.OpenTasks),
			}
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unsupported report type for streaming: %s", req.Type)
	}

	return nil
}
