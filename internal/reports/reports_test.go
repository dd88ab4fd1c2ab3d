package reports

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/models"
	"github.com/veridian/aigov/internal/scoring"
)

type fakeProvider struct {
	report    *SystemReport
	summaries []*SystemSummary
	stats     *PortfolioStats
}

func (f *fakeProvider) GetSystemReport(ctx context.Context, systemID uuid.UUID) (*SystemReport, error) {
	return f.report, nil
}

func (f *fakeProvider) ListSystemSummaries(ctx context.Context) ([]*SystemSummary, error) {
	return f.summaries, nil
}

func (f *fakeProvider) GetPortfolioStats(ctx context.Context) (*PortfolioStats, error) {
	return f.stats, nil
}

func testProvider() *fakeProvider {
	systemID := uuid.New()
	return &fakeProvider{
		report: &SystemReport{
			System: &models.AISystem{
				ID:             systemID,
				Name:           "fraud-detector",
				Sector:         "finance",
				LifecycleStage: models.StageDeployed,
			},
			Snapshot: &models.ComplianceSnapshot{
				Regulation:       models.RegulationEUAIAct,
				RiskTier:         models.TierHighRisk,
				ComplianceStatus: models.StatusPartiallyCompliant,
			},
			Score: &scoring.Result{
				Scores:           scoring.DimensionScores{Technical: 6, Operational: 5, LegalRegulatory: 8, EthicalSocietal: 6, Business: 7},
				CompositeScore:   6.45,
				OverallRiskLevel: scoring.RiskLevelMedium,
				Details:          map[scoring.Dimension]scoring.DimensionDetail{},
			},
			Tasks: []models.GovernanceTask{
				{
					ID:         uuid.New(),
					AISystemID: systemID,
					Regulation: models.RegulationEUAIAct,
					Title:      "Obtain an approved risk assessment",
					Status:     models.TaskPending,
					Blocking:   true,
				},
			},
		},
		summaries: []*SystemSummary{
			{
				ID:             systemID,
				Name:           "fraud-detector",
				Stage:          string(models.StageDeployed),
				Regulation:     string(models.RegulationEUAIAct),
				RiskLevel:      string(scoring.RiskLevelMedium),
				CompositeScore: 6.45,
				OpenTasks:      1,
				BlockingTasks:  1,
			},
		},
		stats: &PortfolioStats{
			TotalSystems:  1,
			ByStage:       map[string]int{string(models.StageDeployed): 1},
			ByRiskLevel:   map[string]int{string(scoring.RiskLevelMedium): 1},
			OpenTasks:     1,
			BlockingTasks: 1,
		},
	}
}

func TestGenerate_SystemCSV(t *testing.T) {
	g := NewGenerator(testProvider())

	report, err := g.Generate(context.Background(), &ReportRequest{
		Type:     ReportTypeSystem,
		Format:   FormatCSV,
		SystemID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.MimeType != "text/csv" {
		t.Errorf("expected text/csv, got %s", report.MimeType)
	}
	content := string(report.Data)
	for _, want := range []string{"fraud-detector", "EU_AI_ACT", "HIGH_RISK", "Composite", "6.45"} {
		if !strings.Contains(content, want) {
			t.Errorf("CSV missing %q", want)
		}
	}
}

func TestGenerate_SystemPDF(t *testing.T) {
	g := NewGenerator(testProvider())

	report, err := g.Generate(context.Background(), &ReportRequest{
		Type:     ReportTypeSystem,
		Format:   FormatPDF,
		SystemID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.MimeType != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", report.MimeType)
	}
	if !bytes.HasPrefix(report.Data, []byte("%PDF")) {
		t.Error("PDF output missing %PDF header")
	}
	if report.Title == "" {
		t.Error("expected a default title")
	}
}

func TestGenerate_TasksJSON(t *testing.T) {
	g := NewGenerator(testProvider())

	report, err := g.Generate(context.Background(), &ReportRequest{
		Type:     ReportTypeTasks,
		Format:   FormatJSON,
		SystemID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.MimeType != "application/json" {
		t.Errorf("expected application/json, got %s", report.MimeType)
	}
	if !strings.Contains(string(report.Data), "Obtain an approved risk assessment") {
		t.Error("JSON output missing task title")
	}
}

func TestGenerate_ExecutiveFormats(t *testing.T) {
	g := NewGenerator(testProvider())

	for _, format := range []ReportFormat{FormatCSV, FormatPDF, FormatJSON} {
		report, err := g.Generate(context.Background(), &ReportRequest{
			Type:   ReportTypeExecutive,
			Format: format,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if len(report.Data) == 0 {
			t.Errorf("%s: empty report body", format)
		}
	}
}

func TestGenerate_UnknownTypeAndFormat(t *testing.T) {
	g := NewGenerator(testProvider())

	if _, err := g.Generate(context.Background(), &ReportRequest{Type: "weekly"}); err == nil {
		t.Error("unknown report type should error")
	}
	if _, err := g.Generate(context.Background(), &ReportRequest{
		Type:     ReportTypeSystem,
		Format:   "docx",
		SystemID: uuid.New(),
	}); err == nil {
		t.Error("unknown format should error")
	}
}

func TestGenerate_SystemNotFound(t *testing.T) {
	g := NewGenerator(&fakeProvider{})

	_, err := g.Generate(context.Background(), &ReportRequest{
		Type:     ReportTypeSystem,
		Format:   FormatCSV,
		SystemID: uuid.New(),
	})
	if err == nil {
		t.Error("missing system should error")
	}
}

func TestStreamCSV_Executive(t *testing.T) {
	g := NewGenerator(testProvider())

	var buf bytes.Buffer
	if err := g.StreamCSV(context.Background(), &buf, &ReportRequest{Type: ReportTypeExecutive}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "fraud-detector") {
		t.Error("streamed CSV missing system row")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("unexpected truncation: %s", got)
	}
	if got := truncate("a very long title that will not fit", 10); len(got) != 10 {
		t.Errorf("expected length 10, got %d (%s)", len(got), got)
	}
}
