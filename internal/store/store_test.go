package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/models"
)

// getTestDSN returns the test database DSN from environment
func getTestDSN() string {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=aigov password=aigov_password dbname=aigov_test sslmode=disable"
	}
	return dsn
}

// skipIfNoTestDB skips the test if no test database is available
func skipIfNoTestDB(t *testing.T) *Store {
	t.Helper()

	store, err := New(Config{
		DSN:          getTestDSN(),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		t.Skipf("Skipping test, database not available: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		t.Skipf("Skipping test, database not reachable: %v", err)
		return nil
	}

	return store
}

func TestStore_Systems(t *testing.T) {
	store := skipIfNoTestDB(t)
	if store == nil {
		return
	}
	defer store.Close()
	ctx := context.Background()

	system := &models.AISystem{
		Name:        "store-test-system",
		Description: "created by TestStore_Systems",
		Sector:      "finance",
		Owner:       "ml-platform@example.com",
	}
	if err := store.CreateSystem(ctx, system); err != nil {
		t.Fatalf("CreateSystem: %v", err)
	}
	if system.LifecycleStage != models.StageDraft {
		t.Errorf("default stage = %q, want %q", system.LifecycleStage, models.StageDraft)
	}

	got, err := store.GetSystem(ctx, system.ID)
	if err != nil {
		t.Fatalf("GetSystem: %v", err)
	}
	if got == nil || got.Name != system.Name {
		t.Fatalf("GetSystem = %+v, want name %q", got, system.Name)
	}

	missing, err := store.GetSystem(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetSystem missing: %v", err)
	}
	if missing != nil {
		t.Errorf("GetSystem for unknown id = %+v, want nil", missing)
	}

	if err := store.UpdateSystemStage(ctx, system.ID, models.StageDevelopment); err != nil {
		t.Fatalf("UpdateSystemStage: %v", err)
	}
	got, err = store.GetSystem(ctx, system.ID)
	if err != nil {
		t.Fatalf("GetSystem after update: %v", err)
	}
	if got.LifecycleStage != models.StageDevelopment {
		t.Errorf("stage after update = %q, want %q", got.LifecycleStage, models.StageDevelopment)
	}

	stage := models.StageDevelopment
	systems, err := store.ListSystems(ctx, &stage)
	if err != nil {
		t.Fatalf("ListSystems: %v", err)
	}
	found := false
	for _, s := range systems {
		if s.ID == system.ID {
			found = true
		}
		if s.LifecycleStage != models.StageDevelopment {
			t.Errorf("ListSystems(development) returned stage %q", s.LifecycleStage)
		}
	}
	if !found {
		t.Errorf("ListSystems(development) did not include the created system")
	}
}

func TestStore_ComplianceRecords(t *testing.T) {
	store := skipIfNoTestDB(t)
	if store == nil {
		return
	}
	defer store.Close()
	ctx := context.Background()

	system := &models.AISystem{Name: "store-test-records", Owner: "owner@example.com"}
	if err := store.CreateSystem(ctx, system); err != nil {
		t.Fatalf("CreateSystem: %v", err)
	}

	record := &models.EUComplianceRecord{
		AISystemID:       system.ID,
		RiskTier:         models.TierHighRisk,
		ComplianceStatus: models.StatusPartiallyCompliant,
		HighRiskMissing:  models.StringArray{"human_oversight"},
	}
	if err := store.UpsertEURecord(ctx, record); err != nil {
		t.Fatalf("UpsertEURecord insert: %v", err)
	}

	record.ComplianceStatus = models.StatusCompliant
	record.HighRiskMissing = nil
	record.HighRiskFulfilled = true
	if err := store.UpsertEURecord(ctx, record); err != nil {
		t.Fatalf("UpsertEURecord update: %v", err)
	}

	got, err := store.GetEURecord(ctx, system.ID)
	if err != nil {
		t.Fatalf("GetEURecord: %v", err)
	}
	if got == nil {
		t.Fatal("GetEURecord returned nil after upsert")
	}
	if got.ComplianceStatus != models.StatusCompliant || !got.HighRiskFulfilled {
		t.Errorf("upsert did not apply update: %+v", got)
	}

	none, err := store.GetUKRecord(ctx, system.ID)
	if err != nil {
		t.Fatalf("GetUKRecord: %v", err)
	}
	if none != nil {
		t.Errorf("GetUKRecord for EU-only system = %+v, want nil", none)
	}

	// EU wins the regulation probe even when a MAS record also exists.
	if err := store.UpsertMASRecord(ctx, &models.MASComplianceRecord{
		AISystemID:        system.ID,
		OriginalRiskLevel: "Critical",
	}); err != nil {
		t.Fatalf("UpsertMASRecord: %v", err)
	}
	snap, err := store.BuildSnapshot(ctx, system.ID)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	if snap == nil || snap.Regulation != models.RegulationEUAIAct {
		t.Errorf("BuildSnapshot regulation = %+v, want EU", snap)
	}
}

func TestStore_Assessments(t *testing.T) {
	store := skipIfNoTestDB(t)
	if store == nil {
		return
	}
	defer store.Close()
	ctx := context.Background()

	system := &models.AISystem{Name: "store-test-assessments", Owner: "owner@example.com"}
	if err := store.CreateSystem(ctx, system); err != nil {
		t.Fatalf("CreateSystem: %v", err)
	}

	assessment := &models.RiskAssessment{
		AISystemID: system.ID,
		Category:   models.CategoryBias,
		Severity:   models.SeverityHigh,
		Summary:    "demographic parity gap",
	}
	if err := store.CreateAssessment(ctx, assessment); err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}
	if assessment.Status != models.AssessmentDraft {
		t.Errorf("default status = %q, want %q", assessment.Status, models.AssessmentDraft)
	}

	assessment.Status = models.AssessmentApproved
	if err := store.UpdateAssessment(ctx, assessment); err != nil {
		t.Fatalf("UpdateAssessment: %v", err)
	}

	second := &models.RiskAssessment{
		AISystemID: system.ID,
		Category:   models.CategoryRobustness,
		Severity:   models.SeverityLow,
		Status:     models.AssessmentSubmitted,
	}
	if err := store.CreateAssessment(ctx, second); err != nil {
		t.Fatalf("CreateAssessment second: %v", err)
	}

	summary, err := store.RiskSummary(ctx, system.ID)
	if err != nil {
		t.Fatalf("RiskSummary: %v", err)
	}
	if summary.Total != 2 || summary.Approved != 1 || summary.Submitted != 1 || summary.Draft != 0 {
		t.Errorf("RiskSummary = %+v, want total 2, approved 1, submitted 1", summary)
	}
}

func TestStore_Documents(t *testing.T) {
	store := skipIfNoTestDB(t)
	if store == nil {
		return
	}
	defer store.Close()
	ctx := context.Background()

	system := &models.AISystem{Name: "store-test-documents", Owner: "owner@example.com"}
	if err := store.CreateSystem(ctx, system); err != nil {
		t.Fatalf("CreateSystem: %v", err)
	}

	has, err := store.HasCurrentDocument(ctx, system.ID, models.RegulationEUAIAct)
	if err != nil {
		t.Fatalf("HasCurrentDocument: %v", err)
	}
	if has {
		t.Error("HasCurrentDocument true before any document exists")
	}

	first := &models.ComplianceDocument{
		AISystemID: system.ID,
		Regulation: models.RegulationEUAIAct,
		Title:      "Conformity assessment v1",
	}
	if err := store.CreateDocument(ctx, first); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	second := &models.ComplianceDocument{
		AISystemID: system.ID,
		Regulation: models.RegulationEUAIAct,
		Title:      "Conformity assessment v2",
	}
	if err := store.CreateDocument(ctx, second); err != nil {
		t.Fatalf("CreateDocument second: %v", err)
	}

	has, err = store.HasCurrentDocument(ctx, system.ID, models.RegulationEUAIAct)
	if err != nil {
		t.Fatalf("HasCurrentDocument after create: %v", err)
	}
	if !has {
		t.Error("HasCurrentDocument false after creating documents")
	}

	var current int
	err = store.DB().GetContext(ctx, &current, `
		SELECT COUNT(*) FROM compliance_documents
		WHERE ai_system_id = $1 AND regulation = $2 AND status = $3
	`, system.ID, models.RegulationEUAIAct, models.DocumentCurrent)
	if err != nil {
		t.Fatalf("counting current documents: %v", err)
	}
	if current != 1 {
		t.Errorf("current documents = %d, want 1 (older rows superseded)", current)
	}
}
