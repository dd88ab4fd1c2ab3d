package governance

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/models"
)

// fakeContextStore serves one system with at most one regulation record.
type fakeContextStore struct {
	system  *models.AISystem
	eu      *models.EUComplianceRecord
	uk      *models.UKComplianceRecord
	mas     *models.MASComplianceRecord
	summary models.RiskSummary
	hasDoc  bool

	euErr error
}

func (f *fakeContextStore) GetSystem(ctx context.Context, id uuid.UUID) (*models.AISystem, error) {
	if f.system != nil && f.system.ID == id {
		return f.system, nil
	}
	return nil, nil
}

func (f *fakeContextStore) GetEURecord(ctx context.Context, systemID uuid.UUID) (*models.EUComplianceRecord, error) {
	return f.eu, f.euErr
}

func (f *fakeContextStore) GetUKRecord(ctx context.Context, systemID uuid.UUID) (*models.UKComplianceRecord, error) {
	return f.uk, nil
}

func (f *fakeContextStore) GetMASRecord(ctx context.Context, systemID uuid.UUID) (*models.MASComplianceRecord, error) {
	return f.mas, nil
}

func (f *fakeContextStore) RiskSummary(ctx context.Context, systemID uuid.UUID) (models.RiskSummary, error) {
	return f.summary, nil
}

func (f *fakeContextStore) HasCurrentDocument(ctx context.Context, systemID uuid.UUID, regulation models.Regulation) (bool, error) {
	return f.hasDoc, nil
}

// fakeTaskStore mirrors the natural-key and completed-immutability contract
// of the Postgres store in memory.
type fakeTaskStore struct {
	tasks map[string]*models.GovernanceTask

	upsertErrTitle string
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*models.GovernanceTask)}
}

func taskKey(systemID uuid.UUID, regulation models.Regulation, title string) string {
	return systemID.String() + "|" + string(regulation) + "|" + title
}

func (f *fakeTaskStore) ListTasks(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error) {
	var out []models.GovernanceTask
	for _, t := range f.tasks {
		if t.AISystemID == systemID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeTaskStore) ListBlockingTasks(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error) {
	var out []models.GovernanceTask
	for _, t := range f.tasks {
		if t.AISystemID == systemID && t.Blocking && t.Status != models.TaskCompleted {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) UpsertTask(ctx context.Context, task *models.GovernanceTask) error {
	if task.Title == f.upsertErrTitle && f.upsertErrTitle != "" {
		return errors.New("storage failure")
	}
	key := taskKey(task.AISystemID, task.Regulation, task.Title)
	if existing, ok := f.tasks[key]; ok {
		if existing.Status == models.TaskCompleted {
			return nil
		}
		existing.Description = task.Description
		existing.Blocking = task.Blocking
		return nil
	}
	task.ID = uuid.New()
	cp := *task
	f.tasks[key] = &cp
	return nil
}

func (f *fakeTaskStore) CompleteTask(ctx context.Context, systemID uuid.UUID, regulation models.Regulation, title, evidence string) error {
	key := taskKey(systemID, regulation, title)
	existing, ok := f.tasks[key]
	if !ok || existing.Status == models.TaskCompleted {
		return nil
	}
	now := time.Now()
	existing.Status = models.TaskCompleted
	existing.EvidenceLink = evidence
	existing.CompletedAt = &now
	return nil
}

func newTestSystem(stage models.LifecycleStage) *models.AISystem {
	return &models.AISystem{
		ID:             uuid.New(),
		Name:           "credit-decisioning",
		Sector:         "finance",
		LifecycleStage: stage,
	}
}

func findTask(tasks []models.GovernanceTask, title string) *models.GovernanceTask {
	for i := range tasks {
		if tasks[i].Title == title {
			return &tasks[i]
		}
	}
	return nil
}

func TestEvaluateSystem_NoComplianceRecord(t *testing.T) {
	system := newTestSystem(models.StageDraft)
	e := NewEvaluator(&fakeContextStore{system: system}, newFakeTaskStore(), nil)

	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("ungoverned system should produce no tasks, got %d", len(tasks))
	}
}

func TestEvaluateSystem_UnknownSystem(t *testing.T) {
	e := NewEvaluator(&fakeContextStore{}, newFakeTaskStore(), nil)

	tasks, err := e.EvaluateSystem(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("unknown system should produce no tasks, got %d", len(tasks))
	}
}

func TestEvaluateSystem_EUPendingTasks(t *testing.T) {
	system := newTestSystem(models.StageDeployed)
	ctx := &fakeContextStore{
		system: system,
		eu:     &models.EUComplianceRecord{AISystemID: system.ID, RiskTier: models.TierHighRisk},
	}
	e := NewEvaluator(ctx, newFakeTaskStore(), nil)

	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	approved := findTask(tasks, TitleApprovedAssessment)
	if approved == nil {
		t.Fatal("expected the approved-assessment task")
	}
	if !approved.Blocking {
		t.Error("a missing EU approval must be blocking")
	}

	deployment := findTask(tasks, TitleDeploymentApproval)
	if deployment == nil || !deployment.Blocking {
		t.Error("deployed EU system without approval should raise a blocking deployment task")
	}

	accountable := findTask(tasks, TitleAccountablePerson)
	if accountable == nil || !accountable.Blocking {
		t.Error("deployed EU system without an owner should raise a blocking accountability task")
	}

	if doc := findTask(tasks, TitleDocumentation); doc == nil || doc.Blocking {
		t.Error("documentation task should exist and be non-blocking")
	}
}

func TestEvaluateSystem_EUOwnerFallback(t *testing.T) {
	system := newTestSystem(models.StageDeployed)
	system.Owner = "Maria Chen"
	ctx := &fakeContextStore{
		system:  system,
		eu:      &models.EUComplianceRecord{AISystemID: system.ID},
		summary: models.RiskSummary{Total: 1, Approved: 1},
	}
	e := NewEvaluator(ctx, newFakeTaskStore(), nil)

	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task := findTask(tasks, TitleAccountablePerson); task != nil && task.Status != models.TaskCompleted {
		t.Error("system owner should satisfy the accountability rule when the EU record has no person")
	}
}

func TestEvaluateSystem_PlaceholderOwnerRejected(t *testing.T) {
	system := newTestSystem(models.StageMonitoring)
	system.Owner = "TBD"
	ctx := &fakeContextStore{
		system:  system,
		eu:      &models.EUComplianceRecord{AISystemID: system.ID},
		summary: models.RiskSummary{Total: 1, Approved: 1},
	}
	e := NewEvaluator(ctx, newFakeTaskStore(), nil)

	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task := findTask(tasks, TitleAccountablePerson)
	if task == nil || task.Status == models.TaskCompleted {
		t.Error("placeholder owner should not satisfy the accountability rule")
	}
}

func TestEvaluateSystem_Idempotent(t *testing.T) {
	system := newTestSystem(models.StageTesting)
	ctx := &fakeContextStore{
		system: system,
		eu:     &models.EUComplianceRecord{AISystemID: system.ID},
	}
	store := newFakeTaskStore()
	e := NewEvaluator(ctx, store, nil)

	first, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("re-evaluation changed task count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Status != second[i].Status {
			t.Errorf("task %q changed across identical evaluations", first[i].Title)
		}
	}
}

func TestEvaluateSystem_CompletedTaskNeverReopens(t *testing.T) {
	system := newTestSystem(models.StageDraft)
	ctx := &fakeContextStore{
		system: system,
		eu:     &models.EUComplianceRecord{AISystemID: system.ID},
	}
	store := newFakeTaskStore()
	e := NewEvaluator(ctx, store, nil)

	// No approval yet: the rule creates a pending task.
	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task := findTask(tasks, TitleApprovedAssessment)
	if task == nil || task.Status == models.TaskCompleted {
		t.Fatalf("expected a pending approved-assessment task, got %+v", task)
	}

	// An approval appears: the task auto-completes.
	ctx.summary = models.RiskSummary{Total: 1, Approved: 1}
	if _, err := e.EvaluateSystem(context.Background(), system.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The approval disappears: the condition fails again, but the completed
	// task must stay completed and no fresh row may appear beside it.
	ctx.summary = models.RiskSummary{}
	tasks, err = e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matching := 0
	for _, tk := range tasks {
		if tk.Title == TitleApprovedAssessment {
			matching++
			if tk.Status != models.TaskCompleted {
				t.Errorf("completed task was reopened, status %s", tk.Status)
			}
		}
	}
	if matching != 1 {
		t.Errorf("expected exactly one approved-assessment task, got %d", matching)
	}
}

func TestEvaluateSystem_ConditionClearedCompletesTask(t *testing.T) {
	system := newTestSystem(models.StageDraft)
	ctx := &fakeContextStore{
		system: system,
		eu:     &models.EUComplianceRecord{AISystemID: system.ID},
	}
	store := newFakeTaskStore()
	e := NewEvaluator(ctx, store, nil)

	if _, err := e.EvaluateSystem(context.Background(), system.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx.summary = models.RiskSummary{Total: 1, Approved: 1}
	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := findTask(tasks, TitleApprovedAssessment)
	if task == nil || task.Status != models.TaskCompleted {
		t.Error("approval should auto-complete the assessment task")
	}
	if task != nil && task.EvidenceLink == "" {
		t.Error("auto-completion should record evidence")
	}
}

func TestEvaluateSystem_UKChecklist(t *testing.T) {
	system := newTestSystem(models.StageDevelopment)

	allMet := models.UKPrincipleSet{}
	for _, p := range models.UKPrinciples {
		allMet[p] = models.UKPrincipleCheck{Meets: true}
	}

	tests := []struct {
		name     string
		record   *models.UKComplianceRecord
		expectOp models.TaskStatus
	}{
		{
			"incomplete principles",
			&models.UKComplianceRecord{
				AISystemID:       system.ID,
				ComplianceStatus: models.StatusCompliant,
				Principles: models.UKPrincipleSet{
					models.UKPrincipleFairness: {Meets: false},
				},
			},
			models.TaskPending,
		},
		{
			"non-compliant overall",
			&models.UKComplianceRecord{
				AISystemID:       system.ID,
				ComplianceStatus: models.StatusPartiallyCompliant,
				Principles:       allMet,
			},
			models.TaskPending,
		},
		{
			"fully compliant",
			&models.UKComplianceRecord{
				AISystemID:       system.ID,
				ComplianceStatus: models.StatusCompliant,
				Principles:       allMet,
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &fakeContextStore{system: system, uk: tt.record}
			e := NewEvaluator(ctx, newFakeTaskStore(), nil)

			tasks, err := e.EvaluateSystem(context.Background(), system.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			task := findTask(tasks, TitleUKChecklist)
			if tt.expectOp == "" {
				if task != nil {
					t.Errorf("compliant UK record should not raise a checklist task, got status %s", task.Status)
				}
				return
			}
			if task == nil || task.Status != tt.expectOp {
				t.Errorf("expected checklist task with status %s, got %+v", tt.expectOp, task)
			}
			if task != nil && task.Blocking {
				t.Error("UK checklist task must not be blocking")
			}
		})
	}
}

func TestEvaluateSystem_MASChecklist(t *testing.T) {
	system := newTestSystem(models.StageDevelopment)

	allCompliant := models.MASPillarSet{}
	for _, p := range models.MASPillars {
		allCompliant[p] = models.StatusCompliant
	}

	incomplete := models.MASPillarSet{}
	for _, p := range models.MASPillars {
		incomplete[p] = models.StatusCompliant
	}
	incomplete[models.MASPillarFairnessBias] = models.StatusPartiallyCompliant

	tests := []struct {
		name    string
		pillars models.MASPillarSet
		status  models.ComplianceStatus
		raised  bool
	}{
		{"one pillar short", incomplete, models.StatusCompliant, true},
		{"missing pillars", models.MASPillarSet{}, models.StatusCompliant, true},
		{"all pillars compliant", allCompliant, models.StatusCompliant, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &fakeContextStore{
				system: system,
				mas: &models.MASComplianceRecord{
					AISystemID:       system.ID,
					ComplianceStatus: tt.status,
					Pillars:          tt.pillars,
				},
			}
			e := NewEvaluator(ctx, newFakeTaskStore(), nil)

			tasks, err := e.EvaluateSystem(context.Background(), system.ID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			task := findTask(tasks, TitleMASChecklist)
			if tt.raised && (task == nil || task.Status == models.TaskCompleted) {
				t.Error("expected an open MAS checklist task")
			}
			if !tt.raised && task != nil && task.Status != models.TaskCompleted {
				t.Error("compliant MAS record should not leave the checklist task open")
			}
		})
	}
}

func TestEvaluateSystem_RegulationPriority(t *testing.T) {
	system := newTestSystem(models.StageDraft)
	ctx := &fakeContextStore{
		system: system,
		eu:     &models.EUComplianceRecord{AISystemID: system.ID},
		uk:     &models.UKComplianceRecord{AISystemID: system.ID},
		mas:    &models.MASComplianceRecord{AISystemID: system.ID},
	}
	e := NewEvaluator(ctx, newFakeTaskStore(), nil)

	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) == 0 {
		t.Fatal("expected tasks for a governed system")
	}
	for _, task := range tasks {
		if task.Regulation != models.RegulationEUAIAct {
			t.Errorf("EU record should take priority, got task under %s", task.Regulation)
		}
	}
}

func TestEvaluateSystem_RuleFailureIsolated(t *testing.T) {
	system := newTestSystem(models.StageTesting)
	ctx := &fakeContextStore{
		system: system,
		eu:     &models.EUComplianceRecord{AISystemID: system.ID},
	}
	store := newFakeTaskStore()
	store.upsertErrTitle = TitleApprovedAssessment
	e := NewEvaluator(ctx, store, nil)

	tasks, err := e.EvaluateSystem(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("a single failing rule should not fail the evaluation: %v", err)
	}

	// The failing rule's task is absent but the other rules still ran.
	if findTask(tasks, TitleApprovedAssessment) != nil {
		t.Error("failed upsert should leave no task behind")
	}
	if findTask(tasks, TitleTestingAssessment) == nil {
		t.Error("remaining rules should still have run")
	}
}

func TestBlockingTasks(t *testing.T) {
	system := newTestSystem(models.StageDeployed)
	ctx := &fakeContextStore{
		system: system,
		eu:     &models.EUComplianceRecord{AISystemID: system.ID},
	}
	store := newFakeTaskStore()
	e := NewEvaluator(ctx, store, nil)

	if _, err := e.EvaluateSystem(context.Background(), system.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocking, err := e.BlockingTasks(context.Background(), system.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocking) == 0 {
		t.Fatal("deployed system without approvals should have blocking tasks")
	}
	for _, task := range blocking {
		if !task.Blocking || task.Status == models.TaskCompleted {
			t.Errorf("non-blocking or completed task %q in blocking list", task.Title)
		}
	}
}
