package governance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/veridian/aigov/internal/models"
)

// Store defines the interface for governance task persistence. UpsertTask
// must be an atomic create-or-update on the (system, regulation, title)
// natural key that leaves completed rows untouched; CompleteTask must be a
// guarded conditional update with the same immutability rule.
type Store interface {
	ListTasks(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error)
	ListBlockingTasks(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error)
	UpsertTask(ctx context.Context, task *models.GovernanceTask) error
	CompleteTask(ctx context.Context, systemID uuid.UUID, regulation models.Regulation, title, evidence string) error
}

// ContextStore is the read side the evaluator needs: the system, its
// regulation record, assessment counts and documentation state.
type ContextStore interface {
	GetSystem(ctx context.Context, id uuid.UUID) (*models.AISystem, error)
	GetEURecord(ctx context.Context, systemID uuid.UUID) (*models.EUComplianceRecord, error)
	GetUKRecord(ctx context.Context, systemID uuid.UUID) (*models.UKComplianceRecord, error)
	GetMASRecord(ctx context.Context, systemID uuid.UUID) (*models.MASComplianceRecord, error)
	RiskSummary(ctx context.Context, systemID uuid.UUID) (models.RiskSummary, error)
	HasCurrentDocument(ctx context.Context, systemID uuid.UUID, regulation models.Regulation) (bool, error)
}

// Evaluator maintains the governance task list for each system. Evaluation
// is idempotent: re-running against unchanged inputs produces identical
// persisted state, and completed tasks are never reopened.
type Evaluator struct {
	store  ContextStore
	tasks  Store
	logger *slog.Logger
}

func NewEvaluator(store ContextStore, tasks Store, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: store, tasks: tasks, logger: logger}
}

// regulationContext is the resolved regulation variant for one system.
// Exactly one of the record pointers is set.
type regulationContext struct {
	regulation models.Regulation
	system     *models.AISystem
	eu         *models.EUComplianceRecord
	uk         *models.UKComplianceRecord
	mas        *models.MASComplianceRecord
	summary    models.RiskSummary
	hasDoc     bool
}

// resolveContext probes the EU, UK and MAS record stores in priority order;
// the first record found decides the system's regulation. Returns nil when
// the system has no compliance record at all.
func (e *Evaluator) resolveContext(ctx context.Context, systemID uuid.UUID) (*regulationContext, error) {
	system, err := e.store.GetSystem(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("loading system: %w", err)
	}
	if system == nil {
		return nil, nil
	}

	rc := &regulationContext{system: system}

	for _, regulation := range models.RegulationPriority {
		found := false
		switch regulation {
		case models.RegulationEUAIAct:
			if rc.eu, err = e.store.GetEURecord(ctx, systemID); err != nil {
				return nil, fmt.Errorf("probing EU record: %w", err)
			}
			found = rc.eu != nil
		case models.RegulationUKFramework:
			if rc.uk, err = e.store.GetUKRecord(ctx, systemID); err != nil {
				return nil, fmt.Errorf("probing UK record: %w", err)
			}
			found = rc.uk != nil
		case models.RegulationMASFEAT:
			if rc.mas, err = e.store.GetMASRecord(ctx, systemID); err != nil {
				return nil, fmt.Errorf("probing MAS record: %w", err)
			}
			found = rc.mas != nil
		}
		if found {
			rc.regulation = regulation
			return rc, nil
		}
	}

	return nil, nil
}

// taskIndex is a per-evaluation index of existing tasks keyed by
// (regulation, title). Built once at the start of each call; rules consult
// it instead of re-reading the store.
type taskIndex map[string]*models.GovernanceTask

func indexKey(regulation models.Regulation, title string) string {
	return string(regulation) + "\x00" + title
}

func buildIndex(tasks []models.GovernanceTask) taskIndex {
	idx := make(taskIndex, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		idx[indexKey(t.Regulation, t.Title)] = t
	}
	return idx
}

// EvaluateSystem runs the governance rule set for one system and returns
// the refreshed, ordered task list. A system without any compliance record
// yields an empty list; callers decide whether that is an error. A single
// rule's storage failure is logged and skipped so the remaining rules still
// run.
func (e *Evaluator) EvaluateSystem(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error) {
	rc, err := e.resolveContext(ctx, systemID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return []models.GovernanceTask{}, nil
	}

	if rc.summary, err = e.store.RiskSummary(ctx, systemID); err != nil {
		return nil, fmt.Errorf("loading risk summary: %w", err)
	}
	if rc.hasDoc, err = e.store.HasCurrentDocument(ctx, systemID, rc.regulation); err != nil {
		return nil, fmt.Errorf("checking documentation: %w", err)
	}

	existing, err := e.tasks.ListTasks(ctx, systemID)
	if err != nil {
		return nil, fmt.Errorf("loading existing tasks: %w", err)
	}
	idx := buildIndex(existing)

	for _, rule := range e.rules(rc.regulation) {
		if err := rule.apply(ctx, e, rc, idx); err != nil {
			e.logger.Error("governance rule failed",
				"rule", rule.name,
				"system_id", systemID,
				"regulation", rc.regulation,
				"error", err,
			)
		}
	}

	return e.tasks.ListTasks(ctx, systemID)
}

// BlockingTasks returns the system's open blocking tasks.
func (e *Evaluator) BlockingTasks(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error) {
	return e.tasks.ListBlockingTasks(ctx, systemID)
}

// ensureTask creates or refreshes a task unless the existing row is already
// completed.
func (e *Evaluator) ensureTask(ctx context.Context, rc *regulationContext, idx taskIndex, title, description string, blocking bool) error {
	if existing, ok := idx[indexKey(rc.regulation, title)]; ok && existing.Status == models.TaskCompleted {
		return nil
	}

	task := &models.GovernanceTask{
		AISystemID:  rc.system.ID,
		Regulation:  rc.regulation,
		Title:       title,
		Description: description,
		Status:      models.TaskPending,
		Blocking:    blocking,
	}
	if err := e.tasks.UpsertTask(ctx, task); err != nil {
		return err
	}
	idx[indexKey(rc.regulation, title)] = task
	return nil
}

// completeTask flips an existing task to completed. Absent and already
// completed tasks are left alone.
func (e *Evaluator) completeTask(ctx context.Context, rc *regulationContext, idx taskIndex, title, evidence string) error {
	existing, ok := idx[indexKey(rc.regulation, title)]
	if !ok || existing.Status == models.TaskCompleted {
		return nil
	}
	if err := e.tasks.CompleteTask(ctx, rc.system.ID, rc.regulation, title, evidence); err != nil {
		return err
	}
	existing.Status = models.TaskCompleted
	return nil
}

// placeholderPerson reports whether an accountable-person value is empty or
// a placeholder that does not name anyone.
func placeholderPerson(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tbd", "n/a", "na", "todo", "unassigned", "none":
		return true
	}
	return false
}
