package governance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/veridian/aigov/internal/models"
)

// PostgresStore persists governance tasks. The unique constraint on
// (ai_system_id, regulation, title) is the correctness boundary for
// concurrent evaluation: both mutations are single atomic statements, so
// two overlapping evaluations cannot duplicate rows or reopen a completed
// task.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListTasks(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error) {
	tasks := []models.GovernanceTask{}
	query := `
		SELECT * FROM governance_tasks
		WHERE ai_system_id = $1
		ORDER BY blocking DESC, status, created_at
	`
	err := s.db.SelectContext(ctx, &tasks, query, systemID)
	return tasks, err
}

func (s *PostgresStore) ListBlockingTasks(ctx context.Context, systemID uuid.UUID) ([]models.GovernanceTask, error) {
	tasks := []models.GovernanceTask{}
	query := `
		SELECT * FROM governance_tasks
		WHERE ai_system_id = $1 AND blocking = true AND status <> $2
		ORDER BY created_at
	`
	err := s.db.SelectContext(ctx, &tasks, query, systemID, models.TaskCompleted)
	return tasks, err
}

// UpsertTask inserts the task or refreshes the existing row in place. The
// conditional DO UPDATE leaves completed rows untouched, which is what
// makes re-evaluation idempotent under concurrency.
func (s *PostgresStore) UpsertTask(ctx context.Context, task *models.GovernanceTask) error {
	query := `
		INSERT INTO governance_tasks (
			id, ai_system_id, regulation, title, description, status, blocking,
			related_entity_id, related_entity_type, evidence_link, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ai_system_id, regulation, title) DO UPDATE SET
			description = EXCLUDED.description,
			blocking = EXCLUDED.blocking,
			related_entity_id = EXCLUDED.related_entity_id,
			related_entity_type = EXCLUDED.related_entity_type,
			updated_at = EXCLUDED.updated_at
		WHERE governance_tasks.status <> 'completed'
	`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = models.TaskPending
	}

	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.AISystemID, task.Regulation, task.Title, task.Description,
		task.Status, task.Blocking, task.RelatedEntityID, task.RelatedEntityType,
		task.EvidenceLink, task.CreatedAt, task.UpdatedAt,
	)
	return err
}

// CompleteTask marks a task completed with a timestamp and evidence link.
// The status guard makes completion a one-way door.
func (s *PostgresStore) CompleteTask(ctx context.Context, systemID uuid.UUID, regulation models.Regulation, title, evidence string) error {
	query := `
		UPDATE governance_tasks
		SET status = $1, completed_at = $2, updated_at = $2,
			evidence_link = COALESCE(NULLIF($3, ''), evidence_link)
		WHERE ai_system_id = $4 AND regulation = $5 AND title = $6 AND status <> $1
	`
	_, err := s.db.ExecContext(ctx, query,
		models.TaskCompleted, time.Now(), evidence, systemID, regulation, title,
	)
	return err
}
