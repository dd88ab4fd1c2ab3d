package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/veridian/aigov/internal/models"
)

type Store struct {
	db *sqlx.DB
}

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

func New(cfg Config) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) CreateSystem(ctx context.Context, system *models.AISystem) error {
	query := `
		INSERT INTO ai_systems (id, name, description, sector, owner, lifecycle_stage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	system.ID = uuid.New()
	system.CreatedAt = time.Now()
	system.UpdatedAt = time.Now()
	if system.LifecycleStage == "" {
		system.LifecycleStage = models.StageDraft
	}

	_, err := s.db.ExecContext(ctx, query,
		system.ID,
		system.Name,
		system.Description,
		system.Sector,
		system.Owner,
		system.LifecycleStage,
		system.CreatedAt,
		system.UpdatedAt,
	)
	return err
}

func (s *Store) GetSystem(ctx context.Context, id uuid.UUID) (*models.AISystem, error) {
	var system models.AISystem
	query := `SELECT * FROM ai_systems WHERE id = $1`
	err := s.db.GetContext(ctx, &system, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &system, err
}

func (s *Store) ListSystems(ctx context.Context, stage *models.LifecycleStage) ([]models.AISystem, error) {
	query := `SELECT * FROM ai_systems WHERE 1=1`
	args := make([]interface{}, 0)

	if stage != nil {
		query += " AND lifecycle_stage = $1"
		args = append(args, *stage)
	}

	query += " ORDER BY created_at DESC"

	var systems []models.AISystem
	err := s.db.SelectContext(ctx, &systems, query, args...)
	return systems, err
}

func (s *Store) UpdateSystemStage(ctx context.Context, id uuid.UUID, stage models.LifecycleStage) error {
	query := `UPDATE ai_systems SET lifecycle_stage = $1, updated_at = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, stage, time.Now(), id)
	return err
}

func (s *Store) GetEURecord(ctx context.Context, systemID uuid.UUID) (*models.EUComplianceRecord, error) {
	var record models.EUComplianceRecord
	query := `SELECT * FROM eu_compliance_records WHERE ai_system_id = $1`
	err := s.db.GetContext(ctx, &record, query, systemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &record, err
}

func (s *Store) GetUKRecord(ctx context.Context, systemID uuid.UUID) (*models.UKComplianceRecord, error) {
	var record models.UKComplianceRecord
	query := `SELECT * FROM uk_compliance_records WHERE ai_system_id = $1`
	err := s.db.GetContext(ctx, &record, query, systemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &record, err
}

func (s *Store) GetMASRecord(ctx context.Context, systemID uuid.UUID) (*models.MASComplianceRecord, error) {
	var record models.MASComplianceRecord
	query := `SELECT * FROM mas_compliance_records WHERE ai_system_id = $1`
	err := s.db.GetContext(ctx, &record, query, systemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &record, err
}

func (s *Store) UpsertEURecord(ctx context.Context, record *models.EUComplianceRecord) error {
	query := `
		INSERT INTO eu_compliance_records (
			id, ai_system_id, risk_tier, compliance_status, prohibited_practices,
			high_risk_fulfilled, high_risk_missing, transparency_required,
			post_market_monitoring, fria_completed, accountable_person, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (ai_system_id) DO UPDATE SET
			risk_tier = EXCLUDED.risk_tier,
			compliance_status = EXCLUDED.compliance_status,
			prohibited_practices = EXCLUDED.prohibited_practices,
			high_risk_fulfilled = EXCLUDED.high_risk_fulfilled,
			high_risk_missing = EXCLUDED.high_risk_missing,
			transparency_required = EXCLUDED.transparency_required,
			post_market_monitoring = EXCLUDED.post_market_monitoring,
			fria_completed = EXCLUDED.fria_completed,
			accountable_person = EXCLUDED.accountable_person,
			updated_at = EXCLUDED.updated_at
	`

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.AISystemID, record.RiskTier, record.ComplianceStatus,
		record.ProhibitedPractices, record.HighRiskFulfilled, record.HighRiskMissing,
		record.TransparencyRequired, record.PostMarketMonitoring, record.FRIACompleted,
		record.AccountablePerson, record.CreatedAt, record.UpdatedAt,
	)
	return err
}

func (s *Store) UpsertUKRecord(ctx context.Context, record *models.UKComplianceRecord) error {
	query := `
		INSERT INTO uk_compliance_records (
			id, ai_system_id, risk_tier, original_risk_level, compliance_status,
			principles, accountable_person, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ai_system_id) DO UPDATE SET
			risk_tier = EXCLUDED.risk_tier,
			original_risk_level = EXCLUDED.original_risk_level,
			compliance_status = EXCLUDED.compliance_status,
			principles = EXCLUDED.principles,
			accountable_person = EXCLUDED.accountable_person,
			updated_at = EXCLUDED.updated_at
	`

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.AISystemID, record.RiskTier, record.OriginalRiskLevel,
		record.ComplianceStatus, record.Principles, record.AccountablePerson,
		record.CreatedAt, record.UpdatedAt,
	)
	return err
}

func (s *Store) UpsertMASRecord(ctx context.Context, record *models.MASComplianceRecord) error {
	query := `
		INSERT INTO mas_compliance_records (
			id, ai_system_id, risk_tier, original_risk_level, compliance_status,
			pillars, accountable_person, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ai_system_id) DO UPDATE SET
			risk_tier = EXCLUDED.risk_tier,
			original_risk_level = EXCLUDED.original_risk_level,
			compliance_status = EXCLUDED.compliance_status,
			pillars = EXCLUDED.pillars,
			accountable_person = EXCLUDED.accountable_person,
			updated_at = EXCLUDED.updated_at
	`

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.AISystemID, record.RiskTier, record.OriginalRiskLevel,
		record.ComplianceStatus, record.Pillars, record.AccountablePerson,
		record.CreatedAt, record.UpdatedAt,
	)
	return err
}

func (s *Store) CreateAssessment(ctx context.Context, assessment *models.RiskAssessment) error {
	query := `
		INSERT INTO risk_assessments (id, ai_system_id, category, status, severity, mitigated, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	assessment.ID = uuid.New()
	assessment.CreatedAt = time.Now()
	assessment.UpdatedAt = time.Now()
	if assessment.Status == "" {
		assessment.Status = models.AssessmentDraft
	}

	_, err := s.db.ExecContext(ctx, query,
		assessment.ID, assessment.AISystemID, assessment.Category, assessment.Status,
		assessment.Severity, assessment.Mitigated, assessment.Summary,
		assessment.CreatedAt, assessment.UpdatedAt,
	)
	return err
}

func (s *Store) GetAssessment(ctx context.Context, id uuid.UUID) (*models.RiskAssessment, error) {
	var assessment models.RiskAssessment
	query := `SELECT * FROM risk_assessments WHERE id = $1`
	err := s.db.GetContext(ctx, &assessment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &assessment, err
}

func (s *Store) UpdateAssessment(ctx context.Context, assessment *models.RiskAssessment) error {
	query := `
		UPDATE risk_assessments
		SET category = $2, status = $3, severity = $4, mitigated = $5, summary = $6, updated_at = $7
		WHERE id = $1
	`
	assessment.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, query,
		assessment.ID, assessment.Category, assessment.Status, assessment.Severity,
		assessment.Mitigated, assessment.Summary, assessment.UpdatedAt,
	)
	return err
}

func (s *Store) ListAssessments(ctx context.Context, systemID uuid.UUID) ([]models.RiskAssessment, error) {
	var assessments []models.RiskAssessment
	query := `SELECT * FROM risk_assessments WHERE ai_system_id = $1 ORDER BY category, created_at DESC`
	err := s.db.SelectContext(ctx, &assessments, query, systemID)
	return assessments, err
}

// RiskSummary aggregates assessment counts per status. Rejected assessments
// count only toward the total.
func (s *Store) RiskSummary(ctx context.Context, systemID uuid.UUID) (models.RiskSummary, error) {
	var summary models.RiskSummary
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'approved') AS approved,
			COUNT(*) FILTER (WHERE status = 'submitted') AS submitted,
			COUNT(*) FILTER (WHERE status = 'draft') AS draft
		FROM risk_assessments
		WHERE ai_system_id = $1
	`
	err := s.db.GetContext(ctx, &summary, query, systemID)
	return summary, err
}

// CreateDocument supersedes any current document for the same system and
// regulation before inserting the new one, keeping at most one current row.
func (s *Store) CreateDocument(ctx context.Context, doc *models.ComplianceDocument) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE compliance_documents SET status = $1
		WHERE ai_system_id = $2 AND regulation = $3 AND status = $4
	`, models.DocumentSuperseded, doc.AISystemID, doc.Regulation, models.DocumentCurrent); err != nil {
		return err
	}

	doc.ID = uuid.New()
	doc.Status = models.DocumentCurrent
	doc.GeneratedAt = time.Now()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO compliance_documents (id, ai_system_id, regulation, title, status, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, doc.ID, doc.AISystemID, doc.Regulation, doc.Title, doc.Status, doc.GeneratedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) HasCurrentDocument(ctx context.Context, systemID uuid.UUID, regulation models.Regulation) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM compliance_documents
			WHERE ai_system_id = $1 AND regulation = $2 AND status = $3
		)
	`
	err := s.db.GetContext(ctx, &exists, query, systemID, regulation, models.DocumentCurrent)
	return exists, err
}

type DashboardCounts struct {
	TotalSystems        int `db:"total_systems"`
	DeployedSystems     int `db:"deployed_systems"`
	HighRiskSystems     int `db:"high_risk_systems"`
	ProhibitedSystems   int `db:"prohibited_systems"`
	OpenTasks           int `db:"open_tasks"`
	BlockingTasks       int `db:"blocking_tasks"`
	ApprovedAssessments int `db:"approved_assessments"`
	PendingAssessments  int `db:"pending_assessments"`
}

func (s *Store) GetDashboardCounts(ctx context.Context) (*DashboardCounts, error) {
	counts := &DashboardCounts{}

	query := `
		SELECT
			(SELECT COUNT(*) FROM ai_systems) AS total_systems,
			(SELECT COUNT(*) FROM ai_systems WHERE lifecycle_stage IN ('deployed', 'monitoring')) AS deployed_systems,
			(SELECT COUNT(*) FROM eu_compliance_records WHERE risk_tier = 'HIGH_RISK') +
			(SELECT COUNT(*) FROM uk_compliance_records WHERE risk_tier = 'HIGH_RISK') +
			(SELECT COUNT(*) FROM mas_compliance_records WHERE risk_tier = 'HIGH_RISK') AS high_risk_systems,
			(SELECT COUNT(*) FROM eu_compliance_records WHERE risk_tier = 'PROHIBITED') AS prohibited_systems,
			(SELECT COUNT(*) FROM governance_tasks WHERE status <> 'completed') AS open_tasks,
			(SELECT COUNT(*) FROM governance_tasks WHERE status <> 'completed' AND blocking = true) AS blocking_tasks,
			(SELECT COUNT(*) FROM risk_assessments WHERE status = 'approved') AS approved_assessments,
			(SELECT COUNT(*) FROM risk_assessments WHERE status IN ('draft', 'submitted')) AS pending_assessments
	`

	err := s.db.GetContext(ctx, counts, query)
	if err != nil {
		return nil, fmt.Errorf("getting dashboard counts: %w", err)
	}

	return counts, nil
}
