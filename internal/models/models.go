package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// StringArray is an alias for pq.StringArray to handle PostgreSQL arrays
type StringArray = pq.StringArray

type Regulation string

const (
	RegulationEUAIAct     Regulation = "EU_AI_ACT"
	RegulationUKFramework Regulation = "UK_AI_FRAMEWORK"
	RegulationMASFEAT     Regulation = "MAS_FEAT"
)

// RegulationPriority is the probe order used to resolve which regulation
// context a system belongs to. A system has at most one record type; the
// first store that returns a record wins.
var RegulationPriority = []Regulation{
	RegulationEUAIAct,
	RegulationUKFramework,
	RegulationMASFEAT,
}

type RiskTier string

const (
	TierProhibited  RiskTier = "PROHIBITED"
	TierHighRisk    RiskTier = "HIGH_RISK"
	TierLimitedRisk RiskTier = "LIMITED_RISK"
	TierMinimalRisk RiskTier = "MINIMAL_RISK"
	TierUnknown     RiskTier = "UNKNOWN"
)

type ComplianceStatus string

const (
	StatusCompliant          ComplianceStatus = "COMPLIANT"
	StatusPartiallyCompliant ComplianceStatus = "PARTIALLY_COMPLIANT"
	StatusNonCompliant       ComplianceStatus = "NON_COMPLIANT"
	StatusUnknown            ComplianceStatus = "UNKNOWN"
)

type LifecycleStage string

const (
	StageDraft       LifecycleStage = "draft"
	StageDevelopment LifecycleStage = "development"
	StageTesting     LifecycleStage = "testing"
	StageDeployed    LifecycleStage = "deployed"
	StageMonitoring  LifecycleStage = "monitoring"
	StageRetired     LifecycleStage = "retired"
)

type AssessmentStatus string

const (
	AssessmentDraft     AssessmentStatus = "draft"
	AssessmentSubmitted AssessmentStatus = "submitted"
	AssessmentApproved  AssessmentStatus = "approved"
	AssessmentRejected  AssessmentStatus = "rejected"
)

type AssessmentCategory string

const (
	CategoryBias           AssessmentCategory = "bias"
	CategoryRobustness     AssessmentCategory = "robustness"
	CategoryPrivacy        AssessmentCategory = "privacy"
	CategoryExplainability AssessmentCategory = "explainability"
)

// TechnicalCategories are the categories that feed the technical risk
// dimension (bias feeds the ethical dimension instead).
var TechnicalCategories = []AssessmentCategory{
	CategoryRobustness,
	CategoryPrivacy,
	CategoryExplainability,
}

type AssessmentSeverity string

const (
	SeverityHigh   AssessmentSeverity = "HIGH"
	SeverityMedium AssessmentSeverity = "MEDIUM"
	SeverityLow    AssessmentSeverity = "LOW"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskBlocked   TaskStatus = "blocked"
	TaskCompleted TaskStatus = "completed"
)

type DocumentStatus string

const (
	DocumentCurrent    DocumentStatus = "current"
	DocumentSuperseded DocumentStatus = "superseded"
)

// EvalStatus tracks an asynchronous re-evaluation job through the queue.
type EvalStatus string

const (
	EvalStatusPending   EvalStatus = "pending"
	EvalStatusRunning   EvalStatus = "running"
	EvalStatusCompleted EvalStatus = "completed"
	EvalStatusFailed    EvalStatus = "failed"
)

type AISystem struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description" db:"description"`
	Sector         string         `json:"sector" db:"sector"`
	Owner          string         `json:"owner,omitempty" db:"owner"`
	LifecycleStage LifecycleStage `json:"lifecycle_stage" db:"lifecycle_stage"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

type RiskAssessment struct {
	ID         uuid.UUID          `json:"id" db:"id"`
	AISystemID uuid.UUID          `json:"ai_system_id" db:"ai_system_id"`
	Category   AssessmentCategory `json:"category" db:"category"`
	Status     AssessmentStatus   `json:"status" db:"status"`
	Severity   AssessmentSeverity `json:"severity" db:"severity"`
	Mitigated  bool               `json:"mitigated" db:"mitigated"`
	Summary    string             `json:"summary,omitempty" db:"summary"`
	CreatedAt  time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" db:"updated_at"`
}

// RiskSummary aggregates a system's risk assessments by status. Rejected
// assessments count toward Total only, so Approved+Submitted+Draft <= Total.
type RiskSummary struct {
	Total     int `json:"total" db:"total"`
	Approved  int `json:"approved" db:"approved"`
	Submitted int `json:"submitted" db:"submitted"`
	Draft     int `json:"draft" db:"draft"`
}

// GovernanceTask is an obligation row tracked per system and regulation.
// (AISystemID, Regulation, Title) is the natural key; once Completed a
// task is never reopened.
type GovernanceTask struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	AISystemID        uuid.UUID  `json:"ai_system_id" db:"ai_system_id"`
	Regulation        Regulation `json:"regulation" db:"regulation"`
	Title             string     `json:"title" db:"title"`
	Description       string     `json:"description" db:"description"`
	Status            TaskStatus `json:"status" db:"status"`
	Blocking          bool       `json:"blocking" db:"blocking"`
	RelatedEntityID   *uuid.UUID `json:"related_entity_id,omitempty" db:"related_entity_id"`
	RelatedEntityType string     `json:"related_entity_type,omitempty" db:"related_entity_type"`
	EvidenceLink      string     `json:"evidence_link,omitempty" db:"evidence_link"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

type ComplianceDocument struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	AISystemID  uuid.UUID      `json:"ai_system_id" db:"ai_system_id"`
	Regulation  Regulation     `json:"regulation" db:"regulation"`
	Title       string         `json:"title" db:"title"`
	Status      DocumentStatus `json:"status" db:"status"`
	GeneratedAt time.Time      `json:"generated_at" db:"generated_at"`
}
