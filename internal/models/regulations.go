package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UK AI framework principles. The UK record keeps a checklist per principle.
const (
	UKPrincipleSafetySecurity = "safety_security_robustness"
	UKPrincipleTransparency   = "transparency_explainability"
	UKPrincipleFairness       = "fairness"
	UKPrincipleAccountability = "accountability_governance"
	UKPrincipleContestability = "contestability_redress"
)

var UKPrinciples = []string{
	UKPrincipleSafetySecurity,
	UKPrincipleTransparency,
	UKPrincipleFairness,
	UKPrincipleAccountability,
	UKPrincipleContestability,
}

// MAS FEAT pillars: four fairness, two ethics, three accountability and
// three transparency principles.
const (
	MASPillarFairnessJustifiability = "fairness_justifiability"
	MASPillarFairnessDataModels     = "fairness_data_and_models"
	MASPillarFairnessBias           = "fairness_minimize_bias"
	MASPillarFairnessReview         = "fairness_review"
	MASPillarEthicsAlignment        = "ethics_alignment"
	MASPillarEthicsStandards        = "ethics_standards"
	MASPillarAccountInternal        = "accountability_internal"
	MASPillarAccountExternal        = "accountability_external"
	MASPillarAccountRecourse        = "accountability_recourse"
	MASPillarTransparencyDisclosure = "transparency_disclosure"
	MASPillarTransparencyExplain    = "transparency_explanation"
	MASPillarTransparencyComms      = "transparency_communication"
)

var MASPillars = []string{
	MASPillarFairnessJustifiability,
	MASPillarFairnessDataModels,
	MASPillarFairnessBias,
	MASPillarFairnessReview,
	MASPillarEthicsAlignment,
	MASPillarEthicsStandards,
	MASPillarAccountInternal,
	MASPillarAccountExternal,
	MASPillarAccountRecourse,
	MASPillarTransparencyDisclosure,
	MASPillarTransparencyExplain,
	MASPillarTransparencyComms,
}

// UKPrincipleCheck is one principle's checklist state.
type UKPrincipleCheck struct {
	Meets   bool     `json:"meets"`
	Missing []string `json:"missing,omitempty"`
}

// UKPrincipleSet maps principle name to its checklist state, stored as JSONB.
type UKPrincipleSet map[string]UKPrincipleCheck

func (p UKPrincipleSet) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *UKPrincipleSet) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, p)
}

// MASPillarSet maps pillar name to its compliance status, stored as JSONB.
type MASPillarSet map[string]ComplianceStatus

func (p MASPillarSet) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *MASPillarSet) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, p)
}

type EUComplianceRecord struct {
	ID                   uuid.UUID        `json:"id" db:"id"`
	AISystemID           uuid.UUID        `json:"ai_system_id" db:"ai_system_id"`
	RiskTier             RiskTier         `json:"risk_tier" db:"risk_tier"`
	ComplianceStatus     ComplianceStatus `json:"compliance_status" db:"compliance_status"`
	ProhibitedPractices  bool             `json:"prohibited_practices" db:"prohibited_practices"`
	HighRiskFulfilled    bool             `json:"high_risk_fulfilled" db:"high_risk_fulfilled"`
	HighRiskMissing      StringArray      `json:"high_risk_missing" db:"high_risk_missing"`
	TransparencyRequired bool             `json:"transparency_required" db:"transparency_required"`
	PostMarketMonitoring bool             `json:"post_market_monitoring" db:"post_market_monitoring"`
	FRIACompleted        bool             `json:"fria_completed" db:"fria_completed"`
	AccountablePerson    string           `json:"accountable_person,omitempty" db:"accountable_person"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

type UKComplianceRecord struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	AISystemID        uuid.UUID        `json:"ai_system_id" db:"ai_system_id"`
	RiskTier          RiskTier         `json:"risk_tier" db:"risk_tier"`
	OriginalRiskLevel string           `json:"original_risk_level,omitempty" db:"original_risk_level"`
	ComplianceStatus  ComplianceStatus `json:"compliance_status" db:"compliance_status"`
	Principles        UKPrincipleSet   `json:"principles" db:"principles"`
	AccountablePerson string           `json:"accountable_person,omitempty" db:"accountable_person"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

type MASComplianceRecord struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	AISystemID        uuid.UUID        `json:"ai_system_id" db:"ai_system_id"`
	RiskTier          RiskTier         `json:"risk_tier" db:"risk_tier"`
	OriginalRiskLevel string           `json:"original_risk_level,omitempty" db:"original_risk_level"`
	ComplianceStatus  ComplianceStatus `json:"compliance_status" db:"compliance_status"`
	Pillars           MASPillarSet     `json:"pillars" db:"pillars"`
	AccountablePerson string           `json:"accountable_person,omitempty" db:"accountable_person"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// ComplianceSnapshot is the normalized view of a system's compliance state
// that the scorer and the transition validator consume. Every field is
// optional; absent values mean "unknown" and degrade scoring toward the
// neutral baseline instead of failing.
type ComplianceSnapshot struct {
	Regulation           Regulation       `json:"regulation"`
	RiskTier             RiskTier         `json:"risk_tier"`
	ComplianceStatus     ComplianceStatus `json:"compliance_status"`
	ProhibitedPractices  bool             `json:"prohibited_practices"`
	HighRiskFulfilled    bool             `json:"high_risk_fulfilled"`
	HighRiskMissing      []string         `json:"high_risk_missing,omitempty"`
	TransparencyRequired bool             `json:"transparency_required"`
	PostMarketMonitoring bool             `json:"post_market_monitoring"`
	FRIACompleted        bool             `json:"fria_completed"`
	LifecycleStage       LifecycleStage   `json:"lifecycle_stage"`
	AccountablePerson    string           `json:"accountable_person,omitempty"`
	Sector               string           `json:"sector,omitempty"`

	// OriginalRiskLevel preserves the framework-native label (UK "Frontier",
	// MAS "Critical") used to refine the five-tier classification.
	OriginalRiskLevel string `json:"original_risk_level,omitempty"`

	UKPrinciples UKPrincipleSet `json:"uk_principles,omitempty"`
	MASPillars   MASPillarSet   `json:"mas_pillars,omitempty"`
}

// IsMASCritical reports whether a MAS-governed system carries the
// framework-native "Critical" classification.
func (s *ComplianceSnapshot) IsMASCritical() bool {
	return s.Regulation == RegulationMASFEAT &&
		strings.EqualFold(s.OriginalRiskLevel, "critical")
}

// IsUKFrontier reports whether a UK-governed system carries a
// "Frontier" or "High-Impact" framework-native classification.
func (s *ComplianceSnapshot) IsUKFrontier() bool {
	if s.Regulation != RegulationUKFramework {
		return false
	}
	l := strings.ToLower(s.OriginalRiskLevel)
	return strings.Contains(l, "frontier") || strings.Contains(l, "high-impact") ||
		strings.Contains(l, "high impact")
}

// IsElevatedTier reports whether the tier is High-risk or Prohibited.
func (s *ComplianceSnapshot) IsElevatedTier() bool {
	return s.RiskTier == TierHighRisk || s.RiskTier == TierProhibited
}
