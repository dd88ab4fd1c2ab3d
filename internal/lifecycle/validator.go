package lifecycle

import (
	"fmt"
	"strings"

	"github.com/veridian/aigov/internal/models"
)

// ValidationResult is the verdict for a requested stage transition. Guard
// failures are values, never errors: an invalid transition is a normal
// outcome with a reason the caller can surface.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func valid(warnings ...string) ValidationResult {
	return ValidationResult{Valid: true, Warnings: warnings}
}

func invalid(reason string, warnings ...string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason, Warnings: warnings}
}

// Stages lists every lifecycle stage in forward order.
var Stages = []models.LifecycleStage{
	models.StageDraft,
	models.StageDevelopment,
	models.StageTesting,
	models.StageDeployed,
	models.StageMonitoring,
	models.StageRetired,
}

// IsValidStage reports whether s names a known lifecycle stage.
func IsValidStage(s models.LifecycleStage) bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// ValidateTransition checks whether a system may move from current to
// target. The snapshot may be nil when no compliance record exists; the
// assessment summary is always required for the Testing and Deployed gates.
func ValidateTransition(current, target models.LifecycleStage, snap *models.ComplianceSnapshot, summary models.RiskSummary) ValidationResult {
	if current == target {
		return valid()
	}

	if current == models.StageRetired {
		return invalid("retired is a terminal stage; no further transitions are possible")
	}

	// Monitoring may only advance to Retired.
	if current == models.StageMonitoring && target != models.StageRetired {
		return invalid(fmt.Sprintf("a monitored system may only be retired, not moved back to %s", target))
	}

	switch target {
	case models.StageTesting:
		return validateEnterTesting(summary)
	case models.StageDeployed:
		return validateEnterDeployed(snap, summary)
	}

	return valid()
}

func validateEnterTesting(summary models.RiskSummary) ValidationResult {
	if summary.Submitted+summary.Approved < 1 {
		return invalid(
			"at least one submitted or approved risk assessment is required before testing",
			"Submit a risk assessment for each applicable category, then retry the transition",
		)
	}
	return valid()
}

func validateEnterDeployed(snap *models.ComplianceSnapshot, summary models.RiskSummary) ValidationResult {
	var errs []string
	var warnings []string

	if snap != nil {
		if snap.RiskTier == models.TierProhibited || snap.ProhibitedPractices {
			errs = append(errs, "prohibited-practice systems may not be deployed under Article 5")
		}

		if snap.RiskTier == models.TierHighRisk {
			switch snap.ComplianceStatus {
			case models.StatusNonCompliant:
				errs = append(errs, "a non-compliant high-risk system cannot be deployed")
			case models.StatusPartiallyCompliant:
				warnings = append(warnings, "high-risk system is only partially compliant; deployment proceeds at elevated supervisory risk")
			}
		}

		switch snap.Regulation {
		case models.RegulationMASFEAT:
			if strings.TrimSpace(snap.AccountablePerson) == "" {
				errs = append(errs, "MAS FEAT requires a named accountable owner before deployment")
			}
		case models.RegulationUKFramework:
			warnings = append(warnings, ukPrincipleWarnings(snap.UKPrinciples)...)
		}
	}

	if summary.Approved < 1 {
		errs = append(errs, "at least one approved risk assessment is required before deployment")
	}

	if len(errs) > 0 {
		return invalid(strings.Join(errs, "; "), warnings...)
	}
	return valid(warnings...)
}

func ukPrincipleWarnings(principles models.UKPrincipleSet) []string {
	var warnings []string
	for _, name := range []string{models.UKPrincipleAccountability, models.UKPrincipleSafetySecurity} {
		check, ok := principles[name]
		if ok && !check.Meets {
			warnings = append(warnings, fmt.Sprintf("UK principle %q is not yet met", name))
		}
	}
	return warnings
}
