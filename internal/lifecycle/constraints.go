package lifecycle

import "github.com/veridian/aigov/internal/models"

// CanEditRiskAssessment reports whether an assessment in the given status
// may still be edited at the system's lifecycle stage. Only draft
// assessments are editable, and nothing is editable once a system is
// retired.
func CanEditRiskAssessment(stage models.LifecycleStage, status models.AssessmentStatus) bool {
	if stage == models.StageRetired {
		return false
	}
	// The deployed/monitoring rule coincides with the general one: only
	// drafts are editable at any live stage.
	return status == models.AssessmentDraft
}

// CanCreateRiskAssessmentInStage reports whether new assessments may be
// created at the given stage. Retired systems are frozen.
func CanCreateRiskAssessmentInStage(stage models.LifecycleStage) bool {
	return stage != models.StageRetired
}

// StageConstraints describes the rules in force at a lifecycle stage, for
// display alongside transition controls.
func StageConstraints(stage models.LifecycleStage) []string {
	switch stage {
	case models.StageDraft, models.StageDevelopment:
		return []string{
			"Risk assessments may be created and edited freely",
			"A submitted or approved assessment is required to enter testing",
		}
	case models.StageTesting:
		return []string{
			"An approved risk assessment is required to deploy",
			"Prohibited-tier systems cannot be deployed",
		}
	case models.StageDeployed:
		return []string{
			"Only draft assessments remain editable",
			"Approved assessments are locked as deployment evidence",
		}
	case models.StageMonitoring:
		return []string{
			"Only draft assessments remain editable",
			"The only permitted transition is retirement",
		}
	case models.StageRetired:
		return []string{
			"Retired is terminal; no transitions or edits are permitted",
		}
	default:
		return nil
	}
}
