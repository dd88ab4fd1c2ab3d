package governance

import (
	"context"

	"github.com/veridian/aigov/internal/models"
)

// Task titles double as the third component of the natural key, so they are
// fixed constants rather than free text.
const (
	TitleApprovedAssessment = "Obtain an approved risk assessment"
	TitleDocumentation      = "Generate compliance documentation"
	TitleTestingAssessment  = "Provide a completed assessment for Testing"
	TitleDeploymentApproval = "Approved assessment required for Deployed/Monitoring"
	TitleAccountablePerson  = "Assign accountable person"
	TitleUKChecklist        = "Complete UK compliance checklist"
	TitleMASChecklist       = "Complete MAS compliance checklist"
)

type rule struct {
	name  string
	apply func(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error
}

// rules returns the fixed rule list for a regulation. Every rule either
// ensures its task (condition holds) or completes it (condition cleared);
// completed tasks stay completed either way.
func (e *Evaluator) rules(regulation models.Regulation) []rule {
	common := []rule{
		{name: "approved_assessment", apply: ruleApprovedAssessment},
		{name: "documentation", apply: ruleDocumentation},
	}

	switch regulation {
	case models.RegulationEUAIAct:
		return append(common,
			rule{name: "eu_testing_assessment", apply: ruleEUTestingAssessment},
			rule{name: "eu_deployment_approval", apply: ruleEUDeploymentApproval},
			rule{name: "eu_accountable_person", apply: ruleEUAccountablePerson},
		)
	case models.RegulationUKFramework:
		return append(common, rule{name: "uk_checklist", apply: ruleUKChecklist})
	case models.RegulationMASFEAT:
		return append(common, rule{name: "mas_checklist", apply: ruleMASChecklist})
	}
	return common
}

func ruleApprovedAssessment(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error {
	if rc.summary.Approved == 0 {
		// Only the EU AI Act makes a missing approval a hard blocker.
		blocking := rc.regulation == models.RegulationEUAIAct
		return e.ensureTask(ctx, rc, idx, TitleApprovedAssessment,
			"No risk assessment for this system has been approved. Complete and approve at least one category assessment.",
			blocking)
	}
	return e.completeTask(ctx, rc, idx, TitleApprovedAssessment, "approved risk assessment on record")
}

func ruleDocumentation(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error {
	if !rc.hasDoc {
		return e.ensureTask(ctx, rc, idx, TitleDocumentation,
			"No current compliance documentation exists for this regulation. Generate the documentation pack.",
			false)
	}
	return e.completeTask(ctx, rc, idx, TitleDocumentation, "current documentation on record")
}

func ruleEUTestingAssessment(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error {
	inTesting := rc.system.LifecycleStage == models.StageTesting
	if inTesting && rc.summary.Submitted+rc.summary.Approved == 0 {
		return e.ensureTask(ctx, rc, idx, TitleTestingAssessment,
			"The system is in testing without any submitted or approved risk assessment.",
			true)
	}
	return e.completeTask(ctx, rc, idx, TitleTestingAssessment, "assessment submitted for testing stage")
}

func ruleEUDeploymentApproval(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error {
	if isOperationalStage(rc.system.LifecycleStage) && rc.summary.Approved == 0 {
		return e.ensureTask(ctx, rc, idx, TitleDeploymentApproval,
			"A deployed or monitored system must hold at least one approved risk assessment.",
			true)
	}
	return e.completeTask(ctx, rc, idx, TitleDeploymentApproval, "approved assessment covers operational stage")
}

func ruleEUAccountablePerson(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error {
	accountable := rc.eu.AccountablePerson
	if accountable == "" {
		accountable = rc.system.Owner
	}
	if isOperationalStage(rc.system.LifecycleStage) && placeholderPerson(accountable) {
		return e.ensureTask(ctx, rc, idx, TitleAccountablePerson,
			"A deployed or monitored system requires a named accountable person.",
			true)
	}
	return e.completeTask(ctx, rc, idx, TitleAccountablePerson, "accountable person assigned")
}

func ruleUKChecklist(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error {
	if ukChecklistIncomplete(rc.uk) {
		return e.ensureTask(ctx, rc, idx, TitleUKChecklist,
			"One or more UK framework principles are not yet met. Complete the principle checklists.",
			false)
	}
	return e.completeTask(ctx, rc, idx, TitleUKChecklist, "all UK principles met")
}

func ruleMASChecklist(ctx context.Context, e *Evaluator, rc *regulationContext, idx taskIndex) error {
	if masChecklistIncomplete(rc.mas) {
		return e.ensureTask(ctx, rc, idx, TitleMASChecklist,
			"One or more MAS FEAT pillars are not yet compliant. Complete the pillar checklists.",
			false)
	}
	return e.completeTask(ctx, rc, idx, TitleMASChecklist, "all MAS pillars compliant")
}

func isOperationalStage(stage models.LifecycleStage) bool {
	return stage == models.StageDeployed || stage == models.StageMonitoring
}

// ukChecklistIncomplete checks all five principle checklists plus the
// overall assessment. A principle missing from the set counts as unmet.
func ukChecklistIncomplete(record *models.UKComplianceRecord) bool {
	if record.ComplianceStatus != models.StatusCompliant {
		return true
	}
	for _, principle := range models.UKPrinciples {
		check, ok := record.Principles[principle]
		if !ok || !check.Meets || len(check.Missing) > 0 {
			return true
		}
	}
	return false
}

// masChecklistIncomplete checks all twelve pillar statuses plus the overall
// compliance status.
func masChecklistIncomplete(record *models.MASComplianceRecord) bool {
	if record.ComplianceStatus != models.StatusCompliant {
		return true
	}
	for _, pillar := range models.MASPillars {
		if record.Pillars[pillar] != models.StatusCompliant {
			return true
		}
	}
	return false
}
