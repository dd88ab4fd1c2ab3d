package scoring

import (
	"testing"

	"github.com/veridian/aigov/internal/models"
)

func TestCalculate_NeutralBaseline(t *testing.T) {
	s := New()

	result := s.Calculate(&models.ComplianceSnapshot{
		RiskTier:         models.TierUnknown,
		ComplianceStatus: models.StatusUnknown,
	}, nil)

	scores := []int{
		result.Scores.Technical,
		result.Scores.Operational,
		result.Scores.LegalRegulatory,
		result.Scores.EthicalSocietal,
		result.Scores.Business,
	}
	for i, sc := range scores {
		if sc != 5 {
			t.Errorf("dimension %d: expected baseline 5, got %d", i, sc)
		}
	}
	if result.CompositeScore != 5.0 {
		t.Errorf("expected composite 5.0, got %v", result.CompositeScore)
	}
	if result.OverallRiskLevel != RiskLevelMedium {
		t.Errorf("expected MEDIUM, got %s", result.OverallRiskLevel)
	}
}

func TestCalculate_NilSnapshot(t *testing.T) {
	s := New()

	result := s.Calculate(nil, nil)
	if result == nil {
		t.Fatal("expected a result for nil snapshot")
	}
	if result.CompositeScore != 5.0 {
		t.Errorf("expected neutral composite for nil snapshot, got %v", result.CompositeScore)
	}
	if len(result.Details) != len(Dimensions) {
		t.Errorf("expected details for all %d dimensions, got %d", len(Dimensions), len(result.Details))
	}
}

func TestCalculate_ProhibitedTier(t *testing.T) {
	s := New()

	result := s.Calculate(&models.ComplianceSnapshot{
		Regulation:          models.RegulationEUAIAct,
		RiskTier:            models.TierProhibited,
		ProhibitedPractices: true,
		ComplianceStatus:    models.StatusNonCompliant,
	}, nil)

	if result.Scores.LegalRegulatory != 10 {
		t.Errorf("prohibited tier: expected legal score 10, got %d", result.Scores.LegalRegulatory)
	}
	if result.Scores.EthicalSocietal != 10 {
		t.Errorf("prohibited practices: expected ethical score 10, got %d", result.Scores.EthicalSocietal)
	}
	if result.Scores.Business != 10 {
		t.Errorf("prohibited practices: expected business score 10, got %d", result.Scores.Business)
	}
	if result.OverallRiskLevel != RiskLevelCritical && result.OverallRiskLevel != RiskLevelHigh {
		t.Errorf("prohibited system scored %s", result.OverallRiskLevel)
	}
}

func TestCalculate_MASCriticalDeployed(t *testing.T) {
	s := New()

	// MAS record classified "Critical" natively but with an unresolved
	// five-tier classification: the scorer should treat it as High-risk.
	result := s.Calculate(&models.ComplianceSnapshot{
		Regulation:        models.RegulationMASFEAT,
		RiskTier:          models.TierUnknown,
		OriginalRiskLevel: "Critical",
		ComplianceStatus:  models.StatusNonCompliant,
		LifecycleStage:    models.StageDeployed,
		Sector:            "finance",
	}, nil)

	if result.OverallRiskLevel != RiskLevelCritical {
		t.Errorf("expected CRITICAL for non-compliant MAS Critical system, got %s (composite %v)",
			result.OverallRiskLevel, result.CompositeScore)
	}
	if result.Scores.LegalRegulatory != 10 {
		t.Errorf("expected legal score saturated at 10, got %d", result.Scores.LegalRegulatory)
	}
	if result.CompositeScore < 9 {
		t.Errorf("expected composite >= 9, got %v", result.CompositeScore)
	}
}

func TestCalculate_ScoresClamped(t *testing.T) {
	s := New()

	assessments := make([]models.RiskAssessment, 0, 12)
	for i := 0; i < 6; i++ {
		assessments = append(assessments,
			models.RiskAssessment{
				Category: models.CategoryRobustness,
				Status:   models.AssessmentApproved,
				Severity: models.SeverityHigh,
			},
			models.RiskAssessment{
				Category: models.CategoryBias,
				Status:   models.AssessmentApproved,
				Severity: models.SeverityHigh,
			})
	}

	result := s.Calculate(&models.ComplianceSnapshot{
		Regulation:       models.RegulationEUAIAct,
		RiskTier:         models.TierHighRisk,
		ComplianceStatus: models.StatusNonCompliant,
		HighRiskMissing:  []string{"data governance", "security testing", "human oversight"},
	}, assessments)

	scores := []int{
		result.Scores.Technical,
		result.Scores.Operational,
		result.Scores.LegalRegulatory,
		result.Scores.EthicalSocietal,
		result.Scores.Business,
	}
	for i, sc := range scores {
		if sc < 1 || sc > 10 {
			t.Errorf("dimension %d score %d outside [1,10]", i, sc)
		}
	}
	if result.CompositeScore > 10 {
		t.Errorf("composite %v exceeds 10", result.CompositeScore)
	}
}

func TestCalculate_DraftAndNonApprovedAssessmentsIgnored(t *testing.T) {
	s := New()

	snap := &models.ComplianceSnapshot{
		Regulation:       models.RegulationEUAIAct,
		RiskTier:         models.TierMinimalRisk,
		ComplianceStatus: models.StatusCompliant,
	}

	clean := s.Calculate(snap, nil)
	withDrafts := s.Calculate(snap, []models.RiskAssessment{
		{Category: models.CategoryBias, Status: models.AssessmentDraft, Severity: models.SeverityHigh},
		{Category: models.CategoryBias, Status: models.AssessmentRejected, Severity: models.SeverityHigh},
		{Category: models.CategoryBias, Status: models.AssessmentSubmitted, Severity: models.SeverityHigh},
	})

	if withDrafts.Scores.EthicalSocietal != clean.Scores.EthicalSocietal {
		t.Errorf("non-approved assessments changed the ethical score: %d vs %d",
			withDrafts.Scores.EthicalSocietal, clean.Scores.EthicalSocietal)
	}
}

func TestCalculate_ApprovedBiasFindingRaisesRisk(t *testing.T) {
	s := New()

	snap := &models.ComplianceSnapshot{
		Regulation:       models.RegulationEUAIAct,
		RiskTier:         models.TierLimitedRisk,
		ComplianceStatus: models.StatusCompliant,
	}

	clean := s.Calculate(snap, nil)
	flagged := s.Calculate(snap, []models.RiskAssessment{
		{Category: models.CategoryBias, Status: models.AssessmentApproved, Severity: models.SeverityHigh},
	})

	if flagged.Scores.EthicalSocietal <= clean.Scores.EthicalSocietal {
		t.Errorf("approved high bias finding did not raise ethical score: %d vs %d",
			flagged.Scores.EthicalSocietal, clean.Scores.EthicalSocietal)
	}
	if flagged.CompositeScore <= clean.CompositeScore {
		t.Errorf("approved high bias finding did not raise composite: %v vs %v",
			flagged.CompositeScore, clean.CompositeScore)
	}
}

func TestComposite_MonotonicPerDimension(t *testing.T) {
	weights := DefaultWeights()
	base := DimensionScores{Technical: 5, Operational: 5, LegalRegulatory: 5, EthicalSocietal: 5, Business: 5}
	baseline := composite(base, weights)

	bumps := []struct {
		name string
		bump func(DimensionScores) DimensionScores
	}{
		{"technical", func(s DimensionScores) DimensionScores { s.Technical++; return s }},
		{"operational", func(s DimensionScores) DimensionScores { s.Operational++; return s }},
		{"legal_regulatory", func(s DimensionScores) DimensionScores { s.LegalRegulatory++; return s }},
		{"ethical_societal", func(s DimensionScores) DimensionScores { s.EthicalSocietal++; return s }},
		{"business", func(s DimensionScores) DimensionScores { s.Business++; return s }},
	}

	for _, tt := range bumps {
		t.Run(tt.name, func(t *testing.T) {
			got := composite(tt.bump(base), weights)
			if got <= baseline {
				t.Errorf("raising %s did not raise the composite: %v vs %v", tt.name, got, baseline)
			}
		})
	}
}

func TestCalculate_CompositeMonotonicUnderWorsening(t *testing.T) {
	s := New()

	// Lifecycle stage held fixed: each step only worsens the tier or the
	// compliance status, so no dimension may score lower than before.
	steps := []*models.ComplianceSnapshot{
		{
			Regulation:       models.RegulationEUAIAct,
			RiskTier:         models.TierMinimalRisk,
			ComplianceStatus: models.StatusCompliant,
			LifecycleStage:   models.StageTesting,
		},
		{
			Regulation:       models.RegulationEUAIAct,
			RiskTier:         models.TierMinimalRisk,
			ComplianceStatus: models.StatusPartiallyCompliant,
			LifecycleStage:   models.StageTesting,
		},
		{
			Regulation:       models.RegulationEUAIAct,
			RiskTier:         models.TierHighRisk,
			ComplianceStatus: models.StatusPartiallyCompliant,
			LifecycleStage:   models.StageTesting,
		},
		{
			Regulation:       models.RegulationEUAIAct,
			RiskTier:         models.TierHighRisk,
			ComplianceStatus: models.StatusNonCompliant,
			LifecycleStage:   models.StageTesting,
		},
	}

	prev := s.Calculate(steps[0], nil).CompositeScore
	for i := 1; i < len(steps); i++ {
		got := s.Calculate(steps[i], nil).CompositeScore
		if got < prev {
			t.Errorf("step %d: composite dropped from %v to %v despite strictly worse inputs", i, prev, got)
		}
		prev = got
	}

	first := s.Calculate(steps[0], nil).CompositeScore
	if prev <= first {
		t.Errorf("composite did not rise across the worsening sequence: %v vs %v", prev, first)
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score    float64
		expected RiskLevel
	}{
		{10, RiskLevelCritical},
		{9, RiskLevelCritical},
		{8.99, RiskLevelHigh},
		{7, RiskLevelHigh},
		{6.99, RiskLevelMedium},
		{4, RiskLevelMedium},
		{3.99, RiskLevelLow},
		{1, RiskLevelLow},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.expected {
			t.Errorf("LevelForScore(%v) = %s, expected %s", tt.score, got, tt.expected)
		}
	}
}

func TestWeights_Normalized(t *testing.T) {
	w := Weights{Technical: 2, Operational: 2, LegalRegulatory: 2, EthicalSocietal: 2, Business: 2}
	n := w.normalized()

	if n.Technical != 0.2 || n.Business != 0.2 {
		t.Errorf("expected uniform 0.2 weights, got %+v", n)
	}

	zero := Weights{}.normalized()
	if zero != DefaultWeights() {
		t.Errorf("zero weights should fall back to defaults, got %+v", zero)
	}
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		in       float64
		expected int
	}{
		{5.4, 5},
		{5.5, 6},
		{0.2, 1},
		{-3, 1},
		{10.6, 10},
		{14, 10},
	}

	for _, tt := range tests {
		if got := finalize(tt.in); got != tt.expected {
			t.Errorf("finalize(%v) = %d, expected %d", tt.in, got, tt.expected)
		}
	}
}
