package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/veridian/aigov/internal/models"
)

const baseline = 5.0

// Scorer computes the five-dimension risk profile of an AI system from its
// compliance snapshot and risk assessments. Scoring is pure and never
// fails: unknown or missing inputs leave the affected dimension at the
// neutral baseline.
type Scorer struct {
	weights Weights
}

// New creates a scorer with the default dimension weights.
func New() *Scorer {
	return &Scorer{weights: DefaultWeights()}
}

// NewWithWeights creates a scorer with custom weights. The weights are
// normalized to sum to 1.
func NewWithWeights(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// assessmentStats pre-aggregates the approved risk assessments once so each
// dimension reads the same counts.
type assessmentStats struct {
	techHigh        int
	techMedium      int
	techUnmitigated bool
	techTotal       int
	biasHigh        int
	biasMedium      int
	explainHigh     int
	unmitigatedHigh int
}

func collectStats(assessments []models.RiskAssessment) assessmentStats {
	var st assessmentStats
	for _, a := range assessments {
		if isTechnicalCategory(a.Category) {
			st.techTotal++
		}
		if a.Status != models.AssessmentApproved {
			continue
		}
		if a.Severity == models.SeverityHigh && !a.Mitigated {
			st.unmitigatedHigh++
		}
		switch {
		case isTechnicalCategory(a.Category):
			switch a.Severity {
			case models.SeverityHigh:
				st.techHigh++
			case models.SeverityMedium:
				st.techMedium++
			}
			if !a.Mitigated && a.Severity != models.SeverityLow {
				st.techUnmitigated = true
			}
			if a.Category == models.CategoryExplainability && a.Severity == models.SeverityHigh {
				st.explainHigh++
			}
		case a.Category == models.CategoryBias:
			switch a.Severity {
			case models.SeverityHigh:
				st.biasHigh++
			case models.SeverityMedium:
				st.biasMedium++
			}
		}
	}
	return st
}

func isTechnicalCategory(c models.AssessmentCategory) bool {
	for _, tc := range models.TechnicalCategories {
		if c == tc {
			return true
		}
	}
	return false
}

// effectiveTier refines the five-tier classification with the
// framework-native label. A MAS "Critical" or UK "Frontier"/"High-Impact"
// system is treated as High-risk when the record itself did not classify
// the tier.
func effectiveTier(snap *models.ComplianceSnapshot) models.RiskTier {
	tier := snap.RiskTier
	if tier == "" {
		tier = models.TierUnknown
	}
	if tier == models.TierUnknown && (snap.IsMASCritical() || snap.IsUKFrontier()) {
		return models.TierHighRisk
	}
	return tier
}

// Calculate scores the snapshot across all five dimensions and returns the
// weighted composite with the per-dimension audit trail.
func (s *Scorer) Calculate(snap *models.ComplianceSnapshot, assessments []models.RiskAssessment) *Result {
	if snap == nil {
		snap = &models.ComplianceSnapshot{}
	}
	st := collectStats(assessments)
	norm := *snap
	norm.RiskTier = effectiveTier(snap)

	weights := s.weights.normalized()
	details := make(map[Dimension]DimensionDetail, len(Dimensions))

	raw := map[Dimension]float64{}
	raw[DimensionTechnical] = s.scoreTechnical(&norm, st, details)
	raw[DimensionOperational] = s.scoreOperational(&norm, st, details)
	raw[DimensionLegalRegulatory] = s.scoreLegal(&norm, st, details)
	raw[DimensionEthicalSocietal] = s.scoreEthical(&norm, st, details)
	raw[DimensionBusiness] = s.scoreBusiness(&norm, st, details)

	scores := DimensionScores{
		Technical:       finalize(raw[DimensionTechnical]),
		Operational:     finalize(raw[DimensionOperational]),
		LegalRegulatory: finalize(raw[DimensionLegalRegulatory]),
		EthicalSocietal: finalize(raw[DimensionEthicalSocietal]),
		Business:        finalize(raw[DimensionBusiness]),
	}

	total := composite(scores, weights)

	return &Result{
		Scores:           scores,
		CompositeScore:   total,
		OverallRiskLevel: LevelForScore(total),
		Details:          details,
		Weights:          weights,
	}
}

// composite is the weighted sum of the dimension scores, rounded to two
// decimals. With positive weights it is strictly increasing in every
// dimension.
func composite(scores DimensionScores, weights Weights) float64 {
	sum := float64(scores.Technical)*weights.Technical +
		float64(scores.Operational)*weights.Operational +
		float64(scores.LegalRegulatory)*weights.LegalRegulatory +
		float64(scores.EthicalSocietal)*weights.EthicalSocietal +
		float64(scores.Business)*weights.Business
	return math.Round(sum*100) / 100
}

// finalize rounds a raw dimension value to the nearest integer and clamps
// it to the 1-10 range. Values above 10 saturate rather than surfacing as a
// separate signal.
func finalize(v float64) int {
	rounded := math.Round(v)
	if rounded < 1 {
		return 1
	}
	if rounded > 10 {
		return 10
	}
	return int(rounded)
}

// detailBuilder accumulates the audit trail for one dimension.
type detailBuilder struct {
	findings        []string
	gaps            []string
	recommendations []string
}

func (d *detailBuilder) finding(format string, args ...interface{}) {
	d.findings = append(d.findings, fmt.Sprintf(format, args...))
}

func (d *detailBuilder) gap(format string, args ...interface{}) {
	d.gaps = append(d.gaps, fmt.Sprintf(format, args...))
}

func (d *detailBuilder) recommend(format string, args ...interface{}) {
	d.recommendations = append(d.recommendations, fmt.Sprintf(format, args...))
}

func (d *detailBuilder) build(rationale string) DimensionDetail {
	detail := DimensionDetail{
		Rationale:       rationale,
		KeyFindings:     d.findings,
		ComplianceGaps:  d.gaps,
		Recommendations: d.recommendations,
	}
	if detail.KeyFindings == nil {
		detail.KeyFindings = []string{}
	}
	if detail.ComplianceGaps == nil {
		detail.ComplianceGaps = []string{}
	}
	if detail.Recommendations == nil {
		detail.Recommendations = []string{}
	}
	return detail
}

func (s *Scorer) scoreTechnical(snap *models.ComplianceSnapshot, st assessmentStats, details map[Dimension]DimensionDetail) float64 {
	score := baseline
	var d detailBuilder

	if st.techHigh > 0 {
		score += 2.0 * float64(st.techHigh)
		d.finding("%d high-severity finding(s) across robustness, privacy and explainability assessments", st.techHigh)
		d.recommend("Address high-severity technical findings before the next lifecycle transition")
	}
	if st.techMedium > 0 {
		score += 1.0 * float64(st.techMedium)
		d.finding("%d medium-severity technical finding(s)", st.techMedium)
	}
	if st.techUnmitigated {
		score += 1.0
		d.gap("Open technical findings have no recorded mitigation")
		d.recommend("Record mitigations for outstanding technical findings")
	}
	if missing := dataSecurityObligations(snap.HighRiskMissing); len(missing) > 0 {
		score += 1.5
		d.gap("Unfulfilled obligations touch data or security controls: %s", strings.Join(missing, ", "))
		d.recommend("Close data and security related obligations first")
	}
	if snap.IsMASCritical() {
		score += 3.5
		d.finding("MAS FEAT classifies this system as Critical")
	} else if snap.IsUKFrontier() {
		score += 2.5
		d.finding("UK framework classifies this system as frontier/high-impact")
	}

	details[DimensionTechnical] = d.build(technicalRationale(score, st))
	return score
}

func technicalRationale(score float64, st assessmentStats) string {
	if st.techHigh == 0 && st.techMedium == 0 {
		return "No adverse technical findings recorded; score reflects classification and obligation state."
	}
	return fmt.Sprintf("Technical risk driven by %d high and %d medium severity findings from category assessments.",
		st.techHigh, st.techMedium)
}

func dataSecurityObligations(missing []string) []string {
	var hits []string
	for _, m := range missing {
		l := strings.ToLower(m)
		if strings.Contains(l, "data") || strings.Contains(l, "security") {
			hits = append(hits, m)
		}
	}
	return hits
}

func (s *Scorer) scoreOperational(snap *models.ComplianceSnapshot, st assessmentStats, details map[Dimension]DimensionDetail) float64 {
	score := baseline
	var d detailBuilder

	switch snap.LifecycleStage {
	case models.StageDraft, models.StageDevelopment:
		score += 2.0
		d.finding("System is in an early lifecycle stage (%s) with unproven operational controls", snap.LifecycleStage)
	case models.StageDeployed, models.StageMonitoring:
		score -= 1.0
		d.finding("System has reached operational maturity (%s)", snap.LifecycleStage)
	}

	if snap.PostMarketMonitoring {
		score -= 1.0
		d.finding("Post-market monitoring is in place")
	} else if snap.IsElevatedTier() {
		score += 1.5
		d.gap("No post-market monitoring for a %s system", snap.RiskTier)
		d.recommend("Establish post-market monitoring before or at deployment")
	}

	if !snap.FRIACompleted && snap.IsElevatedTier() {
		score += 1.0
		d.gap("Fundamental rights impact assessment not completed")
		d.recommend("Complete the FRIA for this high-risk classification")
	}

	if snap.IsMASCritical() {
		score += 3.0
		d.finding("MAS Critical classification raises operational expectations")
	} else if snap.IsUKFrontier() {
		score += 2.0
		d.finding("UK frontier/high-impact classification raises operational expectations")
	}

	rationale := "Operational risk reflects lifecycle maturity and monitoring posture."
	details[DimensionOperational] = d.build(rationale)
	return score
}

func (s *Scorer) scoreLegal(snap *models.ComplianceSnapshot, st assessmentStats, details map[Dimension]DimensionDetail) float64 {
	var d detailBuilder

	if snap.RiskTier == models.TierProhibited {
		d.finding("System falls in the Prohibited tier")
		d.gap("Prohibited practices cannot be brought into compliance")
		d.recommend("Decommission or fundamentally redesign the system")
		details[DimensionLegalRegulatory] = d.build("Prohibited classification dominates all other legal considerations.")
		return 10
	}

	score := baseline

	if snap.RiskTier == models.TierHighRisk {
		switch {
		case snap.IsUKFrontier():
			score += 3.5
			d.finding("High-risk frontier system under the UK framework")
		case snap.Regulation == models.RegulationUKFramework:
			score += 2.5
			d.finding("High-risk system under the UK framework")
		case snap.IsMASCritical():
			score += 4.0
			d.finding("MAS Critical classification carries the heaviest supervisory burden")
		case snap.Regulation == models.RegulationMASFEAT:
			score += 2.5
			d.finding("High-risk system under MAS FEAT")
		default:
			score += 2.5
			d.finding("High-risk system under the EU AI Act")
			if !snap.HighRiskFulfilled {
				score += 1.5
				d.gap("High-risk obligations are not all fulfilled")
			}
		}
	}

	switch snap.ComplianceStatus {
	case models.StatusNonCompliant:
		score += 2.0
		d.gap("Compliance status is non-compliant")
		d.recommend("Remediate open compliance gaps and re-assess")
	case models.StatusPartiallyCompliant:
		score += 1.0
		d.gap("Compliance status is only partially compliant")
	}

	if n := len(snap.HighRiskMissing); n > 0 {
		score += 0.5 * float64(n)
		d.gap("%d high-risk obligation(s) outstanding: %s", n, strings.Join(snap.HighRiskMissing, ", "))
		d.recommend("Track each outstanding obligation as a governance task")
	}

	details[DimensionLegalRegulatory] = d.build("Legal exposure follows the regulatory tier and the fulfilment of its obligations.")
	return score
}

func (s *Scorer) scoreEthical(snap *models.ComplianceSnapshot, st assessmentStats, details map[Dimension]DimensionDetail) float64 {
	var d detailBuilder

	if snap.ProhibitedPractices || snap.RiskTier == models.TierProhibited {
		d.finding("Prohibited practices detected")
		d.gap("The system engages in practices with unacceptable societal impact")
		d.recommend("Halt the practice and escalate to the accountable owner")
		details[DimensionEthicalSocietal] = d.build("Prohibited practices dominate the ethical assessment.")
		return 10
	}

	score := baseline

	if st.biasHigh > 0 {
		score += 2.5 * float64(st.biasHigh)
		d.finding("%d high-severity bias finding(s)", st.biasHigh)
		d.recommend("Re-run bias evaluation after mitigation")
	}
	if st.biasMedium > 0 {
		score += 1.5 * float64(st.biasMedium)
		d.finding("%d medium-severity bias finding(s)", st.biasMedium)
	}
	if st.explainHigh > 0 {
		score += 1.5
		d.finding("High-severity explainability gaps reduce meaningful human oversight")
	}

	if snap.IsElevatedTier() {
		switch {
		case snap.IsMASCritical():
			score += 2.5
			d.finding("MAS Critical systems carry elevated societal exposure")
			score += 2.0
			d.finding("Customer-facing financial decisions amplify societal impact")
		case snap.IsUKFrontier():
			score += 1.0
			d.finding("Frontier-scale capability raises societal risk")
		default:
			score += 0.5
		}
	}

	if st.techTotal > 2 {
		score += 0.3
		d.finding("Breadth of technical assessments indicates a complex system surface")
	}

	details[DimensionEthicalSocietal] = d.build("Ethical risk reflects bias findings, explainability and societal reach.")
	return score
}

func (s *Scorer) scoreBusiness(snap *models.ComplianceSnapshot, st assessmentStats, details map[Dimension]DimensionDetail) float64 {
	var d detailBuilder

	if snap.ProhibitedPractices {
		d.finding("Prohibited practices expose the business to enforcement action")
		d.recommend("Treat as an existential regulatory exposure")
		details[DimensionBusiness] = d.build("Prohibited practices dominate the business risk assessment.")
		return 10
	}

	score := baseline

	switch snap.ComplianceStatus {
	case models.StatusNonCompliant:
		score += 2.5
		d.gap("Non-compliance carries fine and market-withdrawal exposure")
	case models.StatusPartiallyCompliant:
		score += 1.5
		d.gap("Partial compliance leaves residual enforcement exposure")
	}

	if snap.IsElevatedTier() {
		switch {
		case snap.IsUKFrontier():
			score += 2.5
			d.finding("Frontier designation attracts regulator attention")
		case snap.IsMASCritical():
			score += 3.5
			d.finding("MAS Critical systems face the strictest supervisory scrutiny")
		default:
			score += 1.5
			d.finding("High-risk classification increases cost of failure")
		}
	}

	if st.unmitigatedHigh > 0 {
		score += 0.5 * float64(st.unmitigatedHigh)
		d.gap("%d unmitigated high-severity assessment finding(s)", st.unmitigatedHigh)
		d.recommend("Prioritise mitigation of high-severity findings")
	}

	if isRegulatedSector(snap.Sector) {
		score += 0.5
		d.finding("Operating in a heavily regulated sector (%s)", snap.Sector)
	}

	details[DimensionBusiness] = d.build("Business risk follows compliance posture and sector exposure.")
	return score
}

func isRegulatedSector(sector string) bool {
	switch strings.ToLower(sector) {
	case "finance", "healthcare":
		return true
	}
	return false
}
