package scoring

// Dimension identifies one of the five risk dimensions.
type Dimension string

const (
	DimensionTechnical       Dimension = "technical"
	DimensionOperational     Dimension = "operational"
	DimensionLegalRegulatory Dimension = "legal_regulatory"
	DimensionEthicalSocietal Dimension = "ethical_societal"
	DimensionBusiness        Dimension = "business"
)

// Dimensions lists the five dimensions in reporting order.
var Dimensions = []Dimension{
	DimensionTechnical,
	DimensionOperational,
	DimensionLegalRegulatory,
	DimensionEthicalSocietal,
	DimensionBusiness,
}

// RiskLevel is the banded headline risk derived from the composite score.
type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "CRITICAL"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelLow      RiskLevel = "LOW"
)

// Weights holds the relative weight of each dimension. Weights are
// normalized to sum to 1 before use, so callers may pass any positive
// values.
type Weights struct {
	Technical       float64 `json:"technical" yaml:"technical"`
	Operational     float64 `json:"operational" yaml:"operational"`
	LegalRegulatory float64 `json:"legal_regulatory" yaml:"legal_regulatory"`
	EthicalSocietal float64 `json:"ethical_societal" yaml:"ethical_societal"`
	Business        float64 `json:"business" yaml:"business"`
}

// DefaultWeights returns the standard dimension weighting, with the
// legal/regulatory dimension weighted heaviest.
func DefaultWeights() Weights {
	return Weights{
		Technical:       0.20,
		Operational:     0.20,
		LegalRegulatory: 0.25,
		EthicalSocietal: 0.20,
		Business:        0.15,
	}
}

func (w Weights) sum() float64 {
	return w.Technical + w.Operational + w.LegalRegulatory + w.EthicalSocietal + w.Business
}

// normalized scales the weights so they sum to 1. A zero or negative sum
// falls back to the defaults rather than erroring.
func (w Weights) normalized() Weights {
	total := w.sum()
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Technical:       w.Technical / total,
		Operational:     w.Operational / total,
		LegalRegulatory: w.LegalRegulatory / total,
		EthicalSocietal: w.EthicalSocietal / total,
		Business:        w.Business / total,
	}
}

// DimensionScores holds the five rounded 1-10 dimension scores.
type DimensionScores struct {
	Technical       int `json:"technical"`
	Operational     int `json:"operational"`
	LegalRegulatory int `json:"legal_regulatory"`
	EthicalSocietal int `json:"ethical_societal"`
	Business        int `json:"business"`
}

// DimensionDetail is the auditable trace behind one dimension score. It is
// part of the scoring contract: every branch that moves a score also
// records why.
type DimensionDetail struct {
	Rationale       string   `json:"rationale"`
	KeyFindings     []string `json:"key_findings"`
	ComplianceGaps  []string `json:"compliance_gaps"`
	Recommendations []string `json:"recommendations"`
}

// Result is the full output of a scoring pass.
type Result struct {
	Scores           DimensionScores               `json:"scores"`
	CompositeScore   float64                       `json:"composite_score"`
	OverallRiskLevel RiskLevel                     `json:"overall_risk_level"`
	Details          map[Dimension]DimensionDetail `json:"dimension_details"`
	Weights          Weights                       `json:"weights"`
}

// LevelForScore maps a composite score to its risk band.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= 9:
		return RiskLevelCritical
	case score >= 7:
		return RiskLevelHigh
	case score >= 4:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
