// Package risk normalises untrusted LLM vendor-risk output into a
// well-formed, policy-consistent Report.
//
// The model is asked for a JSON report (BuildPrompt), its raw text is reduced
// to a JSON object (ParseResponse), the object is read into a typed Report
// (Decode) and finally the scores, aggregate and recommendation are enforced
// against a Policy (Policy.Enforce). When any step fails the caller builds a
// Fallback report instead.
package risk

import (
	"strings"
	"time"
)

// Dimension is one of the four fixed risk categories.
type Dimension string

const (
	Financial  Dimension = "financial"
	Security   Dimension = "security"
	Compliance Dimension = "compliance"
	Reputation Dimension = "reputation"
)

// Dimensions lists every Dimension in canonical order.
var Dimensions = []Dimension{Financial, Security, Compliance, Reputation}

// Score bounds. A score outside [MinScore, MaxScore] is replaced by DefaultScore.
const (
	MinScore     = 1
	MaxScore     = 10
	DefaultScore = 5
)

// Recommendation is the final vendor decision.
type Recommendation string

const (
	Approve       Recommendation = "APPROVE"
	FlagForReview Recommendation = "FLAG_FOR_REVIEW"
	Reject        Recommendation = "REJECT"
)

// Confidence is the model's self-assessed evidence strength.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ParseConfidence maps free text to a Confidence. Unknown values map to Low.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Disclaimer is attached to every report.
const Disclaimer = "This is AI-generated analysis based on publicly available information. " +
	"All vendor decisions require human review and verification. Scores are probabilistic " +
	"estimates, not definitive assessments."

// DateLayout is the analysis_date format.
const DateLayout = "2006-01-02"

// DimensionResult is the assessment of a single Dimension.
type DimensionResult struct {
	Score       int      `json:"score"                 yaml:"score"`
	Explanation string   `json:"explanation"           yaml:"explanation"`
	KeyFacts    []string `json:"key_facts"             yaml:"key_facts"`
	Sources     []string `json:"sources,omitempty"     yaml:"sources,omitempty"`
}

// Report is the normalised vendor risk report. Its JSON field names are the
// external schema consumed by the API, the audit log and file exports.
type Report struct {
	ID           string          `json:"analysis_id"     yaml:"analysis_id"`
	VendorName   string          `json:"vendor_name"     yaml:"vendor_name"`
	AnalysisDate string          `json:"analysis_date"   yaml:"analysis_date"`
	Financial    DimensionResult `json:"financial_risk"  yaml:"financial_risk"`
	Security     DimensionResult `json:"security_risk"   yaml:"security_risk"`
	Compliance   DimensionResult `json:"compliance_risk" yaml:"compliance_risk"`
	Reputation   DimensionResult `json:"reputation_risk" yaml:"reputation_risk"`

	// AggregateScore is recomputed from the four enforced scores; see Policy.Aggregate.
	AggregateScore float64 `json:"aggregate_score" yaml:"aggregate_score"`
	ScoringPolicy  string  `json:"scoring_policy"  yaml:"scoring_policy"`

	ConfidenceLevel  Confidence `json:"confidence_level"  yaml:"confidence_level"`
	ConfidenceReason string     `json:"confidence_reason" yaml:"confidence_reason"`

	// Recommendation is always derived from AggregateScore; see Policy.Recommend.
	Recommendation       Recommendation `json:"recommendation"        yaml:"recommendation"`
	RecommendationReason string         `json:"recommendation_reason" yaml:"recommendation_reason"`

	ExecutiveSummary string   `json:"executive_summary" yaml:"executive_summary"`
	KeyFindings      []string `json:"key_findings"      yaml:"key_findings"`
	NextSteps        []string `json:"next_steps"        yaml:"next_steps"`
	Disclaimer       string   `json:"disclaimer"        yaml:"disclaimer"`

	// Error is set only on fallback reports.
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"       yaml:"timestamp"`
}

// Dimension returns a pointer to the result for d, or nil for an unknown dimension.
func (r *Report) Dimension(d Dimension) *DimensionResult {
	switch d {
	case Financial:
		return &r.Financial
	case Security:
		return &r.Security
	case Compliance:
		return &r.Compliance
	case Reputation:
		return &r.Reputation
	default:
		return nil
	}
}

// Scores returns the four dimension scores keyed by Dimension.
func (r *Report) Scores() map[Dimension]int {
	out := make(map[Dimension]int, len(Dimensions))
	for _, d := range Dimensions {
		out[d] = r.Dimension(d).Score
	}
	return out
}

// IsFallback reports whether r was produced by Fallback.
func (r *Report) IsFallback() bool {
	return r.Error != ""
}

// RiskLabel maps an aggregate score on the 1-10 scale to a display label.
func RiskLabel(score float64) string {
	switch {
	case score <= 3.5:
		return "Low Risk"
	case score <= 6.5:
		return "Moderate Risk"
	default:
		return "High Risk"
	}
}
