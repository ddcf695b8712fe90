package risk

import (
	"fmt"
	"time"
)

const unavailableExplanation = "Analysis unavailable due to an error."

// Fallback builds the schema-complete, low-confidence report returned when an
// analysis cannot complete. Every dimension scores DefaultScore, confidence is
// Low and the recommendation is always FLAG_FOR_REVIEW: a failure never
// approves or rejects a vendor.
func Fallback(vendor, cause string, p Policy, now time.Time) Report {
	if cause == "" {
		cause = "unknown error"
	}
	now = now.UTC()

	r := Report{
		VendorName:       vendor,
		AnalysisDate:     now.Format(DateLayout),
		ScoringPolicy:    p.name,
		ConfidenceLevel:  ConfidenceLow,
		ConfidenceReason: "API error: " + cause,
		Recommendation:   FlagForReview,
		RecommendationReason: "Automated analysis could not complete. " +
			"Manual research is required before any decision.",
		ExecutiveSummary: fmt.Sprintf("Analysis failed due to: %s. "+
			"Please verify the model API credentials and retry.", cause),
		KeyFindings: []string{"Analysis failed: " + cause},
		NextSteps: []string{
			"Verify the model API key and endpoint configuration",
			"Confirm the model deployment is active and reachable",
			"Retry the analysis once connectivity is confirmed",
		},
		Disclaimer: Disclaimer,
		Error:      cause,
		Timestamp:  now,
	}

	scores := make(map[Dimension]int, len(Dimensions))
	for _, d := range Dimensions {
		*r.Dimension(d) = DimensionResult{
			Score:       DefaultScore,
			Explanation: unavailableExplanation,
			KeyFacts:    []string{},
		}
		scores[d] = DefaultScore
	}
	r.Financial.KeyFacts = []string{"Error: " + cause}
	r.AggregateScore = p.Aggregate(scores)
	return r
}
