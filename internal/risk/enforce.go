package risk

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// fieldKeys lists the candidate JSON keys for each report field, primary
// layout first. Keys of the other layout are accepted as fallbacks so a
// canonical Report can be decoded under either policy.
type fieldKeys struct {
	vendor     []string
	confidence []string
	reason     []string
	text       []string
	facts      []string
}

var (
	flatKeys = fieldKeys{
		vendor:     []string{"vendor_name", "vendor"},
		confidence: []string{"confidence_level", "confidence"},
		reason:     []string{"recommendation_reason", "human_review_reason"},
		text:       []string{"explanation", "summary"},
		facts:      []string{"key_facts", "findings", "evidence"},
	}
	nestedKeys = fieldKeys{
		vendor:     []string{"vendor", "vendor_name"},
		confidence: []string{"confidence", "confidence_level"},
		reason:     []string{"human_review_reason", "recommendation_reason"},
		text:       []string{"summary", "explanation"},
		facts:      []string{"findings", "key_facts", "evidence"},
	}
)

// Decode reads an arbitrary parsed model object into a typed Report.
// Missing or wrong-typed fields take zero values; an unusable score decodes
// as 0, which Enforce later replaces with DefaultScore. The model's own
// aggregate, recommendation and error fields are ignored.
func Decode(obj map[string]any, p Policy) Report {
	keys := flatKeys
	if p.layout == LayoutNested {
		keys = nestedKeys
	}

	r := Report{
		ID:                   str(obj["analysis_id"]),
		VendorName:           firstString(obj, keys.vendor),
		AnalysisDate:         str(obj["analysis_date"]),
		ConfidenceLevel:      Confidence(firstString(obj, keys.confidence)),
		ConfidenceReason:     str(obj["confidence_reason"]),
		RecommendationReason: firstString(obj, keys.reason),
		ExecutiveSummary:     text(obj["executive_summary"]),
		KeyFindings:          strs(obj["key_findings"]),
		NextSteps:            strs(obj["next_steps"]),
	}

	for _, d := range Dimensions {
		raw := dimensionObject(obj, d, p.layout)
		dr := r.Dimension(d)
		dr.Score = coerceScore(raw["score"])
		dr.Explanation = firstString(raw, keys.text)
		dr.KeyFacts = firstStrings(raw, keys.facts)
		dr.Sources = strs(raw["sources"])
	}
	return r
}

// dimensionObject finds the object for d under either layout.
func dimensionObject(obj map[string]any, d Dimension, layout Layout) map[string]any {
	flat, _ := obj[string(d)+"_risk"].(map[string]any)
	var nested map[string]any
	if dims, ok := obj["dimensions"].(map[string]any); ok {
		nested, _ = dims[string(d)].(map[string]any)
	}

	if layout == LayoutNested && nested != nil {
		return nested
	}
	if flat != nil {
		return flat
	}
	if nested != nil {
		return nested
	}
	return map[string]any{}
}

// Enforce returns r with every invariant applied: out-of-range scores become
// DefaultScore, the aggregate is recomputed from the enforced scores, the
// recommendation is re-derived from the aggregate, and confidence is one of
// High/Medium/Low. Enforce never fails and Enforce(Enforce(r)) == Enforce(r).
func (p Policy) Enforce(r Report) Report {
	scores := make(map[Dimension]int, len(Dimensions))
	for _, d := range Dimensions {
		dr := r.Dimension(d)
		if dr.Score < MinScore || dr.Score > MaxScore {
			dr.Score = DefaultScore
		}
		if dr.KeyFacts == nil {
			dr.KeyFacts = []string{}
		}
		scores[d] = dr.Score
	}

	agg := p.aggregate(scores)
	r.AggregateScore = agg.InexactFloat64()
	r.Recommendation = p.recommend(agg)
	r.ScoringPolicy = p.name
	r.ConfidenceLevel = ParseConfidence(string(r.ConfidenceLevel))

	if r.KeyFindings == nil {
		r.KeyFindings = []string{}
	}
	if r.NextSteps == nil {
		r.NextSteps = []string{}
	}
	return r
}

// coerceScore converts a model-supplied score to an int. Integers, floats
// (truncated toward zero) and numeric strings are accepted. Anything else, or
// a value outside [MinScore, MaxScore], yields 0.
func coerceScore(v any) int {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		f = n
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	if f < MinScore || f > MaxScore {
		return 0
	}
	return int(f)
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// text accepts a string or a list of strings (joined by spaces).
func text(v any) string {
	if s := str(v); s != "" {
		return s
	}
	return strings.Join(strs(v), " ")
}

// strs accepts a list (non-string items are skipped) or a single string.
func strs(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := str(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstStrings(obj map[string]any, keys []string) []string {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return strs(obj[k])
		}
	}
	return nil
}
