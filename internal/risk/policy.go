package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidPolicy is returned when a Policy fails validation.
var ErrInvalidPolicy = errors.New("invalid scoring policy")

// Aggregation selects how four dimension scores become one aggregate.
type Aggregation string

const (
	// AggregationWeighted sums score*weight and rounds to one decimal.
	AggregationWeighted Aggregation = "weighted"
	// AggregationAveraged takes the mean and rounds to the nearest integer.
	AggregationAveraged Aggregation = "averaged"
)

// Layout names the JSON shape the model is asked to produce.
type Layout string

const (
	// LayoutFlat: financial_risk{score,explanation,key_facts}, weighted_score, confidence_level.
	LayoutFlat Layout = "flat"
	// LayoutNested: dimensions.financial{score,summary,findings,sources}, overall_score, confidence.
	LayoutNested Layout = "nested"
)

// Policy is the scoring configuration: aggregation rule, decision cut points
// and model field layout. It is an immutable value; build one with
// WeightedPolicy, AveragedPolicy or NewWeightedPolicy.
type Policy struct {
	name        string
	aggregation Aggregation
	weights     map[Dimension]decimal.Decimal
	approveMax  decimal.Decimal
	reviewMax   decimal.Decimal
	layout      Layout
}

// WeightedPolicy returns the default weighted preset:
// financial 25%, security 35%, compliance 25%, reputation 15%;
// APPROVE ≤ 3.5 < FLAG_FOR_REVIEW ≤ 6.5 < REJECT.
func WeightedPolicy() Policy {
	p, err := NewWeightedPolicy("weighted", map[Dimension]float64{
		Financial:  0.25,
		Security:   0.35,
		Compliance: 0.25,
		Reputation: 0.15,
	}, 3.5, 6.5)
	if err != nil {
		panic(err) // preset constants are valid
	}
	return p
}

// AveragedPolicy returns the averaged preset: the rounded mean of the four
// scores; APPROVE ≤ 3 < FLAG_FOR_REVIEW ≤ 6 < REJECT.
func AveragedPolicy() Policy {
	return Policy{
		name:        "averaged",
		aggregation: AggregationAveraged,
		approveMax:  decimal.NewFromInt(3),
		reviewMax:   decimal.NewFromInt(6),
		layout:      LayoutNested,
	}
}

// NewWeightedPolicy builds a custom weighted policy. Every dimension needs a
// non-negative weight and the weights must sum to exactly 1.0.
func NewWeightedPolicy(name string, weights map[Dimension]float64, approveMax, reviewMax float64) (Policy, error) {
	if err := checkFinite(approveMax, reviewMax); err != nil {
		return Policy{}, err
	}
	p := Policy{
		name:        name,
		aggregation: AggregationWeighted,
		weights:     make(map[Dimension]decimal.Decimal, len(Dimensions)),
		approveMax:  decimal.NewFromFloat(approveMax),
		reviewMax:   decimal.NewFromFloat(reviewMax),
		layout:      LayoutFlat,
	}
	if p.name == "" {
		p.name = string(AggregationWeighted)
	}

	sum := decimal.Zero
	for _, d := range Dimensions {
		w, ok := weights[d]
		if !ok {
			return Policy{}, fmt.Errorf("%w: missing weight for %s", ErrInvalidPolicy, d)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return Policy{}, fmt.Errorf("%w: weight for %s is not a finite number", ErrInvalidPolicy, d)
		}
		if w < 0 {
			return Policy{}, fmt.Errorf("%w: negative weight %v for %s", ErrInvalidPolicy, w, d)
		}
		dw := decimal.NewFromFloat(w)
		p.weights[d] = dw
		sum = sum.Add(dw)
	}
	if len(weights) != len(Dimensions) {
		return Policy{}, fmt.Errorf("%w: weights name unknown dimensions", ErrInvalidPolicy)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return Policy{}, fmt.Errorf("%w: weights sum to %s, want 1", ErrInvalidPolicy, sum)
	}
	if err := p.validateCutPoints(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// WithCutPoints returns a copy of p with new decision cut points. A preset
// keeps its aggregation but is renamed custom-<aggregation>, so reports do
// not claim the preset's bands.
func (p Policy) WithCutPoints(approveMax, reviewMax float64) (Policy, error) {
	if err := checkFinite(approveMax, reviewMax); err != nil {
		return Policy{}, err
	}
	if p.name == string(p.aggregation) {
		p.name = "custom-" + string(p.aggregation)
	}
	p.approveMax = decimal.NewFromFloat(approveMax)
	p.reviewMax = decimal.NewFromFloat(reviewMax)
	if err := p.validateCutPoints(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// WithLayout returns a copy of p that asks the model for layout l.
func (p Policy) WithLayout(l Layout) (Policy, error) {
	if l != LayoutFlat && l != LayoutNested {
		return Policy{}, fmt.Errorf("%w: unknown layout %q", ErrInvalidPolicy, l)
	}
	p.layout = l
	return p, nil
}

func (p Policy) validateCutPoints() error {
	lo, hi := decimal.NewFromInt(MinScore), decimal.NewFromInt(MaxScore)
	if p.approveMax.LessThan(lo) || p.reviewMax.GreaterThan(hi) {
		return fmt.Errorf("%w: cut points %s/%s outside [%d,%d]", ErrInvalidPolicy, p.approveMax, p.reviewMax, MinScore, MaxScore)
	}
	if !p.approveMax.LessThan(p.reviewMax) {
		return fmt.Errorf("%w: approve cut point %s must be below review cut point %s", ErrInvalidPolicy, p.approveMax, p.reviewMax)
	}
	// The all-default aggregate must land in FLAG_FOR_REVIEW, the band every
	// fallback report carries.
	def := decimal.NewFromInt(DefaultScore)
	if !p.approveMax.LessThan(def) || p.reviewMax.LessThan(def) {
		return fmt.Errorf("%w: cut points %s/%s must place the default score %d in FLAG_FOR_REVIEW",
			ErrInvalidPolicy, p.approveMax, p.reviewMax, DefaultScore)
	}
	return nil
}

func checkFinite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: cut point %v is not a finite number", ErrInvalidPolicy, v)
		}
	}
	return nil
}

// Name returns the policy name reported in Report.ScoringPolicy.
func (p Policy) Name() string { return p.name }

// Aggregation returns the aggregation rule.
func (p Policy) Aggregation() Aggregation { return p.aggregation }

// Layout returns the model field layout.
func (p Policy) Layout() Layout { return p.layout }

// Weight returns the weight of d, or 0 for averaged policies.
func (p Policy) Weight(d Dimension) float64 {
	return p.weights[d].InexactFloat64()
}

// CutPoints returns the upper bounds of the APPROVE and FLAG_FOR_REVIEW bands.
func (p Policy) CutPoints() (approveMax, reviewMax float64) {
	return p.approveMax.InexactFloat64(), p.reviewMax.InexactFloat64()
}

// Aggregate computes the aggregate score from the four dimension scores.
// Missing dimensions count as DefaultScore. Arithmetic is exact decimal and
// rounds half away from zero, so 4.55 becomes 4.6 and a mean of 4.5 becomes 5.
func (p Policy) Aggregate(scores map[Dimension]int) float64 {
	return p.aggregate(scores).InexactFloat64()
}

func (p Policy) aggregate(scores map[Dimension]int) decimal.Decimal {
	score := func(d Dimension) decimal.Decimal {
		s, ok := scores[d]
		if !ok {
			s = DefaultScore
		}
		return decimal.NewFromInt(int64(s))
	}

	switch p.aggregation {
	case AggregationWeighted:
		total := decimal.Zero
		for _, d := range Dimensions {
			total = total.Add(score(d).Mul(p.weights[d]))
		}
		return total.Round(1)
	default:
		total := decimal.Zero
		for _, d := range Dimensions {
			total = total.Add(score(d))
		}
		mean := total.Div(decimal.NewFromInt(int64(len(Dimensions)))).Round(0)
		return decimal.Min(decimal.Max(mean, decimal.NewFromInt(MinScore)), decimal.NewFromInt(MaxScore))
	}
}

// Recommend maps an aggregate score to a Recommendation using the cut points:
// aggregate ≤ approveMax → APPROVE, ≤ reviewMax → FLAG_FOR_REVIEW, else REJECT.
func (p Policy) Recommend(aggregate float64) Recommendation {
	return p.recommend(decimal.NewFromFloat(aggregate))
}

func (p Policy) recommend(aggregate decimal.Decimal) Recommendation {
	switch {
	case aggregate.LessThanOrEqual(p.approveMax):
		return Approve
	case aggregate.LessThanOrEqual(p.reviewMax):
		return FlagForReview
	default:
		return Reject
	}
}

// Band is one contiguous recommendation range.
type Band struct {
	Recommendation Recommendation `json:"recommendation"`
	Min            float64        `json:"min"`
	Max            float64        `json:"max"`
}

// PolicyView is the JSON description of a Policy.
type PolicyView struct {
	Name        string             `json:"name"`
	Aggregation Aggregation        `json:"aggregation"`
	Layout      Layout             `json:"layout"`
	Weights     map[string]float64 `json:"weights,omitempty"`
	Bands       []Band             `json:"bands"`
}

// View describes p for API consumers.
func (p Policy) View() PolicyView {
	v := PolicyView{
		Name:        p.name,
		Aggregation: p.aggregation,
		Layout:      p.layout,
	}
	if p.aggregation == AggregationWeighted {
		v.Weights = make(map[string]float64, len(Dimensions))
		for _, d := range Dimensions {
			v.Weights[string(d)] = p.Weight(d)
		}
	}
	approveMax, reviewMax := p.CutPoints()
	v.Bands = []Band{
		{Recommendation: Approve, Min: MinScore, Max: approveMax},
		{Recommendation: FlagForReview, Min: approveMax, Max: reviewMax},
		{Recommendation: Reject, Min: reviewMax, Max: MaxScore},
	}
	return v
}
