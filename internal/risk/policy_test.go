package risk_test

import (
	"errors"
	"math"
	"testing"

	"github.com/jmerrifield20/vendorguard/internal/risk"
)

func TestWeightedPolicy_bandBoundaries(t *testing.T) {
	p := risk.WeightedPolicy()
	cases := []struct {
		aggregate float64
		want      risk.Recommendation
	}{
		{1.0, risk.Approve},
		{3.5, risk.Approve},
		{3.6, risk.FlagForReview},
		{6.5, risk.FlagForReview},
		{6.6, risk.Reject},
		{10.0, risk.Reject},
	}
	for _, tc := range cases {
		if got := p.Recommend(tc.aggregate); got != tc.want {
			t.Errorf("Recommend(%v) = %s, want %s", tc.aggregate, got, tc.want)
		}
	}
}

func TestAveragedPolicy_bandBoundaries(t *testing.T) {
	p := risk.AveragedPolicy()
	cases := []struct {
		aggregate float64
		want      risk.Recommendation
	}{
		{1, risk.Approve},
		{3, risk.Approve},
		{4, risk.FlagForReview},
		{6, risk.FlagForReview},
		{7, risk.Reject},
		{10, risk.Reject},
	}
	for _, tc := range cases {
		if got := p.Recommend(tc.aggregate); got != tc.want {
			t.Errorf("Recommend(%v) = %s, want %s", tc.aggregate, got, tc.want)
		}
	}
}

func TestWeightedPolicy_aggregateRoundsHalfUp(t *testing.T) {
	p := risk.WeightedPolicy()
	got := p.Aggregate(map[risk.Dimension]int{
		risk.Financial:  2,
		risk.Security:   9,
		risk.Compliance: 3,
		risk.Reputation: 1,
	})
	// 0.5 + 3.15 + 0.75 + 0.15 = 4.55
	if got != 4.6 {
		t.Errorf("Aggregate = %v, want 4.6", got)
	}
}

func TestAveragedPolicy_aggregate(t *testing.T) {
	p := risk.AveragedPolicy()
	cases := []struct {
		scores [4]int
		want   float64
	}{
		{[4]int{1, 1, 1, 1}, 1},
		{[4]int{2, 9, 3, 1}, 4},    // 3.75
		{[4]int{5, 5, 4, 4}, 5},    // 4.5 rounds away from zero
		{[4]int{10, 10, 9, 9}, 10}, // 9.5
		{[4]int{3, 3, 3, 4}, 3},    // 3.25
	}
	for _, tc := range cases {
		scores := map[risk.Dimension]int{}
		for i, d := range risk.Dimensions {
			scores[d] = tc.scores[i]
		}
		if got := p.Aggregate(scores); got != tc.want {
			t.Errorf("Aggregate(%v) = %v, want %v", tc.scores, got, tc.want)
		}
	}
}

func TestAggregate_missingDimensionDefaults(t *testing.T) {
	p := risk.WeightedPolicy()
	if got := p.Aggregate(nil); got != 5.0 {
		t.Errorf("Aggregate(nil) = %v, want 5.0", got)
	}
}

func TestNewWeightedPolicy_validation(t *testing.T) {
	valid := map[risk.Dimension]float64{
		risk.Financial: 0.4, risk.Security: 0.3, risk.Compliance: 0.2, risk.Reputation: 0.1,
	}
	if _, err := risk.NewWeightedPolicy("custom", valid, 4, 7); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}

	cases := map[string]struct {
		weights               map[risk.Dimension]float64
		approveMax, reviewMax float64
	}{
		"sum below one": {
			weights:    map[risk.Dimension]float64{risk.Financial: 0.25, risk.Security: 0.25, risk.Compliance: 0.25, risk.Reputation: 0.2},
			approveMax: 3.5, reviewMax: 6.5,
		},
		"negative weight": {
			weights:    map[risk.Dimension]float64{risk.Financial: 1.2, risk.Security: -0.2, risk.Compliance: 0, risk.Reputation: 0},
			approveMax: 3.5, reviewMax: 6.5,
		},
		"missing dimension": {
			weights:    map[risk.Dimension]float64{risk.Financial: 0.5, risk.Security: 0.5},
			approveMax: 3.5, reviewMax: 6.5,
		},
		"unknown dimension": {
			weights:    map[risk.Dimension]float64{risk.Financial: 0.25, risk.Security: 0.25, risk.Compliance: 0.25, risk.Reputation: 0.25, "legal": 0},
			approveMax: 3.5, reviewMax: 6.5,
		},
		"inverted cut points": {
			weights:    valid,
			approveMax: 6.5, reviewMax: 3.5,
		},
		"cut point out of range": {
			weights:    valid,
			approveMax: 3.5, reviewMax: 11,
		},
		"default score approved": {
			weights:    valid,
			approveMax: 6, reviewMax: 8,
		},
		"default score rejected": {
			weights:    valid,
			approveMax: 1, reviewMax: 4,
		},
		"NaN cut point": {
			weights:    valid,
			approveMax: 3.5, reviewMax: math.NaN(),
		},
		"NaN weight": {
			weights:    map[risk.Dimension]float64{risk.Financial: math.NaN(), risk.Security: 0.3, risk.Compliance: 0.2, risk.Reputation: 0.1},
			approveMax: 3.5, reviewMax: 6.5,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := risk.NewWeightedPolicy("custom", tc.weights, tc.approveMax, tc.reviewMax)
			if !errors.Is(err, risk.ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestPolicy_WithCutPoints(t *testing.T) {
	p, err := risk.WeightedPolicy().WithCutPoints(4, 7)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "custom-weighted" {
		t.Errorf("Name = %q, want custom-weighted", p.Name())
	}
	if got := p.Recommend(p.Aggregate(nil)); got != risk.FlagForReview {
		t.Errorf("all-default recommendation = %s, want FLAG_FOR_REVIEW", got)
	}

	cases := map[string][2]float64{
		"default score approved": {6, 8},
		"default score rejected": {1, 4},
		"NaN":                    {2, math.NaN()},
		"infinite":               {math.Inf(-1), 6},
	}
	for name, cut := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := risk.AveragedPolicy().WithCutPoints(cut[0], cut[1]); !errors.Is(err, risk.ErrInvalidPolicy) {
				t.Errorf("WithCutPoints(%v, %v) = %v, want ErrInvalidPolicy", cut[0], cut[1], err)
			}
		})
	}
}

func TestPolicy_WithLayout(t *testing.T) {
	p, err := risk.WeightedPolicy().WithLayout(risk.LayoutNested)
	if err != nil {
		t.Fatal(err)
	}
	if p.Layout() != risk.LayoutNested {
		t.Errorf("Layout() = %s, want nested", p.Layout())
	}
	if _, err := p.WithLayout("xml"); !errors.Is(err, risk.ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy for unknown layout, got %v", err)
	}
}

func TestPolicy_View(t *testing.T) {
	v := risk.WeightedPolicy().View()
	if v.Weights["security"] != 0.35 {
		t.Errorf("security weight = %v, want 0.35", v.Weights["security"])
	}
	if len(v.Bands) != 3 || v.Bands[0].Max != 3.5 || v.Bands[1].Max != 6.5 {
		t.Errorf("unexpected bands: %+v", v.Bands)
	}

	av := risk.AveragedPolicy().View()
	if av.Weights != nil {
		t.Errorf("averaged policy should not report weights, got %v", av.Weights)
	}
}
