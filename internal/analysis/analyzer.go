// Package analysis runs a single vendor risk assessment end to end and
// records the result.
//
// Analyzer.Analyze never fails: every error on the path from credential
// check to score enforcement is classified (see Kind), logged and turned
// into a Fallback report.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/llm"
	"github.com/jmerrifield20/vendorguard/internal/risk"
)

// Hooks receive analysis outcomes, typically to update metrics. Nil fields
// are skipped.
type Hooks struct {
	// Completed is called once per Analyze call with the final report.
	Completed func(r risk.Report, elapsed time.Duration)
	// Failed is called for every classified failure before fallback.
	Failed func(kind Kind)
}

// Analyzer turns a vendor name into an enforced risk.Report.
type Analyzer struct {
	completer   llm.Completer
	policy      risk.Policy
	temperature float32
	maxTokens   int
	now         func() time.Time
	newID       func() string
	hooks       Hooks
	logger      *zap.Logger
}

// NewAnalyzer creates an Analyzer that queries completer and scores with policy.
func NewAnalyzer(completer llm.Completer, policy risk.Policy, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		completer:   completer,
		policy:      policy,
		temperature: llm.DefaultTemperature,
		maxTokens:   llm.DefaultMaxTokens,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger,
	}
}

// SetSampling overrides the model temperature and completion token budget.
// Non-positive maxTokens keeps the current value.
func (a *Analyzer) SetSampling(temperature float32, maxTokens int) {
	a.temperature = temperature
	if maxTokens > 0 {
		a.maxTokens = maxTokens
	}
}

// SetClock replaces the time source used for timestamps and analysis dates.
func (a *Analyzer) SetClock(now func() time.Time) {
	a.now = now
}

// SetHooks installs outcome callbacks.
func (a *Analyzer) SetHooks(h Hooks) {
	a.hooks = h
}

// Policy returns the scoring policy in use.
func (a *Analyzer) Policy() risk.Policy {
	return a.policy
}

// Analyze assesses vendor. It never returns an error and never panics; on
// failure the result is a Fallback report with Error set.
func (a *Analyzer) Analyze(ctx context.Context, vendor string) (report risk.Report) {
	start := a.now()
	defer func() {
		if v := recover(); v != nil {
			report = a.fallback(vendor, panicError(v), start)
		}
		if a.hooks.Completed != nil {
			a.hooks.Completed(report, a.now().Sub(start))
		}
	}()

	r, err := a.run(ctx, vendor)
	if err != nil {
		return a.fallback(vendor, err, start)
	}
	r = a.finalize(r, vendor, start)

	a.logger.Info("vendor analysed",
		zap.String("vendor", vendor),
		zap.String("analysis_id", r.ID),
		zap.Float64("aggregate_score", r.AggregateScore),
		zap.String("recommendation", string(r.Recommendation)),
		zap.String("confidence", string(r.ConfidenceLevel)),
	)
	return r
}

func (a *Analyzer) run(ctx context.Context, vendor string) (risk.Report, error) {
	if err := a.completer.Preflight(); err != nil {
		return risk.Report{}, newError(KindConfiguration, err)
	}

	prompt := risk.BuildPrompt(vendor, a.policy)
	raw, err := a.completer.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		// An empty answer reached us intact; there is just no JSON in it.
		if errors.Is(err, llm.ErrEmptyCompletion) {
			return risk.Report{}, newError(KindMalformedResponse, err)
		}
		return risk.Report{}, newError(KindTransport, err)
	}

	obj, err := risk.ParseResponse(raw)
	if err != nil {
		if errors.Is(err, risk.ErrMalformedResponse) {
			return risk.Report{}, newError(KindMalformedResponse, err)
		}
		return risk.Report{}, newError(KindParse, err)
	}
	return risk.Decode(obj, a.policy), nil
}

// finalize fills the orchestrator-owned fields and enforces the policy.
func (a *Analyzer) finalize(r risk.Report, vendor string, start time.Time) risk.Report {
	now := start.UTC()
	if r.VendorName == "" {
		r.VendorName = vendor
	}
	if _, err := time.Parse(risk.DateLayout, r.AnalysisDate); err != nil {
		r.AnalysisDate = now.Format(risk.DateLayout)
	}
	r.ID = a.newID()
	r.Disclaimer = risk.Disclaimer
	r.Timestamp = now
	r.Error = ""
	return a.policy.Enforce(r)
}

func (a *Analyzer) fallback(vendor string, err error, start time.Time) risk.Report {
	kind := KindOf(err)
	a.logger.Warn("vendor analysis failed; returning fallback report",
		zap.String("vendor", vendor),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	if a.hooks.Failed != nil {
		a.hooks.Failed(kind)
	}

	r := risk.Fallback(vendor, err.Error(), a.policy, start)
	r.ID = a.newID()
	return r
}
