// Package bootstrap wires a loaded config.Config into the running pieces
// shared by the server and the CLI: model client, analyzer, history, audit
// log and token issuer.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/analysis"
	"github.com/jmerrifield20/vendorguard/internal/auditlog"
	"github.com/jmerrifield20/vendorguard/internal/auth"
	"github.com/jmerrifield20/vendorguard/internal/config"
	"github.com/jmerrifield20/vendorguard/internal/health"
	"github.com/jmerrifield20/vendorguard/internal/history"
	"github.com/jmerrifield20/vendorguard/internal/llm"
)

// App holds everything built from a Config. Call Close when done.
type App struct {
	Config    config.Config
	Completer llm.Completer
	Service   *analysis.Service
	Audit     auditlog.Log
	Tokens    *auth.TokenIssuer // nil when auth.secret is empty

	pool *pgxpool.Pool
}

// Build constructs the App. A missing or placeholder API key is not an error
// here: every analysis then falls back with a configuration error, which is
// also reported by the llm_credentials health probe.
func Build(ctx context.Context, cfg config.Config, hooks analysis.Hooks, logger *zap.Logger) (*App, error) {
	policy, err := cfg.Scoring.Build()
	if err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}

	completer, err := llm.New(cfg.LLM.Client(), logger)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	audit, pool, err := OpenAudit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := NewTokenIssuer(cfg.Auth)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	analyzer := analysis.NewAnalyzer(completer, policy, logger)
	analyzer.SetSampling(cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	analyzer.SetHooks(hooks)

	svc := analysis.NewService(analyzer, history.New(cfg.History.Capacity), audit, logger)

	logger.Info("vendorguard configured",
		zap.String("provider", string(cfg.LLM.Provider)),
		zap.String("policy", policy.Name()),
		zap.String("audit_backend", cfg.Audit.Backend),
		zap.Bool("auth", tokens != nil),
	)

	return &App{
		Config:    cfg,
		Completer: completer,
		Service:   svc,
		Audit:     audit,
		Tokens:    tokens,
		pool:      pool,
	}, nil
}

// OpenAudit opens the configured audit backend. The returned pool is non-nil
// only for the postgres backend and must be closed by the caller.
func OpenAudit(ctx context.Context, cfg config.Config, logger *zap.Logger) (auditlog.Log, *pgxpool.Pool, error) {
	switch cfg.Audit.Backend {
	case config.AuditMemory:
		return auditlog.NewMemoryLog(), nil, nil
	case config.AuditPostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres audit log")
		return auditlog.NewPostgresLog(pool, logger), pool, nil
	case config.AuditFile, "":
		return auditlog.NewFileLog(cfg.Audit.Path, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}

// NewTokenIssuer returns nil, nil when no secret is configured.
func NewTokenIssuer(cfg config.AuthConfig) (*auth.TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, nil
	}
	tokens, err := auth.NewTokenIssuer(cfg.Secret, cfg.Issuer, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	return tokens, nil
}

// RegisterProbes adds the readiness probes for this App to checker.
func (a *App) RegisterProbes(checker *health.Checker) {
	checker.Add("llm_credentials", func(context.Context) error {
		return a.Completer.Preflight()
	})
	if a.Audit != nil {
		checker.Add("audit_chain", a.Audit.Verify)
	}
	if a.pool != nil {
		checker.Add("database", a.pool.Ping)
	}
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
