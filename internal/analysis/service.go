package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/auditlog"
	"github.com/jmerrifield20/vendorguard/internal/history"
	"github.com/jmerrifield20/vendorguard/internal/risk"
)

// Service runs analyses and records each report in the session history and
// the audit log.
type Service struct {
	analyzer     *Analyzer
	history      *history.Store
	audit        auditlog.Log // nil = no audit writes
	onAuditError func()
	logger       *zap.Logger
}

// NewService creates a Service. audit may be nil to disable audit writes.
func NewService(analyzer *Analyzer, h *history.Store, audit auditlog.Log, logger *zap.Logger) *Service {
	return &Service{
		analyzer: analyzer,
		history:  h,
		audit:    audit,
		logger:   logger,
	}
}

// SetAuditErrorHook installs a callback invoked for every failed audit write.
func (s *Service) SetAuditErrorHook(fn func()) {
	s.onAuditError = fn
}

// Analyzer returns the wrapped Analyzer.
func (s *Service) Analyzer() *Analyzer { return s.analyzer }

// History returns the session history store.
func (s *Service) History() *history.Store { return s.history }

// Audit returns the audit log, or nil when auditing is disabled.
func (s *Service) Audit() auditlog.Log { return s.audit }

// Run analyses vendor and records the report. Recording never fails the
// request: audit errors are logged and counted only.
func (s *Service) Run(ctx context.Context, vendor string) risk.Report {
	r := s.analyzer.Analyze(ctx, vendor)
	s.history.Append(r)
	s.appendAudit(ctx, r)
	return r
}

// appendAudit writes the audit record in a non-fatal manner. The write is
// detached from ctx cancellation so a dropped client does not lose the record.
func (s *Service) appendAudit(ctx context.Context, r risk.Report) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(context.WithoutCancel(ctx), auditlog.NewRecord(r)); err != nil {
		s.logger.Warn("audit append failed (non-fatal)",
			zap.String("vendor", r.VendorName),
			zap.String("analysis_id", r.ID),
			zap.Error(err),
		)
		if s.onAuditError != nil {
			s.onAuditError()
		}
	}
}
