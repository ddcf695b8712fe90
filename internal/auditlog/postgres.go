package auditlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises concurrent Append calls across every server
// instance sharing the database.
const advisoryLockKey = int64(2_208_301_117)

const selectColumns = `idx, timestamp, analysis_id, vendor, aggregate_score,
	recommendation, confidence, fallback, prev_hash, hash`

// PostgresLog persists the audit log to the audit_log table created by
// cmd/migrate.
type PostgresLog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLog creates a PostgresLog backed by the given connection pool.
func NewPostgresLog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLog {
	return &PostgresLog{pool: pool, logger: logger}
}

// Append implements Log. The tail read and insert run in one transaction
// holding a transaction-scoped advisory lock.
func (l *PostgresLog) Append(ctx context.Context, rec Record) (*Record, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	var tail *Record
	var prev Record
	err = tx.QueryRow(ctx, "SELECT idx, hash FROM audit_log ORDER BY idx DESC LIMIT 1").
		Scan(&prev.Index, &prev.Hash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read audit tail: %w", err)
	default:
		tail = &prev
	}

	rec = chain(rec, tail)
	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_log (idx, timestamp, analysis_id, vendor, aggregate_score,
		                        recommendation, confidence, fallback, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.Index, rec.Timestamp, rec.AnalysisID, rec.Vendor, rec.AggregateScore,
		rec.Recommendation, rec.Confidence, rec.Fallback, rec.PrevHash, rec.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert audit record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit audit tx: %w", err)
	}

	l.logger.Debug("audit record appended",
		zap.Int("idx", rec.Index),
		zap.String("vendor", rec.Vendor),
	)
	return &rec, nil
}

// List implements Log.
func (l *PostgresLog) List(ctx context.Context, limit int) ([]Record, error) {
	query := "SELECT " + selectColumns + " FROM audit_log ORDER BY idx DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return scanRecords(rows)
}

// Len implements Log.
func (l *PostgresLog) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}

// Verify implements Log. O(n) in log length.
func (l *PostgresLog) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, "SELECT "+selectColumns+" FROM audit_log ORDER BY idx ASC")
	if err != nil {
		return fmt.Errorf("query audit log: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return err
	}
	return verifyChain(records)
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.Index, &r.Timestamp, &r.AnalysisID, &r.Vendor, &r.AggregateScore,
			&r.Recommendation, &r.Confidence, &r.Fallback, &r.PrevHash, &r.Hash,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
