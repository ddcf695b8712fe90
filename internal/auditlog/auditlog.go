// Package auditlog records one compact, hash-chained entry per completed
// vendor analysis.
//
// Each Record stores the SHA-256 of its predecessor, starting from
// GenesisHash (64 hex zeros), so edits to the stored history are detectable
// via Verify.
//
// Three implementations of the Log interface are provided:
//   - FileLog: a single JSON array file, the default for local deployments.
//   - MemoryLog: in-process, for tests and ephemeral runs.
//   - PostgresLog: durable, for shared deployments.
package auditlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmerrifield20/vendorguard/internal/risk"
)

// GenesisHash is the PrevHash of the first record in every log.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrChainBroken is returned by Verify when a record does not chain to its
// predecessor or its hash does not match its content.
var ErrChainBroken = errors.New("audit chain broken")

// Record is a single audit entry.
type Record struct {
	Index          int       `json:"index"`
	Timestamp      time.Time `json:"timestamp"`
	AnalysisID     string    `json:"analysis_id,omitempty"`
	Vendor         string    `json:"vendor"`
	AggregateScore float64   `json:"aggregate_score"`
	Recommendation string    `json:"recommendation"`
	Confidence     string    `json:"confidence"`
	Fallback       bool      `json:"fallback,omitempty"`
	PrevHash       string    `json:"prev_hash"`
	Hash           string    `json:"hash"`
}

// NewRecord extracts the audit fields from r. Index and hashes are assigned
// by the Log on Append.
func NewRecord(r risk.Report) Record {
	return Record{
		Timestamp:      r.Timestamp.UTC(),
		AnalysisID:     r.ID,
		Vendor:         r.VendorName,
		AggregateScore: r.AggregateScore,
		Recommendation: string(r.Recommendation),
		Confidence:     string(r.ConfidenceLevel),
		Fallback:       r.IsFallback(),
	}
}

// Log is the append-only audit log.
type Log interface {
	// Append chains rec to the current tail and stores it.
	Append(ctx context.Context, rec Record) (*Record, error)

	// List returns up to limit records, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]Record, error)

	// Len returns the number of stored records.
	Len(ctx context.Context) (int, error)

	// Verify walks the log and checks hash consistency.
	Verify(ctx context.Context) error
}

// chain fills in rec's Index, PrevHash and Hash given the current tail.
func chain(rec Record, tail *Record) Record {
	rec.Index = 0
	rec.PrevHash = GenesisHash
	if tail != nil {
		rec.Index = tail.Index + 1
		rec.PrevHash = tail.Hash
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	// Microsecond precision survives a round trip through timestamptz.
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Microsecond)
	rec.Hash = hashRecord(&rec)
	return rec
}

// hashRecord computes a deterministic SHA-256 over a record's fields.
func hashRecord(r *Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s|%t|%s",
		r.Index, r.Timestamp.Format(time.RFC3339Nano),
		r.AnalysisID, r.Vendor,
		strconv.FormatFloat(r.AggregateScore, 'f', -1, 64),
		r.Recommendation, r.Confidence, r.Fallback, r.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// verifyChain checks records in ascending index order.
func verifyChain(records []Record) error {
	prev := GenesisHash
	for i := range records {
		r := &records[i]
		if r.Index != i {
			return fmt.Errorf("%w: record %d has index %d", ErrChainBroken, i, r.Index)
		}
		if r.PrevHash != prev {
			return fmt.Errorf("%w: at index %d", ErrChainBroken, r.Index)
		}
		if r.Hash != hashRecord(r) {
			return fmt.Errorf("%w: record %d has invalid hash", ErrChainBroken, r.Index)
		}
		prev = r.Hash
	}
	return nil
}

// newestFirst returns up to limit records from ascending slice in reverse order.
func newestFirst(ascending []Record, limit int) []Record {
	n := len(ascending)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(ascending) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, ascending[i])
	}
	return out
}
