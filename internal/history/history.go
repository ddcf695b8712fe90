// Package history keeps the reports produced during the lifetime of a
// process, newest first, with running recommendation counters.
package history

import (
	"errors"
	"sync"

	"github.com/jmerrifield20/vendorguard/internal/risk"
)

// ErrNotFound is returned by Get for an unknown analysis ID.
var ErrNotFound = errors.New("report not found")

// Stats are the running counters over every report appended to a Store,
// including reports already evicted by the capacity bound.
type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Flagged  int `json:"flagged"`
	Rejected int `json:"rejected"`
}

// Store is an append-only, in-memory report history safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	reports  []risk.Report // oldest first
	capacity int
	stats    Stats
}

// New returns a Store. capacity <= 0 keeps every report; otherwise the oldest
// reports are dropped once capacity is exceeded.
func New(capacity int) *Store {
	return &Store{capacity: capacity}
}

// Append records r.
func (s *Store) Append(r risk.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, r)
	if s.capacity > 0 && len(s.reports) > s.capacity {
		drop := len(s.reports) - s.capacity
		s.reports = append([]risk.Report(nil), s.reports[drop:]...)
	}

	s.stats.Total++
	switch r.Recommendation {
	case risk.Approve:
		s.stats.Approved++
	case risk.FlagForReview:
		s.stats.Flagged++
	case risk.Reject:
		s.stats.Rejected++
	}
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) []risk.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.reports)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]risk.Report, 0, n)
	for i := len(s.reports) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.reports[i])
	}
	return out
}

// Get returns the report with the given analysis ID.
func (s *Store) Get(id string) (risk.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].ID == id {
			return s.reports[i], nil
		}
	}
	return risk.Report{}, ErrNotFound
}

// Len returns the number of reports currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Stats returns the running counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
