package auditlog

import (
	"context"
	"sync"
)

// MemoryLog is an in-memory, thread-safe Log.
type MemoryLog struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryLog returns an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append implements Log.
func (l *MemoryLog) Append(_ context.Context, rec Record) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var tail *Record
	if n := len(l.records); n > 0 {
		tail = &l.records[n-1]
	}
	rec = chain(rec, tail)
	l.records = append(l.records, rec)
	return &rec, nil
}

// List implements Log.
func (l *MemoryLog) List(_ context.Context, limit int) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return newestFirst(l.records, limit), nil
}

// Len implements Log.
func (l *MemoryLog) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records), nil
}

// Verify implements Log.
func (l *MemoryLog) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verifyChain(l.records)
}
