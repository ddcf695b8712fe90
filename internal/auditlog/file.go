package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// DefaultPath is the audit file used when none is configured.
const DefaultPath = "data/audit_log.json"

// FileLog stores the audit log as a single indented JSON array. Every Append
// is a read-modify-write of the whole file, replaced atomically by rename.
// A missing file reads as an empty log; a corrupt file is reported, never
// overwritten.
type FileLog struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

// NewFileLog returns a FileLog backed by path (DefaultPath when empty). The
// file and its parent directory are created on first Append.
func NewFileLog(path string, logger *zap.Logger) *FileLog {
	if path == "" {
		path = DefaultPath
	}
	return &FileLog{path: path, logger: logger}
}

// Path returns the backing file path.
func (l *FileLog) Path() string { return l.path }

// Append implements Log.
func (l *FileLog) Append(_ context.Context, rec Record) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return nil, err
	}

	var tail *Record
	if n := len(records); n > 0 {
		tail = &records[n-1]
	}
	rec = chain(rec, tail)
	records = append(records, rec)

	if err := l.write(records); err != nil {
		return nil, err
	}

	l.logger.Debug("audit record appended",
		zap.Int("index", rec.Index),
		zap.String("vendor", rec.Vendor),
		zap.String("path", l.path),
	)
	return &rec, nil
}

// List implements Log.
func (l *FileLog) List(_ context.Context, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return nil, err
	}
	return newestFirst(records, limit), nil
}

// Len implements Log.
func (l *FileLog) Len(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Verify implements Log.
func (l *FileLog) Verify(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return err
	}
	return verifyChain(records)
}

func (l *FileLog) read() ([]Record, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode audit log %s: %w", l.path, err)
	}
	return records, nil
}

func (l *FileLog) write(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode audit log: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp audit file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("write audit log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace audit log: %w", err)
	}
	return nil
}
