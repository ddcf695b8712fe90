// Package health runs periodic dependency probes (model credentials, audit
// chain, database) and exposes an aggregate readiness status.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status values reported per probe and overall.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusUnknown  = "unknown"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// StatusChangeFunc is called when the overall status flips.
type StatusChangeFunc func(healthy bool)

// ProbeStatus is the last known state of one probe.
type ProbeStatus struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	FailCount int       `json:"fail_count"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// Report is the readiness snapshot served by /readyz.
type Report struct {
	Status string                 `json:"status"`
	Probes map[string]ProbeStatus `json:"probes"`
}

// Healthy reports whether every probe is below the failure threshold.
func (r Report) Healthy() bool { return r.Status != StatusDegraded }

// Checker runs registered probes and tracks consecutive failures.
type Checker struct {
	mu       sync.Mutex
	names    []string
	probes   map[string]Probe
	state    map[string]ProbeStatus
	healthy  bool
	cfg      Config
	onChange StatusChangeFunc
	logger   *zap.Logger
}

// New creates a new Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		probes:  make(map[string]Probe),
		state:   make(map[string]ProbeStatus),
		healthy: true,
		cfg:     cfg,
		logger:  logger,
	}
}

// Add registers a named probe. Adding a name twice replaces the probe.
func (h *Checker) Add(name string, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.probes[name]; !ok {
		h.names = append(h.names, name)
		sort.Strings(h.names)
	}
	h.probes[name] = p
	h.state[name] = ProbeStatus{Status: StatusUnknown}
}

// SetStatusChange configures the overall status callback.
func (h *Checker) SetStatusChange(fn StatusChangeFunc) {
	h.onChange = fn
}

// Start runs CheckAll immediately and then on every interval until ctx is done.
func (h *Checker) Start(ctx context.Context) {
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every probe concurrently and updates the status.
func (h *Checker) CheckAll(ctx context.Context) {
	h.mu.Lock()
	probes := make(map[string]Probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for name, p := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()

			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			err := probe(pctx)
			cancel()

			h.record(name, err)
		}(name, p)
	}
	wg.Wait()

	h.evaluate()
}

func (h *Checker) record(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state[name]
	st.CheckedAt = time.Now().UTC()
	if err == nil {
		if st.FailCount >= h.cfg.FailThreshold {
			h.logger.Info("health: recovered", zap.String("probe", name))
		}
		st.Status = StatusHealthy
		st.Error = ""
		st.FailCount = 0
	} else {
		st.FailCount++
		st.Error = err.Error()
		if st.FailCount >= h.cfg.FailThreshold {
			st.Status = StatusDegraded
		}
		if st.FailCount == h.cfg.FailThreshold {
			h.logger.Warn("health: degraded",
				zap.String("probe", name),
				zap.Int("fail_count", st.FailCount),
				zap.Error(err),
			)
		}
	}
	h.state[name] = st
}

func (h *Checker) evaluate() {
	h.mu.Lock()
	healthy := true
	for _, st := range h.state {
		if st.Status == StatusDegraded {
			healthy = false
			break
		}
	}
	changed := healthy != h.healthy
	h.healthy = healthy
	h.mu.Unlock()

	if changed && h.onChange != nil {
		h.onChange(healthy)
	}
}

// Report returns the current readiness snapshot.
func (h *Checker) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := Report{Status: StatusHealthy, Probes: make(map[string]ProbeStatus, len(h.names))}
	if !h.healthy {
		r.Status = StatusDegraded
	}
	for _, name := range h.names {
		r.Probes[name] = h.state[name]
	}
	return r
}
