// Package client provides the VendorGuard Go SDK for requesting vendor risk
// analyses and reading reports, stats and the audit log from a running
// vendorguard server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmerrifield20/vendorguard/internal/auditlog"
	"github.com/jmerrifield20/vendorguard/internal/history"
	"github.com/jmerrifield20/vendorguard/internal/risk"
)

// Report, Stats, PolicyView and AuditRecord are the server's wire types.
type (
	Report      = risk.Report
	Stats       = history.Stats
	PolicyView  = risk.PolicyView
	AuditRecord = auditlog.Record
)

var (
	// ErrNotFound is returned when the server answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the server answers 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")
)

// maxResponseBytes bounds every response body read by the client.
const maxResponseBytes = 8 << 20

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto ErrNotFound and ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// AuditVerification is the result of VerifyAudit.
type AuditVerification struct {
	Valid   bool   `json:"valid"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// Client is the VendorGuard SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
	cache       *reportCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
// Analyses wait on the model, so keep this well above the server's
// llm.timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithBearerToken attaches an API token (see `vendorguard token`) to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithCacheTTL caches GetReport results for ttl. Reports never change once
// created, so any TTL is safe; it only bounds memory.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cache = newReportCache(ttl)
		return nil
	}
}

// New creates a Client for the server at baseURL.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(token),
//	    client.WithTimeout(2*time.Minute),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Analyze requests a synchronous analysis of vendor. Model failures still
// produce a report; check Report.IsFallback.
func (c *Client) Analyze(ctx context.Context, vendor string) (*Report, error) {
	payload, err := json.Marshal(map[string]string{"vendor_name": vendor})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var r Report
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/analyses", nil, payload, &r); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.set(r.ID, r)
	}
	return &r, nil
}

// ListReports returns up to limit reports from the session history, newest
// first. limit <= 0 uses the server default.
func (c *Client) ListReports(ctx context.Context, limit int) ([]Report, error) {
	var resp struct {
		Reports []Report `json:"reports"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/analyses", limitQuery(limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reports, nil
}

// GetReport fetches one report by analysis ID.
func (c *Client) GetReport(ctx context.Context, id string) (*Report, error) {
	if c.cache != nil {
		if r, ok := c.cache.get(id); ok {
			return &r, nil
		}
	}
	var r Report
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/analyses/"+url.PathEscape(id), nil, nil, &r); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.set(id, r)
	}
	return &r, nil
}

// Download fetches the export of a report in format ("json" or "yaml") and
// returns the body with the server-suggested file name.
func (c *Client) Download(ctx context.Context, id, format string) ([]byte, string, error) {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/analyses/"+url.PathEscape(id)+"/download", q, nil)
	if err != nil {
		return nil, "", err
	}
	resp, body, err := c.do(req)
	if err != nil {
		return nil, "", err
	}

	var name string
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	return body, name, nil
}

// Stats returns the server's session counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/stats", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Policy returns the server's active scoring policy.
func (c *Client) Policy(ctx context.Context) (*PolicyView, error) {
	var p PolicyView
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/policy", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AuditRecords returns up to limit audit records, newest first.
func (c *Client) AuditRecords(ctx context.Context, limit int) ([]AuditRecord, error) {
	var resp struct {
		Records []AuditRecord `json:"records"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/audit", limitQuery(limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// VerifyAudit asks the server to walk the audit hash chain.
func (c *Client) VerifyAudit(ctx context.Context) (*AuditVerification, error) {
	var v AuditVerification
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/audit/verify", nil, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body []byte) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	req, err := c.newRequest(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	_, respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return nil, nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, body, nil
}

// --- simple in-memory report cache ---

type cacheEntry struct {
	report    Report
	expiresAt time.Time
}

type reportCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newReportCache(ttl time.Duration) *reportCache {
	return &reportCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (rc *reportCache) get(key string) (Report, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	e, ok := rc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return Report{}, false
	}
	return e.report, true
}

func (rc *reportCache) set(key string, r Report) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	now := time.Now()
	for k, e := range rc.entries {
		if now.After(e.expiresAt) {
			delete(rc.entries, k)
		}
	}
	rc.entries[key] = &cacheEntry{report: r, expiresAt: now.Add(rc.ttl)}
}
