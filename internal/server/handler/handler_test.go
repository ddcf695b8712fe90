package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/analysis"
	"github.com/jmerrifield20/vendorguard/internal/auditlog"
	"github.com/jmerrifield20/vendorguard/internal/auth"
	"github.com/jmerrifield20/vendorguard/internal/history"
	"github.com/jmerrifield20/vendorguard/internal/llm"
	"github.com/jmerrifield20/vendorguard/internal/risk"
	"github.com/jmerrifield20/vendorguard/internal/server/handler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const lowRiskReply = `{
  "vendor_name": "Globex",
  "analysis_date": "2024-05-01",
  "financial_risk":  {"score": 2, "explanation": "Profitable.", "key_facts": ["Ten years of profit"]},
  "security_risk":   {"score": 2, "explanation": "SOC 2 Type II.", "key_facts": []},
  "compliance_risk": {"score": 2, "explanation": "No findings.", "key_facts": []},
  "reputation_risk": {"score": 2, "explanation": "Well regarded.", "key_facts": []},
  "confidence_level": "Medium",
  "executive_summary": "Low risk supplier."
}`

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Preflight() error { return nil }

func (s *stubCompleter) Complete(context.Context, llm.Request) (string, error) {
	return s.reply, s.err
}

type fixture struct {
	router *gin.Engine
	svc    *analysis.Service
	audit  *auditlog.MemoryLog
}

func setup(t *testing.T, c llm.Completer, tokens *auth.TokenIssuer) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	audit := auditlog.NewMemoryLog()
	analyzer := analysis.NewAnalyzer(c, risk.WeightedPolicy(), zap.NewNop())
	svc := analysis.NewService(analyzer, history.New(10), audit, zap.NewNop())

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewAnalysisHandler(svc, tokens, zap.NewNop()).Register(v1)
	handler.NewAuditHandler(audit, tokens, zap.NewNop()).Register(v1)
	return fixture{router: r, svc: svc, audit: audit}
}

func do(t *testing.T, router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) risk.Report {
	t.Helper()
	var r risk.Report
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode report: %v: %s", err, w.Body.String())
	}
	return r
}

// ── Analyses ──────────────────────────────────────────────────────────────

func TestCreateAnalysis_200(t *testing.T) {
	f := setup(t, &stubCompleter{reply: lowRiskReply}, nil)

	w := do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"  Globex  "}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	r := decodeReport(t, w)
	if r.ID == "" {
		t.Error("expected analysis_id to be set")
	}
	if r.AggregateScore != 2 || r.Recommendation != risk.Approve {
		t.Errorf("got %v/%s, want 2/APPROVE", r.AggregateScore, r.Recommendation)
	}
	if f.svc.History().Len() != 1 {
		t.Errorf("history len = %d, want 1", f.svc.History().Len())
	}
	if n, _ := f.audit.Len(context.Background()); n != 1 {
		t.Errorf("audit len = %d, want 1", n)
	}
}

func TestCreateAnalysis_fallbackIs200(t *testing.T) {
	f := setup(t, &stubCompleter{err: context.DeadlineExceeded}, nil)

	w := do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Globex"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	r := decodeReport(t, w)
	if !r.IsFallback() || r.Recommendation != risk.FlagForReview {
		t.Errorf("expected fallback FLAG_FOR_REVIEW, got %+v", r)
	}
	if r.VendorName != "Globex" {
		t.Errorf("vendor = %q", r.VendorName)
	}
}

func TestCreateAnalysis_400(t *testing.T) {
	f := setup(t, &stubCompleter{reply: lowRiskReply}, nil)

	cases := map[string]string{
		"not json":   `vendor`,
		"empty":      `{"vendor_name":""}`,
		"whitespace": `{"vendor_name":"   \t "}`,
		"too long":   `{"vendor_name":"` + strings.Repeat("x", analysis.MaxVendorLength+1) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, f.router, http.MethodPost, "/api/v1/analyses", body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
	if f.svc.History().Len() != 0 {
		t.Error("rejected requests must not reach the history")
	}
}

func TestListAnalyses_newestFirst(t *testing.T) {
	f := setup(t, &stubCompleter{reply: lowRiskReply}, nil)
	for _, v := range []string{"Alpha", "Beta", "Gamma"} {
		do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"`+v+`"}`, "")
	}

	w := do(t, f.router, http.MethodGet, "/api/v1/analyses?limit=2", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Reports []risk.Report `json:"reports"`
		Count   int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || len(resp.Reports) != 2 {
		t.Fatalf("count = %d", resp.Count)
	}
	// The stub always names the vendor Globex; order is checked via IDs.
	newest := f.svc.History().List(1)[0]
	if resp.Reports[0].ID != newest.ID {
		t.Error("expected newest report first")
	}
}

func TestListAnalyses_badLimit(t *testing.T) {
	f := setup(t, &stubCompleter{}, nil)
	for _, q := range []string{"0", "-1", "ten"} {
		w := do(t, f.router, http.MethodGet, "/api/v1/analyses?limit="+q, "", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestGetAnalysis_200and404(t *testing.T) {
	f := setup(t, &stubCompleter{reply: lowRiskReply}, nil)
	created := decodeReport(t, do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Globex"}`, ""))

	w := do(t, f.router, http.MethodGet, "/api/v1/analyses/"+created.ID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeReport(t, w); got.ID != created.ID {
		t.Errorf("id = %q, want %q", got.ID, created.ID)
	}

	w = do(t, f.router, http.MethodGet, "/api/v1/analyses/does-not-exist", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestDownloadAnalysis(t *testing.T) {
	f := setup(t, &stubCompleter{reply: lowRiskReply}, nil)
	created := decodeReport(t, do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Globex"}`, ""))
	base := "/api/v1/analyses/" + created.ID + "/download"

	w := do(t, f.router, http.MethodGet, base, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="vendorguard_Globex_`) || !strings.HasSuffix(cd, `.json"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if got := decodeReport(t, w); got.ID != created.ID {
		t.Errorf("downloaded id = %q", got.ID)
	}

	w = do(t, f.router, http.MethodGet, base+"?format=yaml", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("yaml: expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("analysis_id: "+created.ID)) {
		t.Errorf("yaml body missing analysis_id:\n%s", w.Body.String())
	}

	if w = do(t, f.router, http.MethodGet, base+"?format=pdf", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("pdf: expected 400, got %d", w.Code)
	}
	if w = do(t, f.router, http.MethodGet, "/api/v1/analyses/nope/download", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", w.Code)
	}
}

func TestStatsAndPolicy(t *testing.T) {
	f := setup(t, &stubCompleter{reply: lowRiskReply}, nil)
	do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Globex"}`, "")

	w := do(t, f.router, http.MethodGet, "/api/v1/stats", "", "")
	var stats history.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.Approved != 1 {
		t.Errorf("stats = %+v", stats)
	}

	w = do(t, f.router, http.MethodGet, "/api/v1/policy", "", "")
	var view risk.PolicyView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Name != "weighted" || len(view.Bands) != 3 {
		t.Errorf("policy view = %+v", view)
	}
}

// ── Audit ─────────────────────────────────────────────────────────────────

func TestAuditListAndVerify(t *testing.T) {
	f := setup(t, &stubCompleter{reply: lowRiskReply}, nil)
	do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Globex"}`, "")
	do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Initech"}`, "")

	w := do(t, f.router, http.MethodGet, "/api/v1/audit", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Records []auditlog.Record `json:"records"`
		Count   int               `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.Records[0].Index != 1 {
		t.Errorf("expected 2 records newest first, got %+v", resp.Records)
	}

	w = do(t, f.router, http.MethodGet, "/api/v1/audit/verify", "", "")
	var v map[string]any
	json.Unmarshal(w.Body.Bytes(), &v)
	if v["valid"] != true || v["records"] != float64(2) {
		t.Errorf("verify = %v", v)
	}
}

func TestAuditList_emptyIsArray(t *testing.T) {
	f := setup(t, &stubCompleter{}, nil)

	w := do(t, f.router, http.MethodGet, "/api/v1/audit", "", "")
	if !strings.Contains(w.Body.String(), `"records":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

// ── Auth ──────────────────────────────────────────────────────────────────

func TestScopes(t *testing.T) {
	tokens, err := auth.NewTokenIssuer(strings.Repeat("k", 32), "vendorguard", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	f := setup(t, &stubCompleter{reply: lowRiskReply}, tokens)

	readOnly, _ := tokens.Issue("viewer", auth.ScopeRead)
	full, _ := tokens.Issue("analyst", auth.DefaultScopes...)

	if w := do(t, f.router, http.MethodGet, "/api/v1/analyses", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}
	if w := do(t, f.router, http.MethodGet, "/api/v1/audit", "", readOnly); w.Code != http.StatusOK {
		t.Errorf("read token on audit: expected 200, got %d", w.Code)
	}
	if w := do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Globex"}`, readOnly); w.Code != http.StatusForbidden {
		t.Errorf("read token on POST: expected 403, got %d", w.Code)
	}
	if w := do(t, f.router, http.MethodPost, "/api/v1/analyses", `{"vendor_name":"Globex"}`, full); w.Code != http.StatusOK {
		t.Errorf("full token on POST: expected 200, got %d", w.Code)
	}
}

// ── Middleware ────────────────────────────────────────────────────────────

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(handler.RateLimiter(ctx, 1, 2))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, r, http.MethodGet, "/ping", "", "").Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}
