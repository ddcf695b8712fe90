package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jmerrifield20/vendorguard/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newIssuer(t *testing.T, ttl time.Duration) *auth.TokenIssuer {
	t.Helper()
	ti, err := auth.NewTokenIssuer(testSecret, "vendorguard-test", ttl)
	if err != nil {
		t.Fatal(err)
	}
	return ti
}

func TestNewTokenIssuer_shortSecret(t *testing.T) {
	if _, err := auth.NewTokenIssuer("short", "x", 0); err == nil {
		t.Error("expected error for a short secret")
	}
}

func TestTokenIssuer_roundTrip(t *testing.T) {
	ti := newIssuer(t, time.Hour)
	token, err := ti.Issue("ci-bot")
	if err != nil {
		t.Fatal(err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("expected 3-part JWT, got %d parts", len(parts))
	}

	claims, err := ti.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "ci-bot" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.Require(auth.ScopeAnalyze) != nil || claims.Require(auth.ScopeRead) != nil {
		t.Errorf("default scopes missing: %v", claims.Scopes)
	}
}

func TestTokenIssuer_Verify_expired(t *testing.T) {
	ti := newIssuer(t, time.Nanosecond)
	token, _ := ti.Issue("ci-bot")
	time.Sleep(time.Millisecond)
	if _, err := ti.Verify(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestTokenIssuer_Verify_wrongSecret(t *testing.T) {
	token, _ := newIssuer(t, time.Hour).Issue("ci-bot")
	other, _ := auth.NewTokenIssuer(strings.Repeat("z", 32), "vendorguard-test", time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestTokenIssuer_Verify_noneAlgorithm(t *testing.T) {
	claims := jwt.MapClaims{"iss": "vendorguard-test", "exp": time.Now().Add(time.Hour).Unix()}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := newIssuer(t, time.Hour).Verify(token); err == nil {
		t.Error("expected error for alg=none token")
	}
}

func TestClaims_Require(t *testing.T) {
	c := &auth.Claims{Scopes: []string{auth.ScopeRead}}
	if err := c.Require(auth.ScopeAnalyze); !errors.Is(err, auth.ErrMissingScope) {
		t.Errorf("expected ErrMissingScope, got %v", err)
	}
}

func TestRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ti := newIssuer(t, time.Hour)
	full, _ := ti.Issue("ci-bot")
	readOnly, _ := ti.Issue("viewer", auth.ScopeRead)

	r := gin.New()
	r.POST("/analyses", auth.RequireToken(ti, auth.ScopeAnalyze), func(c *gin.Context) {
		c.String(http.StatusOK, auth.ClaimsFromCtx(c).Subject)
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"missing scope", "Bearer " + readOnly, http.StatusForbidden},
		{"valid", "Bearer " + full, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/analyses", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestRequireToken_disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/stats", auth.RequireToken(nil, auth.ScopeRead), func(c *gin.Context) {
		if auth.ClaimsFromCtx(c) != nil {
			t.Error("no claims expected when auth is disabled")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}
