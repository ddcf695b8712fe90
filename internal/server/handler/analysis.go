package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/analysis"
	"github.com/jmerrifield20/vendorguard/internal/auth"
	"github.com/jmerrifield20/vendorguard/internal/export"
	"github.com/jmerrifield20/vendorguard/internal/history"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// AnalysisHandler serves vendor analyses, the session history and the
// active scoring policy.
type AnalysisHandler struct {
	svc    *analysis.Service
	tokens *auth.TokenIssuer // nil = open API
	now    func() time.Time
	logger *zap.Logger
}

// NewAnalysisHandler creates an AnalysisHandler. tokens may be nil to serve
// the API without authentication.
func NewAnalysisHandler(svc *analysis.Service, tokens *auth.TokenIssuer, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, tokens: tokens, now: time.Now, logger: logger}
}

// Register mounts the analysis routes on the given router group.
func (h *AnalysisHandler) Register(rg *gin.RouterGroup) {
	read := auth.RequireToken(h.tokens, auth.ScopeRead)

	a := rg.Group("/analyses")
	{
		a.POST("", auth.RequireToken(h.tokens, auth.ScopeAnalyze), h.CreateAnalysis)
		a.GET("", read, h.ListAnalyses)
		a.GET("/:id", read, h.GetAnalysis)
		a.GET("/:id/download", read, h.DownloadAnalysis)
	}
	rg.GET("/stats", read, h.Stats)
	rg.GET("/policy", read, h.Policy)
}

type analyzeRequest struct {
	VendorName string `json:"vendor_name"`
}

// CreateAnalysis handles POST /analyses and runs a synchronous analysis.
// Fallback reports are returned with 200 like any other report.
func (h *AnalysisHandler) CreateAnalysis(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	vendor, err := analysis.NormalizeVendor(req.VendorName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.svc.Run(c.Request.Context(), vendor)
	SetHistoryGauge(h.svc.History().Len())
	c.JSON(http.StatusOK, report)
}

// ListAnalyses handles GET /analyses?limit=N, newest first.
func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reports := h.svc.History().List(limit)
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"count":   len(reports),
	})
}

// GetAnalysis handles GET /analyses/:id.
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	report, err := h.svc.History().Get(c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// DownloadAnalysis handles GET /analyses/:id/download?format=json|yaml.
func (h *AnalysisHandler) DownloadAnalysis(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.svc.History().Get(c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, report, format); err != nil {
		h.logger.Error("export report", zap.String("analysis_id", report.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
		return
	}

	name := export.FileName(report, format, h.now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Stats handles GET /stats with session counters by recommendation.
func (h *AnalysisHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.History().Stats())
}

// Policy handles GET /policy and returns the active scoring policy.
func (h *AnalysisHandler) Policy(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Analyzer().Policy().View())
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}
