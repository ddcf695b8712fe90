package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/vendorguard/internal/auditlog"
	"github.com/jmerrifield20/vendorguard/internal/auth"
)

// AuditHandler exposes read-only HTTP endpoints for the audit log.
type AuditHandler struct {
	log    auditlog.Log
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(log auditlog.Log, tokens *auth.TokenIssuer, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{log: log, tokens: tokens, logger: logger}
}

// Register mounts the audit routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/audit", auth.RequireToken(h.tokens, auth.ScopeRead))
	{
		a.GET("", h.List)
		a.GET("/verify", h.Verify)
	}
}

// List handles GET /audit?limit=N, newest records first.
func (h *AuditHandler) List(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.log.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("audit List", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	if records == nil {
		records = []auditlog.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// Verify handles GET /audit/verify by walking the full chain.
func (h *AuditHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.log.Verify(ctx); err != nil {
		h.logger.Warn("audit integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	n, err := h.log.Len(ctx)
	if err != nil {
		h.logger.Error("audit Len", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "records": n})
}
