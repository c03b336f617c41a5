// Package handler provides HTTP handlers for the FAQ service.
package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/faqbot/internal/faqbot/biz"
	"github.com/kart-io/faqbot/internal/faqbot/metrics"
	"github.com/kart-io/faqbot/internal/pkg/httputils"
	"github.com/kart-io/faqbot/pkg/docreader"
)

// FAQHandler handles FAQ management HTTP requests.
type FAQHandler struct {
	service   biz.Service
	docs      *docreader.Registry
	maxUpload int64
}

// NewFAQHandler creates a new FAQHandler.
// maxUpload limits the accepted document size in bytes; zero means 10 MB.
func NewFAQHandler(service biz.Service, docs *docreader.Registry, maxUpload int64) *FAQHandler {
	if docs == nil {
		docs = docreader.NewRegistry()
	}
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &FAQHandler{
		service:   service,
		docs:      docs,
		maxUpload: maxUpload,
	}
}

// UploadDocument ingests a document (PDF or plain text) for a business.
// The request is multipart form data with fields "business_id" and "file".
func (h *FAQHandler) UploadDocument(c *gin.Context) {
	businessID := c.PostForm("business_id")
	if businessID == "" {
		httputils.WriteError(c, http.StatusBadRequest, "business_id is required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		httputils.WriteError(c, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		httputils.WriteError(c, http.StatusRequestEntityTooLarge, "file exceeds upload size limit")
		return
	}
	if !h.docs.Supported(header.Filename) {
		httputils.WriteError(c, http.StatusBadRequest, "unsupported file type: "+header.Filename)
		return
	}

	text, err := h.docs.Extract(header.Filename, file)
	if err != nil {
		httputils.WriteError(c, http.StatusUnprocessableEntity, "failed to extract text: "+err.Error())
		return
	}

	count, err := h.service.IngestDocument(c.Request.Context(), businessID, header.Filename, text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, biz.ErrEmptyDocument) {
			status = http.StatusUnprocessableEntity
		}
		httputils.WriteError(c, status, err.Error())
		return
	}

	httputils.WriteSuccess(c, gin.H{
		"business_id": businessID,
		"source_file": header.Filename,
		"chunks":      count,
	})
}

// QueryRequest represents a direct query request.
type QueryRequest struct {
	BusinessID string `json:"business_id" binding:"required"`
	Question   string `json:"question" binding:"required"`
}

// Query answers a question without touching any session history.
func (h *FAQHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, http.StatusBadRequest, err.Error())
		return
	}

	// 添加 60 秒超时控制
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result, err := h.service.Answer(ctx, req.BusinessID, req.Question)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			httputils.WriteError(c, http.StatusRequestTimeout,
				"query timeout: the request took too long to process")
			return
		}
		httputils.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}

	httputils.WriteSuccess(c, result)
}

// Analytics returns conversation statistics for a business.
func (h *FAQHandler) Analytics(c *gin.Context) {
	businessID := c.Param("business_id")

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputils.WriteError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	analytics, err := h.service.Analytics(c.Request.Context(), businessID, limit)
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}

	httputils.WriteSuccess(c, analytics)
}

// Businesses lists known businesses with their index metadata.
func (h *FAQHandler) Businesses(c *gin.Context) {
	businesses, err := h.service.Businesses(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}

	httputils.WriteSuccess(c, businesses)
}

// Stats returns service runtime statistics.
func (h *FAQHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}

	httputils.WriteSuccess(c, stats)
}

// Metrics exports runtime metrics in Prometheus text format.
func (h *FAQHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
		[]byte(metrics.GetFAQMetrics().Export("faqbot", "")))
}

// Healthz reports service liveness.
func (h *FAQHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// APIKeyMiddleware validates the X-API-Key header on management routes.
// An empty configured key disables the check.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			httputils.WriteError(c, http.StatusUnauthorized, "invalid or missing API key")
			c.Abort()
			return
		}
		c.Next()
	}
}
