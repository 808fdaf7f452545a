// Package handler implements the HTTP surface. Successful responses use a
// uniform envelope: {"success": true, "data": ..., "metadata": ...};
// failures use the flat ErrorResponse shape.
package handler

import (
	"net/http"
	"time"

	"videoextract/internal/extractor"
	"videoextract/internal/model"
	"videoextract/internal/platform"
	"videoextract/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respond writes the success envelope. The metadata block always carries
// the response timestamp and the request id.
func respond(c *gin.Context, status int, data any, meta gin.H) {
	if meta == nil {
		meta = gin.H{}
	}
	meta["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	meta["request_id"] = c.GetString("request_id")
	c.JSON(status, gin.H{
		"success":  true,
		"data":     data,
		"metadata": meta,
	})
}

func respondError(c *gin.Context, err *model.Error) {
	c.JSON(err.Status, model.ErrorResponse{
		Error:   string(err.Code),
		Message: err.Message,
		Code:    err.Status,
	})
}

// ExtractHandler serves metadata extraction and URL validation.
type ExtractHandler struct {
	orchestrator *extractor.Orchestrator
	startedAt    time.Time
}

// NewExtractHandler creates a new extract handler
func NewExtractHandler(o *extractor.Orchestrator) *ExtractHandler {
	return &ExtractHandler{
		orchestrator: o,
		startedAt:    time.Now(),
	}
}

// Extract handles POST /api/extract
func (h *ExtractHandler) Extract(c *gin.Context) {
	var req model.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, model.NewError(model.ErrUnsupportedURL, "invalid request body: url is required"))
		return
	}

	if req.IncludePlaylist {
		info, err := h.orchestrator.ExtractPlaylist(c.Request.Context(), req.URL, req.MaxPlaylistVideos)
		if err != nil {
			respondError(c, model.AsError(err))
			return
		}
		respond(c, http.StatusOK, info, gin.H{"type": "playlist"})
		return
	}

	info, err := h.orchestrator.Extract(c.Request.Context(), req.URL, req.Quality, req.AudioOnly)
	if err != nil {
		respondError(c, model.AsError(err))
		return
	}

	logger.Logger.Info("Extraction completed",
		zap.String("url", req.URL),
		zap.String("platform", info.Platform),
		zap.String("method", info.ExtractionMethod))

	respond(c, http.StatusOK, info, gin.H{
		"platform":          info.Platform,
		"extraction_method": info.ExtractionMethod,
		"degraded":          info.ExtractionMethod == extractor.MethodFallback,
	})
}

// Validate handles POST /api/validate
func (h *ExtractHandler) Validate(c *gin.Context) {
	var req model.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, model.NewError(model.ErrUnsupportedURL, "invalid request body: url is required"))
		return
	}

	result := h.orchestrator.Validate(c.Request.Context(), req.URL)
	respond(c, http.StatusOK, result, nil)
}

// Platforms handles GET /api/platforms
func (h *ExtractHandler) Platforms(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"platforms": platform.Supported(),
		"note":      "other platforms are attempted via the generic extractor",
	}, nil)
}

// Health handles GET /api/health
func (h *ExtractHandler) Health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}, nil)
}
