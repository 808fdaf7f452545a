package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"videoextract/internal/download"
	"videoextract/internal/model"
	"videoextract/internal/storage"
	"videoextract/pkg/validator"

	"github.com/gin-gonic/gin"
)

// DownloadHandler serves download jobs, status polling and file retrieval.
type DownloadHandler struct {
	downloads *download.Manager
	storage   *storage.Manager
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(dm *download.Manager, sm *storage.Manager) *DownloadHandler {
	return &DownloadHandler{
		downloads: dm,
		storage:   sm,
	}
}

// Download handles POST /api/download
func (h *DownloadHandler) Download(c *gin.Context) {
	var req model.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, model.NewError(model.ErrUnsupportedURL, "invalid request body: url is required"))
		return
	}
	if !validator.ValidateQuality(req.Quality) {
		respondError(c, model.NewError(model.ErrUnsupportedURL, "invalid quality value"))
		return
	}
	if !validator.ValidateFormatType(req.FormatType) {
		respondError(c, model.NewError(model.ErrUnsupportedURL, "invalid format_type value"))
		return
	}

	id, err := h.downloads.Start(req.URL, req.Quality, req.FormatType)
	if err != nil {
		respondError(c, err)
		return
	}

	// The response blocks until the transfer settles; progress is
	// observable through /api/status/:download_id in the meantime.
	job := h.downloads.Wait(c.Request.Context(), id)
	switch job.Status {
	case model.DownloadStatusFinished:
		respond(c, http.StatusOK, model.DownloadResult{
			DownloadID:  id,
			Filename:    job.Filename,
			DownloadURL: "/downloads/" + job.Filename,
			Filesize:    job.Filesize,
			Title:       strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename)),
		}, nil)
	case model.DownloadStatusFailed:
		if ferr := h.downloads.Failure(id); ferr != nil {
			respondError(c, ferr)
			return
		}
		respondError(c, model.NewError(model.ErrInternal, "download failed"))
	default:
		respondError(c, model.NewError(model.ErrTimeout, "download did not finish before the request was cancelled"))
	}
}

// Status handles GET /api/status/:download_id. Unknown or aged-out ids
// answer with a not_found job payload rather than an error.
func (h *DownloadHandler) Status(c *gin.Context) {
	id := c.Param("download_id")
	job := h.downloads.Status(id)

	meta := gin.H{}
	if job.Status == model.DownloadStatusFinished && job.Filename != "" {
		meta["download_url"] = "/downloads/" + job.Filename
	}
	respond(c, http.StatusOK, job, meta)
}

// ServeFile handles GET /downloads/:filename. Filenames carrying path
// separators or traversal sequences are rejected before touching the
// filesystem.
func (h *DownloadHandler) ServeFile(c *gin.Context) {
	filename := c.Param("filename")
	if !validator.ValidateFilename(filename) {
		respondError(c, model.NewError(model.ErrUnsupportedURL, "invalid filename"))
		return
	}

	path := h.storage.PublicPath(filename)
	if _, err := os.Stat(path); err != nil {
		respondError(c, model.NewError(model.ErrVideoUnavailable, "file not found or expired"))
		return
	}
	c.FileAttachment(path, filename)
}
