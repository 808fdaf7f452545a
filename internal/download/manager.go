// Package download runs media downloads as tracked jobs: backend-driven
// fetches with live progress, direct HTTP fetches of already-resolved
// media URLs, and status lookup over a bounded job history.
package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"videoextract/internal/backend"
	"videoextract/internal/format"
	"videoextract/internal/model"
	"videoextract/internal/platform"
	"videoextract/internal/storage"
	"videoextract/pkg/logger"
	"videoextract/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	historyLimit    = 256
	directChunkSize = 8 * 1024
)

var downloadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vx_downloads_total",
		Help: "Completed download jobs by outcome.",
	},
	[]string{"outcome"},
)

// Manager tracks active download jobs and a bounded history of terminal
// ones so status stays queryable after completion.
type Manager struct {
	backend backend.Backend
	storage *storage.Manager
	cfg     *model.ExtractionConfig

	mu       sync.Mutex
	active   map[string]*model.DownloadJob
	history  map[string]*model.DownloadJob
	order    []string // history insertion order, oldest first
	done     map[string]chan struct{}
	failures map[string]*model.Error

	sem        chan struct{}
	httpClient *http.Client
}

// NewManager creates a download manager on top of the given backend and
// storage layer.
func NewManager(be backend.Backend, st *storage.Manager, cfg *model.ExtractionConfig) *Manager {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{
		backend:    be,
		storage:    st,
		cfg:        cfg,
		active:     make(map[string]*model.DownloadJob),
		history:    make(map[string]*model.DownloadJob),
		done:       make(map[string]chan struct{}),
		failures:   make(map[string]*model.Error),
		sem:        make(chan struct{}, maxConcurrent),
		httpClient: &http.Client{},
	}
}

// JobID derives a short deterministic-per-instant job identifier.
func JobID(url, quality string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%d", url, quality, time.Now().Unix())))
	return hex.EncodeToString(sum[:])[:12]
}

// Start launches a background download and returns its job id immediately.
func (m *Manager) Start(url, quality, formatType string) (string, *model.Error) {
	if !validator.ValidateURL(url) {
		return "", model.NewError(model.ErrUnsupportedURL, "invalid URL format")
	}

	id := JobID(url, quality)
	job := &model.DownloadJob{
		ID:        id,
		Status:    model.DownloadStatusDownloading,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.active[id] = job
	m.done[id] = make(chan struct{})
	m.mu.Unlock()

	go m.run(id, url, quality, formatType)

	logger.Logger.Info("Download started",
		zap.String("job_id", id),
		zap.String("url", url),
		zap.String("quality", quality))
	return id, nil
}

// run executes one backend download to completion and records the result.
func (m *Manager) run(id, url, quality, formatType string) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	ctx := context.Background()
	audioOnly := formatType == "audio"
	_, overlay := platform.Resolve(url)

	// The requested quality wins over the platform's default selector.
	opts := overlay.Merge(backend.Options{
		Format:         format.Selector(quality),
		NoPlaylist:     true,
		AudioOnly:      audioOnly,
		OutputTemplate: filepath.Join(m.storage.TempDir(), id+"_%(title)s.%(ext)s"),
		MaxFilesize:    m.storage.MaxFileSizeBytes(),
	})

	started := time.Now()
	err := m.backend.Download(ctx, url, opts, func(ev backend.ProgressEvent) {
		m.updateProgress(id, ev, started)
	})
	if err != nil {
		cerr := model.AsError(err)
		m.fail(id, cerr, "failed")
		logger.Logger.Error("Download failed",
			zap.String("job_id", id),
			zap.String("error_code", string(cerr.Code)))
		return
	}

	tempPath, terr := m.tempFileFor(id)
	if terr != nil {
		m.fail(id, model.NewError(model.ErrInternal, "downloaded file not found"), "failed")
		return
	}

	if st, serr := os.Stat(tempPath); serr == nil && !m.storage.ValidateFileSize(st.Size()) {
		os.Remove(tempPath)
		m.fail(id, model.NewError(model.ErrFileTooLarge, "file exceeds maximum allowed size"), "too_large")
		return
	}

	finalPath, ferr := m.storage.Finalize(tempPath, id)
	if ferr != nil {
		m.fail(id, model.NewError(model.ErrInternal, "failed to finalize download"), "failed")
		return
	}

	var size int64
	if st, serr := os.Stat(finalPath); serr == nil {
		size = st.Size()
	}
	m.finish(id, func(job *model.DownloadJob) {
		job.Status = model.DownloadStatusFinished
		job.Progress = 100
		job.Filename = filepath.Base(finalPath)
		job.Filesize = size
	})
	downloadsTotal.WithLabelValues("finished").Inc()
}

// updateProgress folds one backend progress event into the job record.
// Rate and ETA are derived locally from byte counts.
func (m *Manager) updateProgress(id string, ev backend.ProgressEvent, started time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.active[id]
	if !ok {
		return
	}

	job.DownloadedBytes = ev.DownloadedBytes
	job.TotalBytes = ev.TotalBytes
	if ev.TotalBytes > 0 {
		job.Progress = float64(ev.DownloadedBytes) / float64(ev.TotalBytes) * 100
	}
	elapsed := time.Since(started).Seconds()
	if elapsed > 0 && ev.DownloadedBytes > 0 {
		job.Speed = float64(ev.DownloadedBytes) / elapsed
		if ev.TotalBytes > ev.DownloadedBytes && job.Speed > 0 {
			job.ETA = int64(float64(ev.TotalBytes-ev.DownloadedBytes) / job.Speed)
		}
	}
}

// tempFileFor locates the staged file written under the job's id prefix.
func (m *Manager) tempFileFor(id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(m.storage.TempDir(), id+"_*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no temp file for job %s", id)
	}
	return matches[0], nil
}

// fail marks the job terminal with a typed error.
func (m *Manager) fail(id string, cerr *model.Error, outcome string) {
	m.mu.Lock()
	m.failures[id] = cerr
	m.mu.Unlock()
	m.finish(id, func(job *model.DownloadJob) {
		job.Status = model.DownloadStatusFailed
		job.Error = cerr.Message
	})
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// finish applies mutate to the job and moves it from active to history.
func (m *Manager) finish(id string, mutate func(*model.DownloadJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.active[id]
	if !ok {
		return
	}
	mutate(job)
	delete(m.active, id)

	m.history[id] = job
	m.order = append(m.order, id)
	for len(m.order) > historyLimit {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.history, oldest)
		delete(m.failures, oldest)
		delete(m.done, oldest)
	}

	if ch, ok := m.done[id]; ok {
		close(ch)
	}
}

// Wait blocks until the job reaches a terminal state or ctx is cancelled,
// then returns the latest snapshot.
func (m *Manager) Wait(ctx context.Context, id string) *model.DownloadJob {
	m.mu.Lock()
	ch, ok := m.done[id]
	if ok {
		if _, active := m.active[id]; !active {
			ok = false
		}
	}
	m.mu.Unlock()

	if ok {
		select {
		case <-ch:
		case <-ctx.Done():
		}
	}
	return m.Status(id)
}

// Failure returns the typed error a failed job ended with, if any.
func (m *Manager) Failure(id string) *model.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[id]
}

// Status returns a snapshot of the job, or a not_found record when the id
// is unknown or has aged out of the history.
func (m *Manager) Status(id string) *model.DownloadJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.active[id]; ok {
		snapshot := *job
		return &snapshot
	}
	if job, ok := m.history[id]; ok {
		snapshot := *job
		return &snapshot
	}
	return &model.DownloadJob{
		ID:     id,
		Status: model.DownloadStatusNotFound,
	}
}

// ActiveCount reports the number of jobs still downloading.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// DirectDownload fetches an already-resolved media URL over plain HTTP and
// finalizes it into the public store. Size limits are enforced before any
// disk write when the server advertises Content-Length, and again while
// streaming.
func (m *Manager) DirectDownload(ctx context.Context, mediaURL, filename string) (string, *model.Error) {
	if !validator.ValidateURL(mediaURL) {
		return "", model.NewError(model.ErrUnsupportedURL, "invalid URL format")
	}

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", model.NewError(model.ErrNetwork, "failed to build request")
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", model.NewError(model.ErrNetwork, "failed to fetch media URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewError(model.ErrNetwork, fmt.Sprintf("media server returned status %d", resp.StatusCode))
	}

	maxBytes := m.storage.MaxFileSizeBytes()
	if resp.ContentLength > 0 && resp.ContentLength > maxBytes {
		return "", model.NewError(model.ErrFileTooLarge, "file exceeds maximum allowed size")
	}

	id := JobID(mediaURL, "direct")
	if filename == "" {
		filename = "media"
	}
	tempPath := filepath.Join(m.storage.TempDir(), id+"_"+storage.SanitizeFilename(filename))

	out, err := os.Create(tempPath)
	if err != nil {
		return "", model.NewError(model.ErrInternal, "failed to create temp file")
	}

	written, copyErr := copyChunked(out, resp.Body, maxBytes)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tempPath)
		if copyErr != nil {
			if cerr := model.AsError(copyErr); cerr.Code == model.ErrFileTooLarge {
				return "", cerr
			}
		}
		return "", model.NewError(model.ErrNetwork, "transfer interrupted")
	}

	finalPath, ferr := m.storage.Finalize(tempPath, id)
	if ferr != nil {
		os.Remove(tempPath)
		return "", model.NewError(model.ErrInternal, "failed to finalize download")
	}

	logger.Logger.Info("Direct download completed",
		zap.String("job_id", id),
		zap.Int64("bytes", written),
		zap.String("path", finalPath))
	downloadsTotal.WithLabelValues("finished").Inc()
	return finalPath, nil
}

// copyChunked streams src to dst in fixed-size chunks, aborting once the
// byte ceiling is crossed.
func copyChunked(dst io.Writer, src io.Reader, maxBytes int64) (int64, error) {
	buf := make([]byte, directChunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > maxBytes {
				return written, model.NewError(model.ErrFileTooLarge, "file exceeds maximum allowed size")
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
