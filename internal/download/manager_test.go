package download

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"videoextract/internal/backend"
	"videoextract/internal/model"
	"videoextract/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDownloadBackend writes a staged file the way the real backend would,
// resolving the output template to a fixed title.
type fakeDownloadBackend struct {
	payload []byte
	fail    error
	seen    []backend.Options
}

func (f *fakeDownloadBackend) ExtractInfo(ctx context.Context, url string, opts backend.Options) (*backend.RawInfo, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeDownloadBackend) Download(ctx context.Context, url string, opts backend.Options, progress func(backend.ProgressEvent)) error {
	f.seen = append(f.seen, opts)
	if f.fail != nil {
		return f.fail
	}
	path := strings.Replace(opts.OutputTemplate, "%(title)s.%(ext)s", "video.mp4", 1)
	if err := os.WriteFile(path, f.payload, 0644); err != nil {
		return err
	}
	progress(backend.ProgressEvent{
		Status:          "downloading",
		DownloadedBytes: int64(len(f.payload)),
		TotalBytes:      int64(len(f.payload)),
	})
	return nil
}

func testSetup(t *testing.T, fb backend.Backend) (*Manager, *storage.Manager) {
	t.Helper()
	sm := storage.NewManager(&model.StorageConfig{
		DownloadDir:     t.TempDir(),
		TempDir:         t.TempDir(),
		MaxFileSizeMB:   1,
		CleanupInterval: 60,
		FileTTLSeconds:  3600,
		TempMaxAgeHours: 24,
	})
	require.NoError(t, sm.EnsureDirs())

	cfg := &model.ExtractionConfig{MaxConcurrent: 2, RetriesPerStrategy: 1}
	return NewManager(fb, sm, cfg), sm
}

func waitTerminal(t *testing.T, m *Manager, id string) *model.DownloadJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	job := m.Wait(ctx, id)
	require.NotEqual(t, model.DownloadStatusDownloading, job.Status, "download did not reach a terminal state")
	return job
}

func TestJobID(t *testing.T) {
	id := JobID("https://example.com/v", "720p")
	assert.Len(t, id, 12)
}

func TestStartRejectsInvalidURL(t *testing.T) {
	m, _ := testSetup(t, &fakeDownloadBackend{})
	_, err := m.Start("not a url", "720p", "video")
	require.NotNil(t, err)
	assert.Equal(t, model.ErrUnsupportedURL, err.Code)
}

func TestDownloadLifecycle(t *testing.T) {
	fb := &fakeDownloadBackend{payload: []byte("media bytes")}
	m, sm := testSetup(t, fb)

	id, err := m.Start("https://example.com/watch/abc", "720p", "video")
	require.Nil(t, err)

	job := waitTerminal(t, m, id)
	assert.Equal(t, model.DownloadStatusFinished, job.Status)
	assert.Equal(t, float64(100), job.Progress)
	assert.Equal(t, "video.mp4", job.Filename)
	assert.Equal(t, int64(len(fb.payload)), job.Filesize)

	_, statErr := os.Stat(sm.PublicPath(job.Filename))
	assert.NoError(t, statErr)

	// The backend received the quality selector and a size ceiling.
	require.Len(t, fb.seen, 1)
	assert.Equal(t, "best[height<=720]/best", fb.seen[0].Format)
	assert.Equal(t, sm.MaxFileSizeBytes(), fb.seen[0].MaxFilesize)
	assert.True(t, fb.seen[0].NoPlaylist)
}

func TestDownloadAudioOnly(t *testing.T) {
	fb := &fakeDownloadBackend{payload: []byte("audio bytes")}
	m, _ := testSetup(t, fb)

	id, err := m.Start("https://example.com/watch/abc", "best", "audio")
	require.Nil(t, err)
	waitTerminal(t, m, id)

	require.Len(t, fb.seen, 1)
	assert.True(t, fb.seen[0].AudioOnly)
}

func TestDownloadBackendFailure(t *testing.T) {
	fb := &fakeDownloadBackend{fail: model.NewError(model.ErrVideoUnavailable, "video is unavailable or private")}
	m, _ := testSetup(t, fb)

	id, err := m.Start("https://example.com/watch/abc", "720p", "video")
	require.Nil(t, err)

	job := waitTerminal(t, m, id)
	assert.Equal(t, model.DownloadStatusFailed, job.Status)
	assert.Contains(t, job.Error, "unavailable")

	ferr := m.Failure(id)
	require.NotNil(t, ferr)
	assert.Equal(t, model.ErrVideoUnavailable, ferr.Code)
}

func TestDownloadOversizedFileRejected(t *testing.T) {
	fb := &fakeDownloadBackend{payload: bytes.Repeat([]byte("x"), 1024*1024+1)}
	m, sm := testSetup(t, fb)

	id, err := m.Start("https://example.com/watch/abc", "720p", "video")
	require.Nil(t, err)

	job := waitTerminal(t, m, id)
	assert.Equal(t, model.DownloadStatusFailed, job.Status)
	assert.Contains(t, job.Error, "maximum allowed size")

	ferr := m.Failure(id)
	require.NotNil(t, ferr)
	assert.Equal(t, model.ErrFileTooLarge, ferr.Code)

	// Neither the temp nor a public copy survives.
	entries, _ := os.ReadDir(sm.TempDir())
	assert.Empty(t, entries)
	assert.Equal(t, 0, sm.TrackedCount())
}

func TestStatusUnknownJob(t *testing.T) {
	m, _ := testSetup(t, &fakeDownloadBackend{})
	job := m.Status("nonexistent")
	assert.Equal(t, model.DownloadStatusNotFound, job.Status)
}

func TestHistoryBounded(t *testing.T) {
	m, _ := testSetup(t, &fakeDownloadBackend{})

	for i := 0; i < historyLimit+10; i++ {
		id := fmt.Sprintf("job%d", i)
		m.mu.Lock()
		m.active[id] = &model.DownloadJob{ID: id, Status: model.DownloadStatusDownloading}
		m.done[id] = make(chan struct{})
		m.mu.Unlock()
		m.finish(id, func(job *model.DownloadJob) {
			job.Status = model.DownloadStatusFinished
		})
	}

	m.mu.Lock()
	assert.Len(t, m.history, historyLimit)
	assert.Len(t, m.done, historyLimit)
	_, oldestPresent := m.history["job0"]
	assert.False(t, oldestPresent)
	_, newestPresent := m.history[fmt.Sprintf("job%d", historyLimit+9)]
	assert.True(t, newestPresent)
	m.mu.Unlock()

	// Waiting on an evicted id must not block.
	start := time.Now()
	job := m.Wait(context.Background(), "job0")
	assert.Equal(t, model.DownloadStatusNotFound, job.Status)
	assert.Less(t, time.Since(start), time.Second)

	// Nor on a terminal id still in history, whose channel is closed.
	job = m.Wait(context.Background(), fmt.Sprintf("job%d", historyLimit+9))
	assert.Equal(t, model.DownloadStatusFinished, job.Status)
}

func TestDirectDownload(t *testing.T) {
	payload := []byte("direct media payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	m, _ := testSetup(t, &fakeDownloadBackend{})

	final, err := m.DirectDownload(context.Background(), srv.URL, "clip.mp4")
	require.Nil(t, err)
	assert.Equal(t, "clip.mp4", filepath.Base(final))

	data, readErr := os.ReadFile(final)
	require.NoError(t, readErr)
	assert.Equal(t, payload, data)
}

func TestDirectDownloadContentLengthPreCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "99999999")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, sm := testSetup(t, &fakeDownloadBackend{})

	_, err := m.DirectDownload(context.Background(), srv.URL, "huge.mp4")
	require.NotNil(t, err)
	assert.Equal(t, model.ErrFileTooLarge, err.Code)

	// Rejected before anything touched the disk.
	entries, _ := os.ReadDir(sm.TempDir())
	assert.Empty(t, entries)
}

func TestDirectDownloadStreamingLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length; stream past the 1MB ceiling.
		chunk := bytes.Repeat([]byte("y"), 64*1024)
		for i := 0; i < 20; i++ {
			w.Write(chunk)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	m, sm := testSetup(t, &fakeDownloadBackend{})

	_, err := m.DirectDownload(context.Background(), srv.URL, "stream.mp4")
	require.NotNil(t, err)
	assert.Equal(t, model.ErrFileTooLarge, err.Code)

	entries, _ := os.ReadDir(sm.TempDir())
	assert.Empty(t, entries)
}

func TestDirectDownloadUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m, _ := testSetup(t, &fakeDownloadBackend{})

	_, err := m.DirectDownload(context.Background(), srv.URL, "missing.mp4")
	require.NotNil(t, err)
	assert.Equal(t, model.ErrNetwork, err.Code)
}
