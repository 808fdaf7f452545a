package extractor

import (
	"context"
	"testing"
	"time"

	"videoextract/internal/backend"
	"videoextract/internal/cache"
	"videoextract/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend scripts per-call outcomes and records the options it saw.
type fakeBackend struct {
	calls   int
	results []fakeResult
	seen    []backend.Options
}

type fakeResult struct {
	info *backend.RawInfo
	err  error
}

func (f *fakeBackend) ExtractInfo(ctx context.Context, url string, opts backend.Options) (*backend.RawInfo, error) {
	f.seen = append(f.seen, opts)
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	return r.info, r.err
}

func (f *fakeBackend) Download(ctx context.Context, url string, opts backend.Options, progress func(backend.ProgressEvent)) error {
	return nil
}

func testOrchestrator(fb *fakeBackend) *Orchestrator {
	cfg := &model.ExtractionConfig{
		Timeout:            5 * time.Second,
		APITimeout:         time.Second,
		MaxConcurrent:      2,
		RetriesPerStrategy: 1,
	}
	o := New(fb, cache.New(&model.CacheConfig{Enabled: true, MaxSize: 16, TTL: time.Minute}), cfg)
	o.sleep = func(time.Duration) {}
	return o
}

func goodInfo() *backend.RawInfo {
	return &backend.RawInfo{
		Title:    "sample video",
		Uploader: "sample channel",
		Duration: 120,
		Formats: []backend.RawFormat{
			{FormatID: "22", URL: "https://cdn/22", Ext: "mp4", Height: 720, Vcodec: "avc1", Acodec: "mp4a"},
		},
	}
}

// Non-YouTube URLs skip the alternate API chain, so the fake backend sees
// every strategy attempt.
const testURL = "https://example.com/watch/abc123"

func TestExtractFirstStrategySucceeds(t *testing.T) {
	fb := &fakeBackend{results: []fakeResult{{info: goodInfo()}}}
	o := testOrchestrator(fb)

	info, err := o.Extract(context.Background(), testURL, "720p", false)
	require.NoError(t, err)
	assert.Equal(t, "sample video", info.Title)
	assert.Equal(t, "backend_standard", info.ExtractionMethod)
	assert.Equal(t, 1, fb.calls)
	assert.Len(t, info.Formats, 1)
}

func TestExtractFallsThroughStrategies(t *testing.T) {
	unavailable := model.NewError(model.ErrVideoUnavailable, "video is unavailable or private")
	fb := &fakeBackend{results: []fakeResult{
		{err: unavailable},
		{err: unavailable},
		{info: goodInfo()},
	}}
	o := testOrchestrator(fb)

	info, err := o.Extract(context.Background(), testURL, "", false)
	require.NoError(t, err)
	// Non-retryable errors consume one call per strategy.
	assert.Equal(t, 3, fb.calls)
	assert.Equal(t, "backend_android_client", info.ExtractionMethod)
}

func TestExtractRetriesTransientErrors(t *testing.T) {
	fb := &fakeBackend{results: []fakeResult{
		{err: model.NewError(model.ErrNetwork, "connection reset")},
		{info: goodInfo()},
	}}
	o := testOrchestrator(fb)

	info, err := o.Extract(context.Background(), testURL, "", false)
	require.NoError(t, err)
	// The retry stays within the first strategy.
	assert.Equal(t, 2, fb.calls)
	assert.Equal(t, "backend_standard", info.ExtractionMethod)
}

func TestExtractFatalErrorAborts(t *testing.T) {
	fb := &fakeBackend{results: []fakeResult{
		{err: model.NewError(model.ErrUnsupportedURL, "URL is not supported")},
	}}
	o := testOrchestrator(fb)

	_, err := o.Extract(context.Background(), testURL, "", false)
	require.Error(t, err)
	assert.Equal(t, model.ErrUnsupportedURL, model.AsError(err).Code)
	assert.Equal(t, 1, fb.calls)
}

func TestExtractExhaustionReturnsMinimalRecord(t *testing.T) {
	fb := &fakeBackend{results: []fakeResult{
		{err: model.NewError(model.ErrVideoUnavailable, "gone")},
	}}
	o := testOrchestrator(fb)

	info, err := o.Extract(context.Background(), testURL, "", false)
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, info.ExtractionMethod)
	assert.Equal(t, testURL, info.WebpageURL)
	assert.NotEmpty(t, info.Title)
	assert.Empty(t, info.Formats)
	assert.Equal(t, len(strategies), fb.calls)
}

func TestExtractStrategyOverlayOrder(t *testing.T) {
	fb := &fakeBackend{results: []fakeResult{
		{err: model.NewError(model.ErrVideoUnavailable, "gone")},
	}}
	o := testOrchestrator(fb)

	o.Extract(context.Background(), testURL, "", false)
	require.Len(t, fb.seen, len(strategies))

	assert.Empty(t, fb.seen[0].UserAgent)
	assert.Equal(t, mobileUserAgent, fb.seen[1].UserAgent)
	assert.Equal(t, []string{"android"}, fb.seen[2].PlayerClients)
	assert.Equal(t, 99, fb.seen[3].AgeLimit)
	assert.Equal(t, "best[height<=720]/best", fb.seen[4].Format)
	for _, opts := range fb.seen {
		assert.True(t, opts.NoPlaylist)
	}
}

func TestExtractCachesResults(t *testing.T) {
	fb := &fakeBackend{results: []fakeResult{{info: goodInfo()}}}
	o := testOrchestrator(fb)

	_, err := o.Extract(context.Background(), testURL, "720p", false)
	require.NoError(t, err)
	_, err = o.Extract(context.Background(), testURL, "720p", false)
	require.NoError(t, err)
	assert.Equal(t, 1, fb.calls)

	// A different quality misses the cache.
	_, err = o.Extract(context.Background(), testURL, "480p", false)
	require.NoError(t, err)
	assert.Equal(t, 2, fb.calls)
}

func TestExtractRejectsInvalidURL(t *testing.T) {
	fb := &fakeBackend{results: []fakeResult{{info: goodInfo()}}}
	o := testOrchestrator(fb)

	_, err := o.Extract(context.Background(), "not a url", "", false)
	require.Error(t, err)
	assert.Equal(t, model.ErrUnsupportedURL, model.AsError(err).Code)
	assert.Equal(t, 0, fb.calls)
}

func TestValidate(t *testing.T) {
	t.Run("invalid url shape", func(t *testing.T) {
		o := testOrchestrator(&fakeBackend{results: []fakeResult{{info: goodInfo()}}})
		result := o.Validate(context.Background(), "::nope")
		assert.False(t, result.Valid)
	})

	t.Run("probe failure", func(t *testing.T) {
		fb := &fakeBackend{results: []fakeResult{
			{err: model.NewError(model.ErrVideoUnavailable, "gone")},
		}}
		o := testOrchestrator(fb)
		result := o.Validate(context.Background(), "https://www.google.com")
		assert.False(t, result.Valid)
		assert.Equal(t, "generic", result.Platform)
	})

	t.Run("single video", func(t *testing.T) {
		o := testOrchestrator(&fakeBackend{results: []fakeResult{{info: goodInfo()}}})
		result := o.Validate(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
		assert.True(t, result.Valid)
		assert.Equal(t, "youtube", result.Platform)
		assert.False(t, result.IsPlaylist)
		assert.Equal(t, 1, result.VideoCount)
	})

	t.Run("playlist", func(t *testing.T) {
		info := &backend.RawInfo{
			Title: "mix",
			Entries: []backend.RawEntry{
				{ID: "a", Title: "first"},
				{ID: "b", Title: "second"},
			},
		}
		o := testOrchestrator(&fakeBackend{results: []fakeResult{{info: info}}})
		result := o.Validate(context.Background(), testURL)
		assert.True(t, result.Valid)
		assert.True(t, result.IsPlaylist)
		assert.Equal(t, 2, result.VideoCount)
	})
}

func TestExtractPlaylist(t *testing.T) {
	entries := make([]backend.RawEntry, 5)
	for i := range entries {
		entries[i] = backend.RawEntry{ID: string(rune('a' + i)), Title: "entry", Duration: 60}
	}
	fb := &fakeBackend{results: []fakeResult{
		{info: &backend.RawInfo{Title: "mix", Uploader: "channel", Entries: entries}},
	}}
	o := testOrchestrator(fb)

	info, err := o.ExtractPlaylist(context.Background(), testURL, 3)
	require.NoError(t, err)
	assert.Equal(t, "mix", info.Title)
	assert.Equal(t, 3, info.VideoCount)
	assert.Len(t, info.Videos, 3)

	require.Len(t, fb.seen, 1)
	assert.True(t, fb.seen[0].FlatPlaylist)
	assert.Equal(t, 3, fb.seen[0].PlaylistEnd)
}

func TestExtractPlaylistRejectsNonPlaylist(t *testing.T) {
	o := testOrchestrator(&fakeBackend{results: []fakeResult{{info: goodInfo()}}})

	_, err := o.ExtractPlaylist(context.Background(), testURL, 10)
	require.Error(t, err)
	assert.Equal(t, model.ErrUnsupportedURL, model.AsError(err).Code)
}
