// Package extractor orchestrates multi-strategy media extraction: alternate
// metadata APIs first, then an ordered chain of backend option variants,
// degrading to a best-effort minimal record when everything fails.
package extractor

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"videoextract/internal/backend"
	"videoextract/internal/cache"
	"videoextract/internal/format"
	"videoextract/internal/model"
	"videoextract/internal/platform"
	"videoextract/pkg/logger"
	"videoextract/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

// MethodFallback marks a degraded best-effort record. Callers must treat
// results carrying it as valid but incomplete.
const MethodFallback = "fallback_minimal"

var extractionAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vx_extraction_attempts_total",
		Help: "Extraction attempts by strategy and outcome.",
	},
	[]string{"strategy", "outcome"},
)

// strategy is one options variant in the fallback chain. Strategies run in
// fixed priority order; ordering is never adapted to past success.
type strategy struct {
	name    string
	overlay backend.Options
}

var strategies = []strategy{
	{name: "standard"},
	{name: "mobile_user_agent", overlay: backend.Options{UserAgent: mobileUserAgent}},
	{name: "android_client", overlay: backend.Options{
		PlayerClients: []string{"android"},
		SkipManifests: []string{"webpage"},
	}},
	{name: "age_gate_bypass", overlay: backend.Options{
		AgeLimit:      99,
		PlayerClients: []string{"android", "web"},
		SkipManifests: []string{"dash"},
	}},
	{name: "alternative_format", overlay: backend.Options{Format: "best[height<=720]/best"}},
}

// Orchestrator runs the extraction fallback chains.
type Orchestrator struct {
	backend    backend.Backend
	cache      *cache.Store
	cfg        *model.ExtractionConfig
	httpClient *http.Client
	sem        chan struct{}

	// sleep and backoff are injectable so tests run without real delays.
	sleep   func(time.Duration)
	backoff func() time.Duration
}

// New creates an Orchestrator around the given backend and cache.
func New(be backend.Backend, store *cache.Store, cfg *model.ExtractionConfig) *Orchestrator {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		backend:    be,
		cache:      store,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		sem:        make(chan struct{}, maxConcurrent),
		sleep:      time.Sleep,
		backoff: func() time.Duration {
			return time.Duration(1000+rand.Intn(2000)) * time.Millisecond
		},
	}
}

// Extract resolves url into a VideoInfo. The alternate API chain runs
// first for platforms that have one; the backend strategy chain follows.
// When both chains exhaust, a minimal best-effort record is returned
// instead of an error, flagged via its extraction_method.
func (o *Orchestrator) Extract(ctx context.Context, url, quality string, audioOnly bool) (*model.VideoInfo, error) {
	if !validator.ValidateURL(url) {
		return nil, model.NewError(model.ErrUnsupportedURL, "invalid URL format")
	}

	cacheKey := cache.Key(url, quality, audioOnly)
	if info, ok := o.cache.Get(cacheKey); ok {
		return info, nil
	}

	tag, overlay := platform.Resolve(url)

	if info := o.tryAlternateAPIs(ctx, tag, url); info != nil {
		o.cache.Set(cacheKey, info)
		return info, nil
	}

	base := o.baseOptions(quality, audioOnly)
	for i, strat := range strategies {
		if i > 0 {
			o.sleep(o.backoff())
		}

		opts := base.Merge(overlay).Merge(strat.overlay)
		info, err := o.runStrategy(ctx, strat.name, url, tag, opts)
		if err == nil && info != nil {
			extractionAttempts.WithLabelValues(strat.name, "success").Inc()
			o.cache.Set(cacheKey, info)
			return info, nil
		}
		extractionAttempts.WithLabelValues(strat.name, "failure").Inc()

		if err != nil {
			cerr := model.AsError(err)
			logger.Logger.Warn("Extraction strategy failed",
				zap.String("strategy", strat.name),
				zap.String("url", url),
				zap.String("error_code", string(cerr.Code)))
			if cerr.Fatal() {
				return nil, cerr
			}
		}
	}

	logger.Logger.Warn("All extraction strategies exhausted, returning minimal record",
		zap.String("url", url),
		zap.String("platform", tag))
	return o.minimalRecord(url, tag), nil
}

// runStrategy executes one strategy, retrying transient failures a bounded
// number of times before giving up on it.
func (o *Orchestrator) runStrategy(ctx context.Context, name, url, tag string, opts backend.Options) (*model.VideoInfo, error) {
	var lastErr error
	attempts := 1 + o.cfg.RetriesPerStrategy

	for attempt := 0; attempt < attempts; attempt++ {
		raw, err := o.callBackend(ctx, url, opts)
		if err == nil {
			if raw.Title == "" && len(raw.Formats) == 0 {
				return nil, model.NewError(model.ErrVideoUnavailable, "backend returned empty info")
			}
			return o.buildVideoInfo(raw, tag, "backend_"+name), nil
		}

		lastErr = err
		cerr := model.AsError(err)
		if !cerr.Retryable() {
			return nil, cerr
		}
	}
	return nil, lastErr
}

// callBackend runs one backend call through the bounded worker pool.
func (o *Orchestrator) callBackend(ctx context.Context, url string, opts backend.Options) (*backend.RawInfo, error) {
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, model.NewError(model.ErrTimeout, "extraction queue wait cancelled")
	}
	defer func() { <-o.sem }()

	return o.backend.ExtractInfo(ctx, url, opts)
}

func (o *Orchestrator) baseOptions(quality string, audioOnly bool) backend.Options {
	opts := backend.Options{
		Format:     "best",
		NoPlaylist: true,
		AudioOnly:  audioOnly,
	}
	if quality != "" && quality != "best" {
		opts.Format = format.Selector(quality)
	}
	return opts
}

// buildVideoInfo assembles the canonical result from raw backend output.
func (o *Orchestrator) buildVideoInfo(raw *backend.RawInfo, tag, method string) *model.VideoInfo {
	classified := format.Classify(raw.Formats)

	title := raw.Title
	if title == "" {
		title = "Unknown Title"
	}
	uploader := raw.Uploader
	if uploader == "" {
		uploader = "Unknown"
	}

	return &model.VideoInfo{
		Title:            title,
		Description:      raw.Description,
		Duration:         int(raw.Duration),
		Uploader:         uploader,
		UploaderID:       raw.UploaderID,
		UploadDate:       raw.UploadDate,
		ViewCount:        raw.ViewCount,
		LikeCount:        raw.LikeCount,
		Thumbnail:        raw.Thumbnail,
		WebpageURL:       raw.WebpageURL,
		Platform:         tag,
		ExtractionMethod: method,
		Formats:          classified.All,
		AudioFormats:     classified.AudioOnly,
		VideoOnlyFormats: classified.VideoOnly,
		Recommended:      classified.Recommended,
	}
}

// minimalRecord is the valid-but-incomplete degradation product of a fully
// exhausted chain.
func (o *Orchestrator) minimalRecord(url, tag string) *model.VideoInfo {
	id := platform.VideoID(url, tag)
	label := tag
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	title := fmt.Sprintf("%s video", label)
	if id != "" {
		title = fmt.Sprintf("%s video %s", label, id)
	}

	info := &model.VideoInfo{
		Title:            title,
		Uploader:         "Unknown",
		WebpageURL:       url,
		Platform:         tag,
		ExtractionMethod: MethodFallback,
		Formats:          []model.FormatDescriptor{},
	}
	if tag == platform.YouTube && id != "" {
		info.Thumbnail = fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", id)
	}
	return info
}

// Validate performs a cheap flat-extraction probe to reject unsupported
// URLs before committing to the full chain.
func (o *Orchestrator) Validate(ctx context.Context, url string) *model.ValidationResult {
	if !validator.ValidateURL(url) {
		return &model.ValidationResult{
			Valid:    false,
			Platform: "unknown",
			Error:    "invalid URL format",
		}
	}

	tag, _ := platform.Resolve(url)
	opts := backend.Options{FlatPlaylist: true}

	raw, err := o.callBackend(ctx, url, opts)
	if err != nil || raw == nil || (raw.Title == "" && len(raw.Entries) == 0) {
		return &model.ValidationResult{
			Valid:    false,
			Platform: tag,
			Error:    "URL not accessible or not supported",
		}
	}

	result := &model.ValidationResult{
		Valid:      true,
		Platform:   tag,
		Title:      raw.Title,
		IsPlaylist: len(raw.Entries) > 0,
		VideoCount: 1,
	}
	if result.IsPlaylist {
		result.VideoCount = len(raw.Entries)
	}
	return result
}

// ExtractPlaylist resolves shallow metadata for up to maxVideos playlist
// entries.
func (o *Orchestrator) ExtractPlaylist(ctx context.Context, url string, maxVideos int) (*model.PlaylistInfo, error) {
	if !validator.ValidateURL(url) {
		return nil, model.NewError(model.ErrUnsupportedURL, "invalid URL format")
	}
	if maxVideos <= 0 {
		maxVideos = 50
	}

	opts := backend.Options{
		FlatPlaylist: true,
		PlaylistEnd:  maxVideos,
	}
	raw, err := o.callBackend(ctx, url, opts)
	if err != nil {
		return nil, model.AsError(err)
	}
	if len(raw.Entries) == 0 {
		return nil, model.NewError(model.ErrUnsupportedURL, "URL is not a playlist")
	}

	info := &model.PlaylistInfo{
		Title:       raw.Title,
		Description: raw.Description,
		Uploader:    raw.Uploader,
	}
	if info.Title == "" {
		info.Title = "Unknown Playlist"
	}
	if info.Uploader == "" {
		info.Uploader = "Unknown"
	}

	for _, entry := range raw.Entries {
		if len(info.Videos) >= maxVideos {
			break
		}
		info.Videos = append(info.Videos, model.PlaylistEntry{
			ID:        entry.ID,
			Title:     entry.Title,
			URL:       entry.URL,
			Duration:  int(entry.Duration),
			Thumbnail: entry.Thumbnail,
		})
	}
	info.VideoCount = len(info.Videos)
	return info, nil
}
