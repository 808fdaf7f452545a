// Package backend defines the boundary to the media resolution engine.
// The rest of the system only sees the Backend interface; the production
// implementation shells out to yt-dlp.
package backend

import (
	"context"
	"errors"
	"strings"

	"videoextract/internal/model"
)

// Options is the explicit configuration bag for one backend call. Overlays
// are merged with a fixed precedence: strategy > platform > base.
type Options struct {
	Format         string   // format selector, e.g. best[height<=720]/best
	UserAgent      string
	AgeLimit       int
	PlayerClients  []string // youtube player_client extractor args
	SkipManifests  []string // youtube skip extractor args (dash, hls, webpage)
	NoPlaylist     bool
	FlatPlaylist   bool // shallow metadata only, used by validation probes
	PlaylistEnd    int
	AudioOnly      bool
	OutputTemplate string // download mode only
	MaxFilesize    int64  // bytes, download mode only
}

// Merge applies overlay on top of o and returns the result. Zero-valued
// overlay fields leave the base value untouched; booleans are or-ed since
// an overlay never needs to clear them.
func (o Options) Merge(overlay Options) Options {
	out := o
	if overlay.Format != "" {
		out.Format = overlay.Format
	}
	if overlay.UserAgent != "" {
		out.UserAgent = overlay.UserAgent
	}
	if overlay.AgeLimit != 0 {
		out.AgeLimit = overlay.AgeLimit
	}
	if len(overlay.PlayerClients) > 0 {
		out.PlayerClients = overlay.PlayerClients
	}
	if len(overlay.SkipManifests) > 0 {
		out.SkipManifests = overlay.SkipManifests
	}
	out.NoPlaylist = out.NoPlaylist || overlay.NoPlaylist
	out.FlatPlaylist = out.FlatPlaylist || overlay.FlatPlaylist
	if overlay.PlaylistEnd != 0 {
		out.PlaylistEnd = overlay.PlaylistEnd
	}
	out.AudioOnly = out.AudioOnly || overlay.AudioOnly
	if overlay.OutputTemplate != "" {
		out.OutputTemplate = overlay.OutputTemplate
	}
	if overlay.MaxFilesize != 0 {
		out.MaxFilesize = overlay.MaxFilesize
	}
	return out
}

// RawFormat mirrors one entry of the backend's format list.
type RawFormat struct {
	FormatID   string  `json:"format_id"`
	URL        string  `json:"url"`
	Ext        string  `json:"ext"`
	FormatNote string  `json:"format_note"`
	Height     int     `json:"height"`
	Width      int     `json:"width"`
	FPS        float64 `json:"fps"`
	Vcodec     string  `json:"vcodec"`
	Acodec     string  `json:"acodec"`
	Filesize   int64   `json:"filesize"`
	TBR        float64 `json:"tbr"`
	VBR        float64 `json:"vbr"`
	ABR        float64 `json:"abr"`
	Protocol   string  `json:"protocol"`
}

// RawEntry is one shallow playlist entry from a flat extraction.
type RawEntry struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
}

// RawInfo mirrors the backend's metadata output for a single URL.
type RawInfo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Uploader    string      `json:"uploader"`
	UploaderID  string      `json:"uploader_id"`
	UploadDate  string      `json:"upload_date"`
	ViewCount   int64       `json:"view_count"`
	LikeCount   int64       `json:"like_count"`
	Thumbnail   string      `json:"thumbnail"`
	WebpageURL  string      `json:"webpage_url"`
	Extractor   string      `json:"extractor"`
	Formats     []RawFormat `json:"formats"`
	Entries     []RawEntry  `json:"entries"`
}

// ProgressEvent reports download progress from the backend.
type ProgressEvent struct {
	Status          string
	DownloadedBytes int64
	TotalBytes      int64
	Filename        string
}

// Backend resolves a URL into metadata and format descriptors, and can
// perform the actual media fetch.
type Backend interface {
	ExtractInfo(ctx context.Context, url string, opts Options) (*RawInfo, error)
	Download(ctx context.Context, url string, opts Options, progress func(ProgressEvent)) error
}

// ClassifyError maps backend failure output onto the error taxonomy.
// The orchestrator uses the resulting code to decide between retrying the
// strategy, moving on, and aborting the chain.
func ClassifyError(err error, output string) *model.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewError(model.ErrTimeout, "backend call timed out")
	}

	text := strings.ToLower(output)
	if text == "" {
		text = strings.ToLower(err.Error())
	}

	switch {
	case strings.Contains(text, "unsupported url") || strings.Contains(text, "is not a valid url"):
		return model.NewError(model.ErrUnsupportedURL, "URL is not supported")
	case strings.Contains(text, "video unavailable") ||
		strings.Contains(text, "private video") ||
		strings.Contains(text, "has been removed"):
		return model.NewError(model.ErrVideoUnavailable, "video is unavailable or private")
	case strings.Contains(text, "sign in to confirm your age") ||
		strings.Contains(text, "age-restricted") ||
		strings.Contains(text, "age restricted"):
		return model.NewError(model.ErrAgeRestricted, "video is age restricted")
	case strings.Contains(text, "not available in your country") ||
		strings.Contains(text, "geo restriction") ||
		strings.Contains(text, "geo-restricted"):
		return model.NewError(model.ErrGeoRestricted, "video is not available in this region")
	case strings.Contains(text, "timed out") || strings.Contains(text, "timeout"):
		return model.NewError(model.ErrTimeout, "backend call timed out")
	case strings.Contains(text, "connection") ||
		strings.Contains(text, "network") ||
		strings.Contains(text, "temporary failure"):
		return model.NewError(model.ErrNetwork, "network error during extraction")
	default:
		return model.NewError(model.ErrInternal, err.Error())
	}
}
