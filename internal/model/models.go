package model

import "time"

// FormatDescriptor is a normalized description of one retrievable media stream.
// Derived from raw backend output and never mutated after creation.
type FormatDescriptor struct {
	FormatID   string  `json:"format_id"`
	URL        string  `json:"url"`
	Ext        string  `json:"ext"`
	Quality    string  `json:"quality"`
	Height     int     `json:"height,omitempty"`
	Width      int     `json:"width,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	VideoCodec string  `json:"vcodec"`
	AudioCodec string  `json:"acodec"`
	Filesize   int64   `json:"filesize,omitempty"` // 0 when unknown
	TBR        float64 `json:"tbr,omitempty"`      // total bitrate
	VBR        float64 `json:"vbr,omitempty"`
	ABR        float64 `json:"abr,omitempty"`
	Protocol   string  `json:"protocol"`
	HasVideo   bool    `json:"has_video"`
	HasAudio   bool    `json:"has_audio"`
	Type       string  `json:"type"` // video+audio, video-only, audio-only
}

// FormatRef is a compact pointer to one recommended format.
type FormatRef struct {
	FormatID string `json:"format_id"`
	URL      string `json:"url"`
	Quality  string `json:"quality"`
	Ext      string `json:"ext"`
}

// Recommendations holds derived quality recommendations.
type Recommendations struct {
	BestQuality    *FormatRef `json:"best_quality"`
	BestAudio      *FormatRef `json:"best_audio"`
	MobileFriendly *FormatRef `json:"mobile_friendly"`
	FastStreaming  *FormatRef `json:"fast_streaming"`
}

// ClassifiedFormats partitions normalized formats by stream composition.
type ClassifiedFormats struct {
	All         []FormatDescriptor `json:"formats"`
	AudioOnly   []FormatDescriptor `json:"audio_formats"`
	VideoOnly   []FormatDescriptor `json:"video_only_formats"`
	Recommended Recommendations    `json:"recommended"`
}

// VideoInfo is the canonical extraction result. Immutable once returned.
type VideoInfo struct {
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Duration         int                `json:"duration"` // seconds
	Uploader         string             `json:"uploader"`
	UploaderID       string             `json:"uploader_id,omitempty"`
	UploadDate       string             `json:"upload_date"`
	ViewCount        int64              `json:"view_count"`
	LikeCount        int64              `json:"like_count"`
	Thumbnail        string             `json:"thumbnail"`
	WebpageURL       string             `json:"webpage_url"`
	Platform         string             `json:"platform"`
	ExtractionMethod string             `json:"extraction_method"`
	Formats          []FormatDescriptor `json:"formats"`
	AudioFormats     []FormatDescriptor `json:"audio_formats"`
	VideoOnlyFormats []FormatDescriptor `json:"video_only_formats"`
	Recommended      Recommendations    `json:"recommended"`
}

// PlaylistEntry is one video within an extracted playlist.
type PlaylistEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

// PlaylistInfo is the result of a playlist extraction.
type PlaylistInfo struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Uploader    string          `json:"uploader"`
	VideoCount  int             `json:"video_count"`
	Videos      []PlaylistEntry `json:"videos"`
}

// ValidationResult reports the outcome of a cheap extraction probe.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Platform   string `json:"platform"`
	Title      string `json:"title,omitempty"`
	IsPlaylist bool   `json:"is_playlist"`
	VideoCount int    `json:"video_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Download job status values.
const (
	DownloadStatusDownloading = "downloading"
	DownloadStatusFinished    = "finished"
	DownloadStatusFailed      = "failed"
	DownloadStatusNotFound    = "not_found"
)

// DownloadJob is the live status of one download.
type DownloadJob struct {
	ID              string    `json:"download_id"`
	Status          string    `json:"status"`
	Progress        float64   `json:"progress_percent"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	TotalBytes      int64     `json:"total_bytes"`
	Speed           float64   `json:"speed"` // bytes/sec
	ETA             int64     `json:"eta"`   // seconds
	Filename        string    `json:"filename,omitempty"`
	Filesize        int64     `json:"filesize,omitempty"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
}

// DownloadResult is returned once a download has been finalized.
type DownloadResult struct {
	DownloadID  string `json:"download_id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	Filesize    int64  `json:"filesize"`
	Title       string `json:"title"`
}

// ExtractRequest is the body of POST /api/extract.
type ExtractRequest struct {
	URL               string `json:"url" binding:"required"`
	Quality           string `json:"quality"`
	AudioOnly         bool   `json:"audio_only"`
	IncludePlaylist   bool   `json:"include_playlist"`
	MaxPlaylistVideos int    `json:"max_playlist_videos"`
}

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	URL        string `json:"url" binding:"required"`
	Quality    string `json:"quality"`
	FormatType string `json:"format_type"` // video, audio
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	URL string `json:"url" binding:"required"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
