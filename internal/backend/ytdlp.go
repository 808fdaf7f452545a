package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"videoextract/pkg/logger"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// YTDLP is the production Backend backed by the yt-dlp binary.
type YTDLP struct {
	timeout         time.Duration
	downloadTimeout time.Duration
}

// NewYTDLP creates the yt-dlp backed backend. timeout bounds each metadata
// call; downloadTimeout bounds media transfers, with 0 leaving them open.
func NewYTDLP(timeout, downloadTimeout time.Duration) *YTDLP {
	return &YTDLP{timeout: timeout, downloadTimeout: downloadTimeout}
}

var _ Backend = (*YTDLP)(nil)

// extractContext bounds a metadata call to the extraction timeout.
func (b *YTDLP) extractContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// downloadContext bounds a media transfer. Transfers run far longer than
// metadata calls and never inherit the extraction timeout.
func (b *YTDLP) downloadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.downloadTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.downloadTimeout)
}

// ExtractInfo resolves metadata without downloading.
func (b *YTDLP) ExtractInfo(ctx context.Context, url string, opts Options) (*RawInfo, error) {
	ctx, cancel := b.extractContext(ctx)
	defer cancel()

	dl := ytdlp.New().
		SkipDownload().
		PrintJSON().
		Quiet()
	dl = applyOptions(dl, opts)

	res, err := dl.Run(ctx, url)
	if err != nil {
		var output string
		if res != nil {
			output = res.Stderr
		}
		cerr := ClassifyError(err, output)
		logger.Logger.Warn("Backend extraction failed",
			zap.String("url", url),
			zap.String("error_code", string(cerr.Code)))
		return nil, cerr
	}

	info := &RawInfo{}
	if err := json.Unmarshal([]byte(res.Stdout), info); err != nil {
		return nil, ClassifyError(fmt.Errorf("decoding backend output: %w", err), "")
	}
	return info, nil
}

// Download fetches the media to opts.OutputTemplate, forwarding progress
// events to the supplied callback.
func (b *YTDLP) Download(ctx context.Context, url string, opts Options, progress func(ProgressEvent)) error {
	ctx, cancel := b.downloadContext(ctx)
	defer cancel()

	dl := ytdlp.New().
		Quiet().
		RestrictFilenames()
	dl = applyOptions(dl, opts)

	if opts.OutputTemplate != "" {
		dl = dl.Output(opts.OutputTemplate)
	}
	if opts.AudioOnly {
		dl = dl.ExtractAudio().AudioFormat("mp3")
	}
	if opts.MaxFilesize > 0 {
		dl = dl.MaxFileSize(strconv.FormatInt(opts.MaxFilesize, 10))
	}
	if progress != nil {
		dl = dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
			progress(ProgressEvent{
				Status:          string(update.Status),
				DownloadedBytes: int64(update.DownloadedBytes),
				TotalBytes:      int64(update.TotalBytes),
				Filename:        update.Filename,
			})
		})
	}

	res, err := dl.Run(ctx, url)
	if err != nil {
		var output string
		if res != nil {
			output = res.Stderr
		}
		return ClassifyError(err, output)
	}
	return nil
}

// applyOptions translates the shared options onto the command builder.
func applyOptions(dl *ytdlp.Command, opts Options) *ytdlp.Command {
	if opts.Format != "" && !opts.AudioOnly {
		dl = dl.Format(opts.Format)
	}
	if opts.UserAgent != "" {
		dl = dl.UserAgent(opts.UserAgent)
	}
	if opts.AgeLimit > 0 {
		dl = dl.AgeLimit(opts.AgeLimit)
	}
	if args := youtubeExtractorArgs(opts); args != "" {
		dl = dl.ExtractorArgs(args)
	}
	if opts.NoPlaylist {
		dl = dl.NoPlaylist()
	}
	if opts.FlatPlaylist {
		dl = dl.FlatPlaylist()
	}
	if opts.PlaylistEnd > 0 {
		dl = dl.PlaylistEnd(opts.PlaylistEnd)
	}
	return dl
}

// youtubeExtractorArgs renders player client and manifest skip settings in
// the backend's extractor-args syntax.
func youtubeExtractorArgs(opts Options) string {
	var parts []string
	if len(opts.PlayerClients) > 0 {
		parts = append(parts, "player_client="+strings.Join(opts.PlayerClients, ","))
	}
	if len(opts.SkipManifests) > 0 {
		parts = append(parts, "skip="+strings.Join(opts.SkipManifests, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return "youtube:" + strings.Join(parts, ";")
}
