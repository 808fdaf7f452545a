package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"

	"videoextract/internal/format"
	"videoextract/internal/model"
	"videoextract/internal/platform"
	"videoextract/pkg/logger"

	"go.uber.org/zap"
)

// Public metadata mirrors queried before spawning a backend subprocess.
// Instance lists are best-effort; any instance failure falls through to
// the next, and chain failure falls through to the backend strategies.
var (
	invidiousInstances = []string{
		"https://invidious.io",
		"https://yewtu.be",
		"https://invidious.snopyta.org",
	}
	pipedInstances = []string{
		"https://pipedapi.kavin.rocks",
		"https://api.piped.video",
	}
)

// tryAlternateAPIs attempts lightweight metadata extraction through public
// APIs for the resolved platform. Returns nil when no API applies or all
// attempts fail.
func (o *Orchestrator) tryAlternateAPIs(ctx context.Context, tag, url string) *model.VideoInfo {
	switch tag {
	case platform.YouTube:
		id := platform.VideoID(url, tag)
		if id == "" {
			return nil
		}
		if info := o.tryInvidious(ctx, id, url); info != nil {
			return info
		}
		return o.tryPiped(ctx, id, url)
	case platform.Vimeo:
		return o.tryOEmbed(ctx, url,
			"https://vimeo.com/api/oembed.json?url="+neturl.QueryEscape(url),
			tag, "vimeo_oembed")
	case platform.Dailymotion:
		return o.tryOEmbed(ctx, url,
			"https://www.dailymotion.com/services/oembed?format=json&url="+neturl.QueryEscape(url),
			tag, "dailymotion_oembed")
	default:
		return nil
	}
}

// getJSON fetches endpoint and decodes the response body into out.
func (o *Orchestrator) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type invidiousVideo struct {
	Title           string `json:"title"`
	LengthSeconds   int    `json:"lengthSeconds"`
	Author          string `json:"author"`
	AuthorID        string `json:"authorId"`
	ViewCount       int64  `json:"viewCount"`
	Published       int64  `json:"published"`
	Description     string `json:"description"`
	VideoThumbnails []struct {
		Quality string `json:"quality"`
		URL     string `json:"url"`
	} `json:"videoThumbnails"`
	FormatStreams []struct {
		URL          string `json:"url"`
		Itag         string `json:"itag"`
		Container    string `json:"container"`
		QualityLabel string `json:"qualityLabel"`
		Resolution   string `json:"resolution"`
		FPS          int    `json:"fps"`
		Size         string `json:"size"`
	} `json:"formatStreams"`
}

func (o *Orchestrator) tryInvidious(ctx context.Context, videoID, url string) *model.VideoInfo {
	for _, instance := range invidiousInstances {
		var v invidiousVideo
		endpoint := fmt.Sprintf("%s/api/v1/videos/%s", instance, videoID)
		if err := o.getJSON(ctx, endpoint, &v); err != nil {
			continue
		}
		if v.Title == "" {
			continue
		}

		var formats []model.FormatDescriptor
		for _, fs := range v.FormatStreams {
			if fs.URL == "" {
				continue
			}
			height := parseResolutionHeight(fs.Resolution, fs.QualityLabel)
			formats = append(formats, model.FormatDescriptor{
				FormatID:   fs.Itag,
				URL:        fs.URL,
				Ext:        fs.Container,
				Quality:    fs.QualityLabel,
				Height:     height,
				FPS:        float64(fs.FPS),
				VideoCodec: "avc1",
				AudioCodec: "mp4a",
				HasVideo:   true,
				HasAudio:   true,
				Type:       format.TypeCombined,
			})
		}

		thumbnail := ""
		if len(v.VideoThumbnails) > 0 {
			thumbnail = v.VideoThumbnails[0].URL
		}
		description := v.Description
		if len(description) > 1000 {
			description = description[:1000]
		}

		logger.Logger.Info("Extraction served by alternate API",
			zap.String("api", "invidious"),
			zap.String("instance", instance),
			zap.String("video_id", videoID))
		extractionAttempts.WithLabelValues("invidious_api", "success").Inc()

		return &model.VideoInfo{
			Title:            v.Title,
			Description:      description,
			Duration:         v.LengthSeconds,
			Uploader:         v.Author,
			UploaderID:       v.AuthorID,
			ViewCount:        v.ViewCount,
			Thumbnail:        thumbnail,
			WebpageURL:       url,
			Platform:         platform.YouTube,
			ExtractionMethod: "invidious_api",
			Formats:          formats,
		}
	}
	return nil
}

type pipedVideo struct {
	Title        string `json:"title"`
	Duration     int    `json:"duration"`
	Uploader     string `json:"uploader"`
	Views        int64  `json:"views"`
	UploadDate   string `json:"uploadDate"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoStreams []struct {
		URL       string `json:"url"`
		Format    string `json:"format"`
		Quality   string `json:"quality"`
		VideoOnly bool   `json:"videoOnly"`
	} `json:"videoStreams"`
}

func (o *Orchestrator) tryPiped(ctx context.Context, videoID, url string) *model.VideoInfo {
	for _, instance := range pipedInstances {
		var v pipedVideo
		endpoint := fmt.Sprintf("%s/streams/%s", instance, videoID)
		if err := o.getJSON(ctx, endpoint, &v); err != nil {
			continue
		}
		if v.Title == "" {
			continue
		}

		var formats []model.FormatDescriptor
		for i, vs := range v.VideoStreams {
			if vs.URL == "" {
				continue
			}
			ftype := format.TypeCombined
			hasAudio := true
			if vs.VideoOnly {
				ftype = format.TypeVideoOnly
				hasAudio = false
			}
			formats = append(formats, model.FormatDescriptor{
				FormatID: fmt.Sprintf("piped_%d", i),
				URL:      vs.URL,
				Ext:      strings.ToLower(vs.Format),
				Quality:  vs.Quality,
				Height:   parseResolutionHeight("", vs.Quality),
				HasVideo: true,
				HasAudio: hasAudio,
				Type:     ftype,
			})
		}

		logger.Logger.Info("Extraction served by alternate API",
			zap.String("api", "piped"),
			zap.String("instance", instance),
			zap.String("video_id", videoID))
		extractionAttempts.WithLabelValues("piped_api", "success").Inc()

		return &model.VideoInfo{
			Title:            v.Title,
			Description:      v.Description,
			Duration:         v.Duration,
			Uploader:         v.Uploader,
			UploadDate:       v.UploadDate,
			ViewCount:        v.Views,
			Thumbnail:        v.ThumbnailURL,
			WebpageURL:       url,
			Platform:         platform.YouTube,
			ExtractionMethod: "piped_api",
			Formats:          formats,
		}
	}
	return nil
}

type oembedResponse struct {
	Title        string  `json:"title"`
	AuthorName   string  `json:"author_name"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"`
	Description  string  `json:"description"`
}

// tryOEmbed fetches title-level metadata from a platform oEmbed endpoint.
// oEmbed never exposes media URLs, so the result carries no formats.
func (o *Orchestrator) tryOEmbed(ctx context.Context, url, endpoint, tag, method string) *model.VideoInfo {
	var v oembedResponse
	if err := o.getJSON(ctx, endpoint, &v); err != nil {
		return nil
	}
	if v.Title == "" {
		return nil
	}

	logger.Logger.Info("Extraction served by alternate API",
		zap.String("api", method),
		zap.String("url", url))
	extractionAttempts.WithLabelValues(method, "success").Inc()

	return &model.VideoInfo{
		Title:            v.Title,
		Description:      v.Description,
		Duration:         int(v.Duration),
		Uploader:         v.AuthorName,
		Thumbnail:        v.ThumbnailURL,
		WebpageURL:       url,
		Platform:         tag,
		ExtractionMethod: method,
		Formats:          []model.FormatDescriptor{},
	}
}

// parseResolutionHeight pulls the pixel height out of "1280x720" or "720p"
// style labels. Zero when neither form matches.
func parseResolutionHeight(resolution, label string) int {
	if idx := strings.IndexByte(resolution, 'x'); idx >= 0 {
		var h int
		if _, err := fmt.Sscanf(resolution[idx+1:], "%d", &h); err == nil {
			return h
		}
	}
	var h int
	if _, err := fmt.Sscanf(label, "%dp", &h); err == nil {
		return h
	}
	return 0
}
