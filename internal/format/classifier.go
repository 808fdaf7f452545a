// Package format normalizes raw backend format descriptors and derives
// quality recommendations.
package format

import (
	"fmt"
	"sort"

	"videoextract/internal/backend"
	"videoextract/internal/model"
)

// Stream composition tags.
const (
	TypeCombined  = "video+audio"
	TypeVideoOnly = "video-only"
	TypeAudioOnly = "audio-only"
	TypeUnknown   = "unknown"
)

// Classify normalizes raw descriptors, partitions them by stream
// composition, ranks each partition and derives recommendations.
// Descriptors without a source URL are dropped.
func Classify(raws []backend.RawFormat) model.ClassifiedFormats {
	var out model.ClassifiedFormats

	for _, raw := range raws {
		if raw.URL == "" {
			continue
		}
		fd := normalize(raw)
		out.All = append(out.All, fd)
		switch fd.Type {
		case TypeAudioOnly:
			out.AudioOnly = append(out.AudioOnly, fd)
		case TypeVideoOnly:
			out.VideoOnly = append(out.VideoOnly, fd)
		}
	}

	// Combined and video-only rank by height, then total bitrate.
	sort.SliceStable(out.All, func(i, j int) bool {
		if out.All[i].Height != out.All[j].Height {
			return out.All[i].Height > out.All[j].Height
		}
		return out.All[i].TBR > out.All[j].TBR
	})
	sort.SliceStable(out.VideoOnly, func(i, j int) bool {
		if out.VideoOnly[i].Height != out.VideoOnly[j].Height {
			return out.VideoOnly[i].Height > out.VideoOnly[j].Height
		}
		return out.VideoOnly[i].VBR > out.VideoOnly[j].VBR
	})
	sort.SliceStable(out.AudioOnly, func(i, j int) bool {
		return out.AudioOnly[i].ABR > out.AudioOnly[j].ABR
	})

	out.Recommended = recommend(out.All, out.AudioOnly)
	return out
}

func normalize(raw backend.RawFormat) model.FormatDescriptor {
	hasVideo := raw.Vcodec != "" && raw.Vcodec != "none"
	hasAudio := raw.Acodec != "" && raw.Acodec != "none"

	fd := model.FormatDescriptor{
		FormatID:   raw.FormatID,
		URL:        raw.URL,
		Ext:        raw.Ext,
		Quality:    raw.FormatNote,
		Height:     raw.Height,
		Width:      raw.Width,
		FPS:        raw.FPS,
		VideoCodec: raw.Vcodec,
		AudioCodec: raw.Acodec,
		Filesize:   raw.Filesize,
		TBR:        raw.TBR,
		VBR:        raw.VBR,
		ABR:        raw.ABR,
		Protocol:   raw.Protocol,
		HasVideo:   hasVideo,
		HasAudio:   hasAudio,
	}

	switch {
	case hasVideo && hasAudio:
		fd.Type = TypeCombined
	case hasVideo:
		fd.Type = TypeVideoOnly
	case hasAudio:
		fd.Type = TypeAudioOnly
	default:
		fd.Type = TypeUnknown
	}

	if fd.Quality == "" {
		fd.Quality = qualityLabel(fd)
	}
	if fd.Ext == "" {
		if fd.Type == TypeAudioOnly {
			fd.Ext = "mp3"
		} else {
			fd.Ext = "mp4"
		}
	}
	return fd
}

// qualityLabel builds a readable label when the backend gave none.
func qualityLabel(fd model.FormatDescriptor) string {
	if fd.Type == TypeAudioOnly {
		if fd.ABR > 0 {
			return fmt.Sprintf("%.0fkbps", fd.ABR)
		}
		return "unknown"
	}
	if fd.Height > 0 {
		return fmt.Sprintf("%dp", fd.Height)
	}
	return "unknown"
}

// recommend derives the four recommendation slots. all must already be
// sorted height-descending; audioOnly bitrate-descending.
func recommend(all, audioOnly []model.FormatDescriptor) model.Recommendations {
	var rec model.Recommendations

	for i := range all {
		fd := &all[i]
		if fd.Type != TypeCombined {
			continue
		}
		if rec.BestQuality == nil && fd.Height > 0 {
			rec.BestQuality = ref(fd)
		}
		if rec.MobileFriendly == nil && fd.Height > 0 && fd.Height <= 720 {
			rec.MobileFriendly = ref(fd)
		}
		if rec.FastStreaming == nil && fd.Height > 0 && fd.Height <= 360 {
			rec.FastStreaming = ref(fd)
		}
	}

	if len(audioOnly) > 0 {
		rec.BestAudio = &model.FormatRef{
			FormatID: audioOnly[0].FormatID,
			URL:      audioOnly[0].URL,
			Quality:  fmt.Sprintf("%.0fkbps", audioOnly[0].ABR),
			Ext:      audioOnly[0].Ext,
		}
	}
	return rec
}

func ref(fd *model.FormatDescriptor) *model.FormatRef {
	return &model.FormatRef{
		FormatID: fd.FormatID,
		URL:      fd.URL,
		Quality:  fmt.Sprintf("%dp", fd.Height),
		Ext:      fd.Ext,
	}
}

// Selector maps a quality on the ladder to a backend format selector.
func Selector(quality string) string {
	selectors := map[string]string{
		"144p":  "worst[height<=144]/worst",
		"240p":  "best[height<=240]/best",
		"360p":  "best[height<=360]/best",
		"480p":  "best[height<=480]/best",
		"720p":  "best[height<=720]/best",
		"1080p": "best[height<=1080]/best",
		"1440p": "best[height<=1440]/best",
		"2160p": "best[height<=2160]/best",
		"best":  "best",
		"worst": "worst",
	}
	if sel, ok := selectors[quality]; ok {
		return sel
	}
	return "best[height<=720]/best"
}
