// Package platform maps media URLs to platform tags and the extraction
// option overlays each platform needs.
package platform

import (
	"regexp"
	"strings"

	"videoextract/internal/backend"
)

// Platform tags.
const (
	YouTube     = "youtube"
	Vimeo       = "vimeo"
	Dailymotion = "dailymotion"
	Twitch      = "twitch"
	Facebook    = "facebook"
	Instagram   = "instagram"
	TikTok      = "tiktok"
	Twitter     = "twitter"
	Generic     = "generic"
)

// domainTable maps substring patterns to platform tags, checked in order.
var domainTable = []struct {
	tag      string
	patterns []string
}{
	{YouTube, []string{"youtube.com", "youtu.be"}},
	{Vimeo, []string{"vimeo.com"}},
	{Dailymotion, []string{"dailymotion.com"}},
	{Twitch, []string{"twitch.tv"}},
	{Facebook, []string{"facebook.com", "fb.watch"}},
	{Instagram, []string{"instagram.com"}},
	{TikTok, []string{"tiktok.com"}},
	{Twitter, []string{"twitter.com", "x.com"}},
}

// overlays holds per-platform extraction option overlays merged on top of
// the base options (and under strategy overrides).
var overlays = map[string]backend.Options{
	YouTube: {
		SkipManifests: []string{"dash"},
	},
	Vimeo: {
		Format: "best[height<=720]",
	},
	Dailymotion: {Format: "best"},
	Twitch:      {Format: "best"},
	Facebook:    {Format: "best"},
	Instagram:   {Format: "best"},
	TikTok:      {Format: "best"},
	Twitter:     {Format: "best"},
}

// Resolve maps a URL to its platform tag and options overlay. Unmatched
// URLs resolve to the generic tag with an empty overlay.
func Resolve(url string) (string, backend.Options) {
	lower := strings.ToLower(url)
	for _, entry := range domainTable {
		for _, pattern := range entry.patterns {
			if strings.Contains(lower, pattern) {
				return entry.tag, overlays[entry.tag]
			}
		}
	}
	return Generic, backend.Options{}
}

// Supported returns the fixed list of recognized platform tags.
func Supported() []string {
	tags := make([]string, 0, len(domainTable))
	for _, entry := range domainTable {
		tags = append(tags, entry.tag)
	}
	return tags
}

var idPatterns = map[string][]*regexp.Regexp{
	YouTube: {
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
	},
	Vimeo: {
		regexp.MustCompile(`vimeo\.com/(\d+)`),
	},
	Dailymotion: {
		regexp.MustCompile(`dailymotion\.com/video/([^_?&#]+)`),
	},
	TikTok: {
		regexp.MustCompile(`tiktok\.com/@[\w.-]+/video/(\d+)`),
		regexp.MustCompile(`vm\.tiktok\.com/([a-zA-Z0-9]+)`),
	},
	Instagram: {
		regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([a-zA-Z0-9_-]+)`),
	},
}

// VideoID extracts the platform-native video id from a URL, or "" when the
// platform has no known id shape.
func VideoID(url, tag string) string {
	for _, re := range idPatterns[tag] {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}
