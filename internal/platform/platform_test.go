package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		url  string
		tag  string
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", YouTube},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", YouTube},
		{"vimeo", "https://vimeo.com/123456789", Vimeo},
		{"dailymotion", "https://www.dailymotion.com/video/x7xyzab", Dailymotion},
		{"twitch", "https://www.twitch.tv/videos/123456", Twitch},
		{"tiktok", "https://www.tiktok.com/@user/video/7123456789", TikTok},
		{"twitter", "https://twitter.com/user/status/123", Twitter},
		{"x.com", "https://x.com/user/status/123", Twitter},
		{"instagram reel", "https://www.instagram.com/reel/abc123/", Instagram},
		{"unknown site", "https://example.com/video.mp4", Generic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, _ := Resolve(tt.url)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestResolveOverlays(t *testing.T) {
	_, opts := Resolve("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.Equal(t, []string{"dash"}, opts.SkipManifests)

	_, opts = Resolve("https://vimeo.com/123456789")
	assert.Equal(t, "best[height<=720]", opts.Format)

	_, opts = Resolve("https://example.com/video.mp4")
	assert.Empty(t, opts.Format)
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url string
		tag string
		id  string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", YouTube, "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", YouTube, "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", YouTube, "dQw4w9WgXcQ"},
		{"https://vimeo.com/123456789", Vimeo, "123456789"},
		{"https://www.dailymotion.com/video/x7xyzab", Dailymotion, "x7xyzab"},
		{"https://www.instagram.com/reel/abc123/", Instagram, "abc123"},
		{"https://www.twitch.tv/videos/123456", Twitch, ""},
		{"https://example.com/watch?v=nope", YouTube, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.id, VideoID(tt.url, tt.tag), "url %s", tt.url)
	}
}

func TestSupported(t *testing.T) {
	tags := Supported()
	assert.Len(t, tags, 8)
	assert.Contains(t, tags, YouTube)
	assert.NotContains(t, tags, Generic)
}
