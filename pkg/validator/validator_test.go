package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"http://example.com/video",
		"https://vimeo.com/123",
	}
	for _, u := range valid {
		assert.True(t, ValidateURL(u), u)
	}

	invalid := []string{
		"",
		"not a url",
		"ftp://example.com/file",
		"javascript:alert(1)",
		"https://",
		"/relative/path",
	}
	for _, u := range invalid {
		assert.False(t, ValidateURL(u), u)
	}
}

func TestValidateQuality(t *testing.T) {
	for _, q := range []string{"", "144p", "720p", "2160p", "best", "worst", "1080P"} {
		assert.True(t, ValidateQuality(q), q)
	}
	for _, q := range []string{"4k", "hd", "999p"} {
		assert.False(t, ValidateQuality(q), q)
	}
}

func TestValidateFormatType(t *testing.T) {
	assert.True(t, ValidateFormatType(""))
	assert.True(t, ValidateFormatType("video"))
	assert.True(t, ValidateFormatType("audio"))
	assert.False(t, ValidateFormatType("subtitles"))
}

func TestValidateFilename(t *testing.T) {
	valid := []string{"video.mp4", "My Video_1.mp4", "noext"}
	for _, n := range valid {
		assert.True(t, ValidateFilename(n), n)
	}

	invalid := []string{"", ".", "..", "../etc/passwd", "dir/file.mp4", `dir\file.mp4`, "a..b.mp4"}
	for _, n := range invalid {
		assert.False(t, ValidateFilename(n), n)
	}
}
