package validator

import (
	"net/url"
	"strings"
)

// validQualities is the accepted quality ladder for download requests.
var validQualities = map[string]bool{
	"144p": true, "240p": true, "360p": true, "480p": true,
	"720p": true, "1080p": true, "1440p": true, "2160p": true,
	"best": true, "worst": true,
}

// ValidateURL checks that raw parses as an absolute http(s) URL.
func ValidateURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// ValidateQuality checks that quality is on the supported ladder.
// An empty quality is accepted and handled by the caller's default.
func ValidateQuality(quality string) bool {
	if quality == "" {
		return true
	}
	return validQualities[strings.ToLower(quality)]
}

// ValidateFormatType checks the download format type.
func ValidateFormatType(formatType string) bool {
	switch formatType {
	case "", "video", "audio":
		return true
	default:
		return false
	}
}

// ValidateFilename rejects names that could escape the public store.
func ValidateFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	return !strings.Contains(name, "..")
}
