// Package classify maps input URLs to content categories. Classification is
// the branch point of the ingestion pipeline: the category selects which
// extraction strategy chain runs.
package classify

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/knowpipe/knowpipe/internal/model"
)

// videoHosts are platforms whose URLs are treated as video content and
// routed through the caption/subtitle/transcription chain.
var videoHosts = []string{
	"youtube.com", "youtu.be",
	"instagram.com",
	"ted.com",
	"tiktok.com",
	"vimeo.com",
	"dailymotion.com",
	"twitch.tv",
	"twitter.com", "x.com",
	"facebook.com", "fb.watch",
	"reddit.com",
	"streamable.com",
	"rumble.com",
}

// socialHosts are professional-network platforms served by the social chain.
var socialHosts = []string{
	"linkedin.com",
}

// URL returns the content category for a URL. It is a pure function with no
// failure mode: unknown or unparsable hosts default to web.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return model.CategoryWeb
	}
	host := strings.ToLower(u.Hostname())

	for _, h := range videoHosts {
		if matchHost(host, h) {
			return model.CategoryVideo
		}
	}
	for _, h := range socialHosts {
		if matchHost(host, h) {
			return model.CategorySocial
		}
	}
	return model.CategoryWeb
}

// matchHost reports whether host is platform or a subdomain of it.
func matchHost(host, platform string) bool {
	return host == platform || strings.HasSuffix(host, "."+platform)
}

// File returns the content category for an uploaded file based on its
// extension: media files are audio, plain-text formats are text, everything
// else is treated as a document.
func File(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3", ".mp4", ".wav", ".m4a", ".webm":
		return model.CategoryAudio
	case ".txt", ".md", ".csv", ".json":
		return model.CategoryText
	default:
		return model.CategoryDocument
	}
}
