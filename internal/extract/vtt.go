package extract

import (
	"regexp"
	"strings"
)

var vttTagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanVTT strips a WEBVTT subtitle document down to plain text: headers,
// cue numbers, timing lines and markup tags are removed, and consecutive
// identical lines (auto-generated captions repeat the rolling line) are
// deduplicated. Lines are joined with a single space.
func CleanVTT(vtt string) string {
	var out []string
	var prev string

	for _, line := range strings.Split(vtt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" ||
			strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "NOTE") ||
			strings.HasPrefix(line, "Kind:") ||
			strings.HasPrefix(line, "Language:") ||
			strings.Contains(line, "-->") ||
			isDigits(line) {
			continue
		}

		line = strings.TrimSpace(vttTagPattern.ReplaceAllString(line, ""))
		if line == "" || line == prev {
			continue
		}
		out = append(out, line)
		prev = line
	}
	return strings.Join(out, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
