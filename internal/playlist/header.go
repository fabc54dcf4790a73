package playlist

import (
	"regexp"
	"strings"
)

var reHeaderTitle = regexp.MustCompile(`(?i)(?:^|\s)title="([^"]*)"`)

// HasHeader reports whether text contains the playlist header marker anywhere.
func HasHeader(text string) bool {
	return strings.Contains(strings.ToUpper(text), HeaderMarker)
}

// FromHeader returns text starting at the first header marker, or "" if the
// marker is absent. Page scrapes often carry prose before the playlist.
func FromHeader(text string) string {
	i := strings.Index(strings.ToUpper(text), HeaderMarker)
	if i < 0 {
		return ""
	}
	return text[i:]
}

// Title returns the title="..." attribute of the header line. Attributes on
// later lines are never considered.
func Title(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimPrefix(strings.TrimSpace(line), bom)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToUpper(line), HeaderMarker) {
			return "", false
		}
		m := reHeaderTitle.FindStringSubmatch(line)
		if len(m) < 2 {
			return "", false
		}
		t := strings.TrimSpace(m[1])
		return t, t != ""
	}
	return "", false
}
