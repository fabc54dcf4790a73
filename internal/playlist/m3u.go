// Package playlist reads and writes M3U/M3U8 channel lists.
package playlist

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/tarlanaraujo/TarlanTV/internal/models"
)

// HeaderMarker opens every extended M3U playlist.
const HeaderMarker = "#EXTM3U"

const (
	extinfPrefix = "#EXTINF"
	extgrpPrefix = "#EXTGRP:"
	bom          = "\ufeff"
)

var (
	reTvgName = regexp.MustCompile(`tvg-name="([^"]*)"`)
	reTvgLogo = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reGroup   = regexp.MustCompile(`group-title="([^"]*)"`)
)

// Parse reads an M3U playlist from r and returns its channels in input order.
// Parsing is lenient: the header is optional, an #EXTINF line without a
// following URL line is dropped, and duplicate URLs are kept.
func Parse(r io.Reader) ([]models.Channel, error) {
	var channels []models.Channel
	scanner := bufio.NewScanner(r)
	// Handle long lines (some M3U have very long EXTINF lines).
	const maxSize = 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxSize)

	var pending *models.Channel
	first := true

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, bom)
			first = false
		}
		upper := strings.ToUpper(line)

		switch {
		case line == "":
			continue
		case strings.HasPrefix(upper, HeaderMarker):
			continue
		case strings.HasPrefix(upper, extinfPrefix):
			// A previous EXTINF without URL is dropped.
			pending = channelFromEXTINF(line)
		case strings.HasPrefix(upper, extgrpPrefix):
			if pending != nil && pending.Category == nil {
				pending.Category = nonEmpty(line[len(extgrpPrefix):])
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending == nil {
				continue
			}
			pending.URL = line
			channels = append(channels, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return channels, nil
}

// ParseString is Parse over an in-memory playlist.
func ParseString(text string) ([]models.Channel, error) {
	return Parse(strings.NewReader(text))
}

func channelFromEXTINF(line string) *models.Channel {
	name, sep := nameFromEXTINF(line)
	// Attributes live before the separator comma; the name may contain
	// attribute-like text.
	attrs := line
	if sep >= 0 {
		attrs = line[:sep]
	}
	if name == "" {
		name = matchFirst(reTvgName, attrs)
	}
	return &models.Channel{
		Name:     name,
		Category: nonEmpty(matchFirst(reGroup, attrs)),
		Logo:     nonEmpty(matchFirst(reTvgLogo, attrs)),
	}
}

// nameFromEXTINF returns the text after the first comma that is not inside a
// quoted attribute value, and that comma's index (-1 when there is none), so
// both `group-title="A, B"` and names containing commas survive. With
// unbalanced quotes it falls back to the last comma.
func nameFromEXTINF(line string) (string, int) {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				return strings.TrimSpace(line[i+1:]), i
			}
		}
	}
	if i := strings.LastIndex(line, ","); i >= 0 {
		return strings.TrimSpace(line[i+1:]), i
	}
	return "", -1
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
