package fetcher

import (
	"context"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)href=["']([^"']*\.m3u8?[^"']*)["']`),
	regexp.MustCompile(`(?i)(https?://[^\s<>"']+\.m3u8?[^\s<>"']*)`),
}

var rePlaylistPath = regexp.MustCompile(`(?i)\.m3u8?([?#]|$)`)

// ExtractLinks finds .m3u/.m3u8 URLs in pageText, both href-quoted and bare,
// resolves relative ones against baseURL and returns them deduplicated and
// sorted. No matches yield an empty slice.
func ExtractLinks(pageText, baseURL string) []string {
	var raw []string
	for _, re := range linkPatterns {
		for _, m := range re.FindAllStringSubmatch(pageText, -1) {
			raw = append(raw, m[1])
		}
	}
	return resolveAll(raw, baseURL)
}

// DiscoverLinks fetches the HTML of pageURL and returns the playlist links it
// references, from element attributes and from free text.
func (c *Client) DiscoverLinks(ctx context.Context, pageURL string) ([]string, error) {
	body, err := c.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	raw := []string{}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find("a[href], source[src], video[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
			v, ok := s.Attr("href")
			if !ok {
				v, _ = s.Attr("src")
			}
			if rePlaylistPath.MatchString(v) {
				raw = append(raw, v)
			}
		})
	}
	for _, re := range linkPatterns {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			raw = append(raw, m[1])
		}
	}
	return resolveAll(raw, pageURL), nil
}

func resolveAll(raw []string, baseURL string) []string {
	base, baseErr := url.Parse(baseURL)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(html.UnescapeString(s))
		if s == "" {
			continue
		}
		ref, err := url.Parse(s)
		if err != nil {
			continue
		}
		if !ref.IsAbs() {
			if baseErr != nil || !base.IsAbs() {
				continue
			}
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			continue
		}
		abs := ref.String()
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	sort.Strings(out)
	return out
}
