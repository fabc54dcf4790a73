package fetcher

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// PageText fetches a web page and returns its readable text, one block per
// line. Plain-text responses are returned as-is. An empty string means the
// page had no text.
func (c *Client) PageText(ctx context.Context, url string) (string, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	r, err := charset.NewReader(io.LimitReader(resp.Body, maxBody), contentType)
	if err != nil {
		return "", fmt.Errorf("charset: %w", err)
	}
	if ct := strings.ToLower(contentType); strings.HasPrefix(ct, "text/plain") || strings.Contains(ct, "mpegurl") {
		body, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("ReadAll: %w", err)
		}
		return string(body), nil
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return readableText(doc), nil
}

// readableText drops non-content elements and keeps block boundaries as
// newlines so playlists pasted into <pre> or <p> blocks stay line-oriented.
func readableText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, svg, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, pre, code, h1, h2, h3, h4, h5, h6, textarea").AppendHtml("\n")

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
