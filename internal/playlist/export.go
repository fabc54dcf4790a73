package playlist

import (
	"bufio"
	"io"
	"strings"

	"github.com/tarlanaraujo/TarlanTV/internal/models"
)

// Write serializes the working channels of list as an M3U playlist, in order.
// Channels that are unknown or not working are skipped.
//
// Values cannot carry line breaks, so CR and LF become spaces. Attribute values
// are double-quoted, so a double quote inside category or logo is written as a
// single quote. Names follow the first unquoted comma and are written as-is.
func Write(w io.Writer, list []models.Channel) (int, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(HeaderMarker + "\n"); err != nil {
		return 0, err
	}
	n := 0
	for i := range list {
		ch := &list[i]
		if !ch.Working() {
			continue
		}
		var b strings.Builder
		b.WriteString(extinfPrefix + ":-1")
		if ch.Category != nil && *ch.Category != "" {
			b.WriteString(` group-title="` + attrValue(*ch.Category) + `"`)
		}
		if ch.Logo != nil && *ch.Logo != "" {
			b.WriteString(` tvg-logo="` + attrValue(*ch.Logo) + `"`)
		}
		b.WriteString("," + singleLine(ch.Name) + "\n")
		b.WriteString(singleLine(strings.TrimSpace(ch.URL)) + "\n")
		if _, err := bw.WriteString(b.String()); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// Render is Write into a string.
func Render(list []models.Channel) (string, int) {
	var sb strings.Builder
	n, _ := Write(&sb, list)
	return sb.String(), n
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func singleLine(s string) string {
	return lineBreaks.Replace(s)
}

func attrValue(s string) string {
	return strings.ReplaceAll(singleLine(s), `"`, `'`)
}
