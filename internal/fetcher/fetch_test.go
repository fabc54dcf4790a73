package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TarlanTV-test", r.Header.Get("User-Agent"))
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	got, err := New("TarlanTV-test", 5*time.Second).Fetch(context.Background(), srv.URL+"/a.m3u")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", got)
}

func TestFetch_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New("", 5*time.Second).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetch_malformedURL(t *testing.T) {
	_, err := New("", time.Second).Fetch(context.Background(), "http://[::1")
	require.Error(t, err)
}

func TestPageText_html(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>T</title><script>var x = "#EXTM3U";</script></head>
<body><h1>Free lists</h1>
<pre>#EXTM3U
#EXTINF:-1,One
http://x/1</pre>
<p>line a<br>line b</p></body></html>`))
	}))
	defer srv.Close()

	got, err := New("", 5*time.Second).PageText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Free lists\n#EXTM3U\n#EXTINF:-1,One\nhttp://x/1\nline a\nline b", got)
	assert.Equal(t, 1, strings.Count(got, "#EXTM3U"))
}

func TestPageText_plain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("#EXTM3U\n#EXTINF:-1,A\nhttp://x/a\n"))
	}))
	defer srv.Close()

	got, err := New("", 5*time.Second).PageText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n#EXTINF:-1,A\nhttp://x/a\n", got)
}
