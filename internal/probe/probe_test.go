package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbe_headOK(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(nil, "test", time.Second)
	assert.True(t, p.Probe(context.Background(), srv.URL+"/live.m3u8", 0))
	assert.Zero(t, gets.Load(), "GET must not be issued when HEAD succeeds")
}

func TestProbe_headRejectedFallsBackToRangedGet(t *testing.T) {
	var rangeHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rangeHeader.Store(r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	p := New(nil, "", time.Second)
	assert.True(t, p.Probe(context.Background(), srv.URL, 0))
	assert.Equal(t, "bytes=0-1023", rangeHeader.Load())
}

func TestProbe_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(nil, "", time.Second)
	assert.False(t, p.Probe(context.Background(), srv.URL, 0))
	assert.Equal(t, OutcomeBadStatus, p.Check(context.Background(), srv.URL, 0))
}

func TestProbe_timeoutIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	p := New(nil, "", time.Second)
	start := time.Now()
	out := p.Check(context.Background(), srv.URL, 100*time.Millisecond)
	assert.Equal(t, OutcomeTimeout, out)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_connectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	p := New(nil, "", time.Second)
	assert.False(t, p.Probe(context.Background(), addr, 0))
}

func TestProbe_invalidURLs(t *testing.T) {
	p := New(nil, "", time.Second)
	for _, u := range []string{"", "not a url", "ftp://x/stream", "http://[::1", "file:///etc/passwd"} {
		assert.Equal(t, OutcomeInvalidURL, p.Check(context.Background(), u, 0), u)
	}
}

func TestProbe_cancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, New(nil, "", time.Second).Probe(ctx, srv.URL, 0))
}
