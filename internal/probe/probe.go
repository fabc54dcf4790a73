// Package probe checks whether a channel's stream URL is reachable.
package probe

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/tarlanaraujo/TarlanTV/internal/metrics"
)

// DefaultTimeout bounds a probe when the caller does not pass one.
const DefaultTimeout = 8 * time.Second

// Outcome classifies a probe result. Only OutcomeOK means the stream is live.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeBadStatus  Outcome = "bad_status"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeError      Outcome = "error"
	OutcomeInvalidURL Outcome = "invalid_url"
)

// Prober issues lightweight availability requests. It holds no per-call
// state and is safe for concurrent use.
type Prober struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// New returns a Prober. A nil client gets a dedicated transport; timeout <= 0
// means DefaultTimeout.
func New(client *http.Client, userAgent string, timeout time.Duration) *Prober {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{client: client, userAgent: userAgent, timeout: timeout}
}

// Probe reports whether rawURL answered with a success status within timeout
// (the Prober default when timeout <= 0). Every failure folds into false.
func (p *Prober) Probe(ctx context.Context, rawURL string, timeout time.Duration) bool {
	return p.Check(ctx, rawURL, timeout) == OutcomeOK
}

// Check is Probe with the failure category kept.
func (p *Prober) Check(ctx context.Context, rawURL string, timeout time.Duration) Outcome {
	metrics.ProbesInFlight.Inc()
	start := time.Now()
	out := p.check(ctx, rawURL, timeout)
	metrics.ProbesInFlight.Dec()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	metrics.ProbesTotal.WithLabelValues(string(out)).Inc()
	return out
}

func (p *Prober) check(ctx context.Context, rawURL string, timeout time.Duration) Outcome {
	if !isHTTPOrHTTPS(rawURL) {
		return OutcomeInvalidURL
	}
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, err := p.do(ctx, http.MethodHead, rawURL)
	if err == nil && rejectsHead(code) {
		code, err = p.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return OutcomeTimeout
		}
		return OutcomeError
	}
	if code < 200 || code > 299 {
		return OutcomeBadStatus
	}
	return OutcomeOK
}

// do sends one request and returns only its status. GET asks for a small
// byte range so live streams are not downloaded.
func (p *Prober) do(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-1023")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// rejectsHead covers servers that refuse or mishandle HEAD on stream endpoints.
func rejectsHead(code int) bool {
	switch code {
	case http.StatusMethodNotAllowed, http.StatusNotImplemented, http.StatusForbidden, http.StatusBadRequest:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

func isHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
