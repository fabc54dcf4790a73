// Package validator probes the channels of a batch concurrently and records
// which ones are working.
package validator

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tarlanaraujo/TarlanTV/internal/metrics"
	"github.com/tarlanaraujo/TarlanTV/internal/models"
)

// Defaults applied by New when Options fields are zero.
const (
	DefaultConcurrency = 8
	DefaultPacing      = 100 * time.Millisecond
)

// Prober reports whether a stream URL is reachable within timeout.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) bool
}

// Sink persists one channel's probe outcome. Each call is an independent write.
type Sink interface {
	UpdateChannelStatus(ctx context.Context, channelID int64, working bool, checkedAt time.Time) error
}

// Options tunes a Validator.
type Options struct {
	// Concurrency is the maximum number of probes in flight per batch.
	Concurrency int
	// Timeout bounds each probe; zero leaves it to the Prober.
	Timeout time.Duration
	// Pacing is the delay each probe slot keeps between two probes of the
	// same host within a batch. Negative disables pacing.
	Pacing time.Duration
}

// Result summarizes one ValidateAll pass.
type Result struct {
	Total   int `json:"total"`
	Checked int `json:"checked"`
	Working int `json:"working"`
}

// Validator runs bounded concurrent probes over channel batches.
type Validator struct {
	prober Prober
	sink   Sink
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Validator. sink may be nil when outcomes only need to live in
// memory.
func New(prober Prober, sink Sink, opts Options, logger *zap.Logger) *Validator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Pacing == 0 {
		opts.Pacing = DefaultPacing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{prober: prober, sink: sink, opts: opts, logger: logger, now: time.Now}
}

// ValidateAll probes every channel once, with at most Options.Concurrency
// probes in flight, and sets IsWorking and LastCheckedAt on each probed
// channel. The pointers must be distinct: each channel is owned by exactly one
// task. A failing probe or sink write never affects other channels. When ctx is
// cancelled, channels not yet probed are left unchanged. The returned counts
// are taken from the channels' final state after every task has finished.
func (v *Validator) ValidateAll(ctx context.Context, channels []*models.Channel) Result {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	limiters := xsync.NewMapOf[string, *rate.Limiter]()
	var checked atomic.Int64

	var g errgroup.Group
	g.SetLimit(v.opts.Concurrency)
	for _, ch := range channels {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := v.pace(ctx, limiters, ch.URL); err != nil {
				return nil
			}
			if v.validate(ctx, ch) {
				checked.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Total: len(channels), Checked: int(checked.Load())}
	for _, ch := range channels {
		if ch.Working() {
			res.Working++
		}
	}
	v.logger.Info("batch validated",
		zap.Int("total", res.Total),
		zap.Int("checked", res.Checked),
		zap.Int("working", res.Working),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// ValidateOne probes a single channel and records the outcome. It reports
// whether the channel was probed (false only when ctx was cancelled first).
func (v *Validator) ValidateOne(ctx context.Context, ch *models.Channel) bool {
	return v.validate(ctx, ch)
}

func (v *Validator) validate(ctx context.Context, ch *models.Channel) bool {
	if ctx.Err() != nil {
		return false
	}
	working := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				v.logger.Error("probe panicked", zap.String("url", ch.URL), zap.Any("panic", r))
				working = false
			}
		}()
		working = v.prober.Probe(ctx, ch.URL, v.opts.Timeout)
	}()
	// A probe cut short by batch cancellation says nothing about the stream.
	if ctx.Err() != nil {
		return false
	}

	ch.MarkChecked(working, v.now().UTC())
	if v.sink != nil && ch.ID != 0 {
		if err := v.sink.UpdateChannelStatus(ctx, ch.ID, working, *ch.LastCheckedAt); err != nil {
			v.logger.Warn("update channel status",
				zap.Int64("channel_id", ch.ID),
				zap.Error(err),
			)
		}
	}
	return true
}

func (v *Validator) pace(ctx context.Context, limiters *xsync.MapOf[string, *rate.Limiter], rawURL string) error {
	if v.opts.Pacing < 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	// Each of the Concurrency slots may start one probe per Pacing interval
	// against the same host.
	lim, _ := limiters.LoadOrCompute(host, func() *rate.Limiter {
		every := rate.Every(v.opts.Pacing) * rate.Limit(v.opts.Concurrency)
		return rate.NewLimiter(every, v.opts.Concurrency)
	})
	return lim.Wait(ctx)
}
