// Package service runs playlist ingestion jobs: it acquires playlist text from
// a source URL, parses and stores its channels, and validates them.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tarlanaraujo/TarlanTV/internal/cache"
	"github.com/tarlanaraujo/TarlanTV/internal/metrics"
	"github.com/tarlanaraujo/TarlanTV/internal/models"
	"github.com/tarlanaraujo/TarlanTV/internal/playlist"
	"github.com/tarlanaraujo/TarlanTV/internal/store"
	"github.com/tarlanaraujo/TarlanTV/internal/validator"
)

var (
	// ErrInvalidURL is returned for source or page URLs that are not http(s).
	ErrInvalidURL = errors.New("url must be a valid http or https URL")
	// ErrNoContent means neither a direct fetch nor a page scrape produced
	// playlist text.
	ErrNoContent = errors.New("failed to fetch playlist content")
	// ErrQueueFull is returned by Submit when the job queue has no room.
	ErrQueueFull = errors.New("ingestion queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("coordinator stopped")
	// ErrBusy is returned when a channel is already being probed.
	ErrBusy = errors.New("channel is being tested")
)

const interruptedTitle = "interrupted: service stopped before the job ran"

// Fetcher acquires playlist sources.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	PageText(ctx context.Context, url string) (string, error)
	DiscoverLinks(ctx context.Context, pageURL string) ([]string, error)
}

// Validator probes channels and records their liveness.
type Validator interface {
	ValidateAll(ctx context.Context, channels []*models.Channel) validator.Result
	ValidateOne(ctx context.Context, ch *models.Channel) bool
}

// Options tunes a Coordinator.
type Options struct {
	// Workers is the number of jobs run concurrently.
	Workers int
	// QueueSize bounds jobs waiting for a worker.
	QueueSize int
	// JobLockTTL bounds how long a job may hold its validation lock.
	JobLockTTL time.Duration
	// RetestLockTTL bounds a single-channel retest.
	RetestLockTTL time.Duration
}

// Coordinator owns jobs from submission to a terminal status. Jobs run on a
// fixed pool of workers, each with its own store calls; jobs share nothing
// else.
type Coordinator struct {
	store     store.Store
	fetcher   Fetcher
	validator Validator
	locker    cache.Locker
	logger    *zap.Logger
	opts      Options
	now       func() time.Time

	queue  chan int64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders enqueues and retest goroutine starts before Stop's drain.
	mu      sync.Mutex
	stopped bool
}

// New returns a Coordinator. Call Start to run queued jobs.
func New(s store.Store, f Fetcher, v Validator, locker cache.Locker, opts Options, logger *zap.Logger) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.JobLockTTL <= 0 {
		opts.JobLockTTL = 2 * time.Hour
	}
	if opts.RetestLockTTL <= 0 {
		opts.RetestLockTTL = time.Minute
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:     s,
		fetcher:   f,
		validator: v,
		locker:    locker,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		queue:     make(chan int64, opts.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit creates a pending job for sourceURL and queues it. It returns as
// soon as the job is queued; callers poll JobStatus for progress. When the
// job was created but could not be queued, its id is returned with the error
// and the job is already failed.
func (c *Coordinator) Submit(ctx context.Context, sourceURL string) (int64, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if !isHTTPURL(sourceURL) {
		return 0, ErrInvalidURL
	}
	if c.isStopped() {
		return 0, ErrStopped
	}
	job, err := c.store.CreateJob(ctx, sourceURL)
	if err != nil {
		return 0, fmt.Errorf("CreateJob: %w", err)
	}
	if err := c.enqueue(job.ID); err != nil {
		c.fail(job.ID, err.Error())
		return job.ID, err
	}
	c.logger.Info("job submitted", zap.Int64("job_id", job.ID), zap.String("url", sourceURL))
	return job.ID, nil
}

func (c *Coordinator) enqueue(jobID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	select {
	case c.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Coordinator) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Run drives one job through pending → processing → completed|failed and,
// once completed, validates its channels. It never returns an error: every
// failure ends up in the job's status and title.
func (c *Coordinator) Run(ctx context.Context, jobID int64) {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()
	logger := c.logger.With(zap.Int64("job_id", jobID))

	if ctx.Err() != nil {
		c.fail(jobID, interruptedTitle)
		return
	}
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		logger.Error("load job", zap.Error(err))
		if !errors.Is(err, store.ErrNotFound) {
			c.fail(jobID, "error: "+err.Error())
		}
		return
	}
	// Held from before the channels exist until validation ends, so a retest
	// can never overlap the batch.
	unlock, err := c.locker.TryLock(ctx, jobLockKey(jobID), c.opts.JobLockTTL)
	if errors.Is(err, cache.ErrLocked) {
		logger.Warn("job already running")
		return
	}
	if err != nil {
		logger.Error("lock job", zap.Error(err))
		c.fail(jobID, "error: "+err.Error())
		return
	}
	defer unlock()

	if err := c.store.StartJob(ctx, jobID); err != nil {
		logger.Warn("start job", zap.String("status", string(job.Status)), zap.Error(err))
		if !errors.Is(err, store.ErrInvalidTransition) && !errors.Is(err, store.ErrNotFound) {
			c.fail(jobID, "error: "+err.Error())
		}
		return
	}

	channels, err := c.ingest(ctx, logger, job)
	if err != nil {
		title := "error: " + err.Error()
		if errors.Is(err, ErrNoContent) {
			title = ErrNoContent.Error()
		}
		logger.Warn("job failed", zap.Error(err))
		c.fail(jobID, title)
		return
	}
	metrics.JobsTotal.WithLabelValues(string(models.JobCompleted)).Inc()
	metrics.ChannelsParsedTotal.Add(float64(len(channels)))
	logger.Info("job completed", zap.Int("channels", len(channels)))

	c.validateJob(ctx, logger, jobID, channels)
}

// ingest acquires, parses and stores the playlist. Panics are converted to
// errors so a job is never left in processing.
func (c *Coordinator) ingest(ctx context.Context, logger *zap.Logger, job *models.Job) (channels []models.Channel, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingest panicked", zap.Any("panic", r))
			err = fmt.Errorf("internal failure: %v", r)
		}
	}()

	text, err := c.acquire(ctx, logger, job.SourceURL)
	if err != nil {
		return nil, err
	}
	parsed, err := playlist.ParseString(text)
	if err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}
	title, ok := playlist.Title(text)
	if !ok {
		title = "IPTV list - " + c.now().Format("2006-01-02 15:04")
	}
	stored, err := c.store.CompleteJob(ctx, job.ID, title, parsed)
	if err != nil {
		return nil, fmt.Errorf("save channels: %w", err)
	}
	return stored, nil
}

// acquire returns playlist text for sourceURL. Direct playlist URLs are
// downloaded; anything else is scraped as a page and accepted only when the
// text carries the playlist header.
func (c *Coordinator) acquire(ctx context.Context, logger *zap.Logger, sourceURL string) (string, error) {
	if isPlaylistURL(sourceURL) {
		text, err := c.fetcher.Fetch(ctx, sourceURL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoContent, err)
		}
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("%w: empty response", ErrNoContent)
		}
		return text, nil
	}

	text, err := c.fetcher.PageText(ctx, sourceURL)
	if err != nil {
		logger.Warn("scrape page", zap.String("url", sourceURL), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrNoContent, err)
	}
	if !playlist.HasHeader(text) {
		return "", fmt.Errorf("%w: no playlist found on page", ErrNoContent)
	}
	return playlist.FromHeader(text), nil
}

// validateJob probes the job's channels and stores the recount. The job's
// status is not touched: a completed playlist stays completed even if no
// channel works.
func (c *Coordinator) validateJob(ctx context.Context, logger *zap.Logger, jobID int64, channels []models.Channel) {
	ptrs := make([]*models.Channel, len(channels))
	for i := range channels {
		ptrs[i] = &channels[i]
	}
	res := c.validator.ValidateAll(ctx, ptrs)

	// The recount must land even when shutdown cancelled the batch.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	n, err := c.store.RefreshValidCount(wctx, jobID)
	if err != nil {
		logger.Error("refresh valid count", zap.Error(err))
		return
	}
	logger.Info("job validated",
		zap.Int("checked", res.Checked),
		zap.Int("valid_channels", n),
	)
}

// fail moves a job to failed with a context that outlives the job's own.
func (c *Coordinator) fail(jobID int64, title string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.FailJob(ctx, jobID, title); err != nil {
		c.logger.Error("fail job", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}
	metrics.JobsTotal.WithLabelValues(string(models.JobFailed)).Inc()
}

func jobLockKey(jobID int64) string         { return fmt.Sprintf("lock:job:%d", jobID) }
func channelLockKey(channelID int64) string { return fmt.Sprintf("lock:channel:%d", channelID) }

func isHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// isPlaylistURL reports whether the URL names an .m3u or .m3u8 file, by path
// or, for links like "get.php?x=1&f=.m3u", by the whole string.
func isPlaylistURL(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, ".m3u") || strings.HasSuffix(lower, ".m3u8") {
		return true
	}
	u, err := url.Parse(lower)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, ".m3u") || strings.HasSuffix(u.Path, ".m3u8")
}
