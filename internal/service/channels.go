package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tarlanaraujo/TarlanTV/internal/cache"
	"github.com/tarlanaraujo/TarlanTV/internal/models"
	"github.com/tarlanaraujo/TarlanTV/internal/playlist"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CategoryGroup is one category and its channels, in stored order.
type CategoryGroup struct {
	Category string           `json:"category"`
	Channels []models.Channel `json:"channels"`
}

// JobStatus returns the job with its working-channel count taken from the
// channels' current state.
func (c *Coordinator) JobStatus(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobCompleted {
		return job, nil
	}
	channels, err := c.store.ListChannels(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := *job
	out.ValidChannelsCount = countWorking(channels)
	return &out, nil
}

// ListJobs returns the most recent jobs, newest first.
func (c *Coordinator) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return c.store.ListJobs(ctx, limit)
}

// JobChannels returns a job's channels grouped by category. Groups appear in
// the order their first channel was stored.
func (c *Coordinator) JobChannels(ctx context.Context, jobID int64) ([]CategoryGroup, error) {
	if _, err := c.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	channels, err := c.store.ListChannels(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return groupByCategory(channels), nil
}

func groupByCategory(channels []models.Channel) []CategoryGroup {
	groups := []CategoryGroup{}
	index := make(map[string]int)
	for _, ch := range channels {
		name := models.UncategorizedLabel
		if ch.Category != nil && *ch.Category != "" {
			name = *ch.Category
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, CategoryGroup{Category: name})
		}
		groups[i].Channels = append(groups[i].Channels, ch)
	}
	return groups
}

// RetestChannel re-probes one channel in the background. It fails with
// ErrBusy while the channel's job is still validating or the channel is
// already being retested.
func (c *Coordinator) RetestChannel(ctx context.Context, channelID int64) error {
	ch, err := c.store.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	jobUnlock, err := c.tryLock(ctx, jobLockKey(ch.JobID))
	if err != nil {
		return err
	}
	jobUnlock()

	unlock, err := c.tryLock(ctx, channelLockKey(channelID))
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		unlock()
		return ErrStopped
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer unlock()
		logger := c.logger.With(zap.Int64("channel_id", channelID), zap.Int64("job_id", ch.JobID))

		if !c.validator.ValidateOne(c.ctx, ch) {
			logger.Info("retest interrupted")
			return
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), 10*time.Second)
		defer cancel()
		n, err := c.store.RefreshValidCount(wctx, ch.JobID)
		if err != nil {
			logger.Error("refresh valid count", zap.Error(err))
			return
		}
		logger.Info("channel retested", zap.Bool("working", ch.Working()), zap.Int("valid_channels", n))
	}()
	return nil
}

func (c *Coordinator) tryLock(ctx context.Context, key string) (func(), error) {
	unlock, err := c.locker.TryLock(ctx, key, c.opts.RetestLockTTL)
	if errors.Is(err, cache.ErrLocked) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

// ExportWorkingChannels renders the job's working channels as an M3U
// playlist and records the export.
func (c *Coordinator) ExportWorkingChannels(ctx context.Context, jobID int64) (*models.PlaylistExport, error) {
	if _, err := c.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	channels, err := c.store.ListChannels(ctx, jobID)
	if err != nil {
		return nil, err
	}
	content, n := playlist.Render(channels)
	export := &models.PlaylistExport{
		JobID:         jobID,
		Filename:      fmt.Sprintf("playlist_%d_%s.m3u", jobID, c.now().Format("20060102_150405")),
		Content:       content,
		ChannelsCount: n,
		ExportType:    models.ExportTypeM3U,
	}
	id, err := c.store.CreateExport(ctx, export)
	if err != nil {
		return nil, fmt.Errorf("CreateExport: %w", err)
	}
	export.ID = id
	return export, nil
}

// DiscoverLinks lists the playlist links found on a web page.
func (c *Coordinator) DiscoverLinks(ctx context.Context, pageURL string) ([]string, error) {
	if !isHTTPURL(pageURL) {
		return nil, ErrInvalidURL
	}
	return c.fetcher.DiscoverLinks(ctx, pageURL)
}

func countWorking(channels []models.Channel) int {
	n := 0
	for _, ch := range channels {
		if ch.Working() {
			n++
		}
	}
	return n
}
