package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tarlanaraujo/TarlanTV/internal/cache"
	"github.com/tarlanaraujo/TarlanTV/internal/models"
)

// newTestPostgres connects to TEST_DATABASE_URL and applies migrations. Tests
// that need it are skipped when the variable is unset.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, RunMigrations(dsn, "file://../../migrations"))
	pg, err := NewPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	return pg
}

func strPtr(s string) *string { return &s }

func TestPostgresJobLifecycle(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	job, err := pg.CreateJob(ctx, "http://h/x.m3u")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)

	assert.ErrorIs(t, func() error {
		_, err := pg.CompleteJob(ctx, job.ID, "t", nil)
		return err
	}(), ErrInvalidTransition)

	require.NoError(t, pg.StartJob(ctx, job.ID))
	assert.ErrorIs(t, pg.StartJob(ctx, job.ID), ErrInvalidTransition)

	stored, err := pg.CompleteJob(ctx, job.ID, "Sports", []models.Channel{
		{Name: "A", URL: "http://s/a", Category: strPtr("News")},
		{Name: "B", URL: "http://s/b"},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.NotZero(t, stored[0].ID)
	assert.Equal(t, job.ID, stored[1].JobID)

	got, err := pg.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, 2, got.ChannelsFound)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Sports", *got.Title)

	assert.ErrorIs(t, pg.FailJob(ctx, job.ID, "x"), ErrInvalidTransition)
	assert.ErrorIs(t, pg.StartJob(ctx, -1), ErrNotFound)
}

func TestPostgresChannelStatusAndCount(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	job, err := pg.CreateJob(ctx, "http://h/y.m3u")
	require.NoError(t, err)
	require.NoError(t, pg.StartJob(ctx, job.ID))
	channels := make([]models.Channel, 20)
	for i := range channels {
		channels[i] = models.Channel{Name: "c", URL: "http://s/c"}
	}
	stored, err := pg.CompleteJob(ctx, job.ID, "t", channels)
	require.NoError(t, err)

	// Concurrent single-row writes, one per channel.
	var wg sync.WaitGroup
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i, ch := range stored {
		wg.Add(1)
		go func(id int64, working bool) {
			defer wg.Done()
			assert.NoError(t, pg.UpdateChannelStatus(ctx, id, working, now))
		}(ch.ID, i%4 == 0)
	}
	wg.Wait()

	n, err := pg.RefreshValidCount(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	list, err := pg.ListChannels(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, list, 20)
	for i, ch := range list {
		assert.Equal(t, stored[i].ID, ch.ID)
		require.NotNil(t, ch.LastCheckedAt)
	}

	assert.ErrorIs(t, pg.UpdateChannelStatus(ctx, -1, true, now), ErrNotFound)
	_, err = pg.GetChannel(ctx, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresExportAndStaleJobs(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	job, err := pg.CreateJob(ctx, "http://h/z.m3u")
	require.NoError(t, err)

	e := &models.PlaylistExport{JobID: job.ID, Filename: "p.m3u", Content: "#EXTM3U\n", ExportType: models.ExportTypeM3U}
	id, err := pg.CreateExport(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, id, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	n, err := pg.FailStaleJobs(ctx, time.Now().Add(time.Hour), "interrupted")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	got, err := pg.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	pg := newTestPostgres(t)
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	rds, err := cache.New(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rds.Close() })
	ctx := context.Background()
	require.NoError(t, rds.Ping(ctx))

	cs := NewCachedStore(pg, rds, zap.NewNop())
	job, err := cs.CreateJob(ctx, "http://h/c.m3u")
	require.NoError(t, err)

	first, err := cs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, first.Status)

	require.NoError(t, cs.StartJob(ctx, job.ID))
	second, err := cs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobProcessing, second.Status)
}
