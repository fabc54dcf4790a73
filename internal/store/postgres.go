package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarlanaraujo/TarlanTV/internal/models"
)

// Postgres implements Store using PostgreSQL. Each call acquires its own
// pooled connection; multi-statement writes run in explicit transactions.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

const jobColumns = `id, source_url, status, title, channels_found, valid_channels, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var status string
	if err := row.Scan(&j.ID, &j.SourceURL, &status, &j.Title, &j.ChannelsFound, &j.ValidChannelsCount, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	return &j, nil
}

// CreateJob inserts a pending job.
func (p *Postgres) CreateJob(ctx context.Context, sourceURL string) (*models.Job, error) {
	j, err := scanJob(p.pool.QueryRow(ctx,
		`INSERT INTO jobs (source_url, status) VALUES ($1, $2) RETURNING `+jobColumns,
		sourceURL, string(models.JobPending),
	))
	if err != nil {
		return nil, fmt.Errorf("CreateJob: %w", err)
	}
	return j, nil
}

// GetJob returns a job by id.
func (p *Postgres) GetJob(ctx context.Context, jobID int64) (*models.Job, error) {
	j, err := scanJob(p.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetJob: %w", err)
	}
	return j, nil
}

// ListJobs returns up to limit jobs, newest first.
func (p *Postgres) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListJobs: %w", err)
	}
	defer rows.Close()
	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ListJobs scan: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// StartJob moves a pending job to processing.
func (p *Postgres) StartJob(ctx context.Context, jobID int64) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE jobs SET status = 'processing', updated_at = NOW() WHERE id = $1 AND status = 'pending'`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("StartJob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return p.transitionError(ctx, jobID)
	}
	return nil
}

// FailJob moves a non-terminal job to failed.
func (p *Postgres) FailJob(ctx context.Context, jobID int64, title string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', title = $2, updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'processing')`,
		jobID, title,
	)
	if err != nil {
		return fmt.Errorf("FailJob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return p.transitionError(ctx, jobID)
	}
	return nil
}

// FailStaleJobs fails unfinished jobs left behind by a stopped process.
func (p *Postgres) FailStaleJobs(ctx context.Context, before time.Time, title string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', title = $2, updated_at = NOW()
		 WHERE status IN ('pending', 'processing') AND updated_at < $1`,
		before, title,
	)
	if err != nil {
		return 0, fmt.Errorf("FailStaleJobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CompleteJob inserts channels and completes the job in one transaction.
func (p *Postgres) CompleteJob(ctx context.Context, jobID int64, title string, channels []models.Channel) ([]models.Channel, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("CompleteJob begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET status = 'completed', title = $2, channels_found = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`,
		jobID, title, len(channels),
	)
	if err != nil {
		return nil, fmt.Errorf("CompleteJob update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, p.transitionError(ctx, jobID)
	}

	out := make([]models.Channel, len(channels))
	copy(out, channels)
	if len(out) > 0 {
		batch := &pgx.Batch{}
		for i := range out {
			batch.Queue(
				`INSERT INTO channels (job_id, position, name, url, category, logo)
				 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				jobID, i, out[i].Name, out[i].URL, out[i].Category, out[i].Logo,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range out {
			if err := br.QueryRow().Scan(&out[i].ID); err != nil {
				br.Close()
				return nil, fmt.Errorf("CompleteJob insert channel %d: %w", i, err)
			}
			out[i].JobID = jobID
		}
		if err := br.Close(); err != nil {
			return nil, fmt.Errorf("CompleteJob batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("CompleteJob commit: %w", err)
	}
	return out, nil
}

// RefreshValidCount recounts working channels from their stored state.
func (p *Postgres) RefreshValidCount(ctx context.Context, jobID int64) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`UPDATE jobs SET valid_channels = (
		     SELECT COUNT(*) FROM channels WHERE job_id = $1 AND is_working
		 ), updated_at = NOW()
		 WHERE id = $1
		 RETURNING valid_channels`,
		jobID,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("RefreshValidCount: %w", err)
	}
	return n, nil
}

const channelColumns = `id, job_id, name, url, category, logo, is_working, last_checked_at`

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var c models.Channel
	if err := row.Scan(&c.ID, &c.JobID, &c.Name, &c.URL, &c.Category, &c.Logo, &c.IsWorking, &c.LastCheckedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChannels returns a job's channels in playlist order.
func (p *Postgres) ListChannels(ctx context.Context, jobID int64) ([]models.Channel, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE job_id = $1 ORDER BY position, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()
	var out []models.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("ListChannels scan: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetChannel returns a single channel by id.
func (p *Postgres) GetChannel(ctx context.Context, channelID int64) (*models.Channel, error) {
	c, err := scanChannel(p.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, channelID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannel: %w", err)
	}
	return c, nil
}

// UpdateChannelStatus writes a probe outcome in a single statement.
func (p *Postgres) UpdateChannelStatus(ctx context.Context, channelID int64, working bool, checkedAt time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE channels SET is_working = $2, last_checked_at = $3 WHERE id = $1`,
		channelID, working, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("UpdateChannelStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateExport records a generated playlist.
func (p *Postgres) CreateExport(ctx context.Context, e *models.PlaylistExport) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO playlist_exports (job_id, filename, content, channels_count, export_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.JobID, e.Filename, e.Content, e.ChannelsCount, e.ExportType,
	).Scan(&id, &e.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("CreateExport: %w", err)
	}
	e.ID = id
	return id, nil
}

// transitionError explains a status update that matched no row.
func (p *Postgres) transitionError(ctx context.Context, jobID int64) error {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return fmt.Errorf("check job %d: %w", jobID, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}
