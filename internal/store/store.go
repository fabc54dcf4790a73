package store

import (
	"context"
	"errors"
	"time"

	"github.com/tarlanaraujo/TarlanTV/internal/models"
)

var (
	// ErrNotFound is returned when a job or channel does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the job's current status (e.g. leaving a terminal status).
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store defines persistence for jobs, their channels, and playlist exports.
// Every method is an independent unit of work and safe for concurrent use.
type Store interface {
	// CreateJob inserts a pending job for sourceURL.
	CreateJob(ctx context.Context, sourceURL string) (*models.Job, error)
	// GetJob returns a job by id.
	GetJob(ctx context.Context, jobID int64) (*models.Job, error)
	// ListJobs returns the most recent jobs first.
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)

	// StartJob moves a pending job to processing.
	StartJob(ctx context.Context, jobID int64) error
	// FailJob moves a non-terminal job to failed with title as the reason.
	FailJob(ctx context.Context, jobID int64, title string) error
	// CompleteJob stores the parsed channels, title and channel count and moves
	// a processing job to completed, atomically. It returns the channels with
	// their ids set, in input order.
	CompleteJob(ctx context.Context, jobID int64, title string, channels []models.Channel) ([]models.Channel, error)
	// FailStaleJobs fails pending or processing jobs not updated since before.
	// It returns how many jobs were failed.
	FailStaleJobs(ctx context.Context, before time.Time, title string) (int64, error)
	// RefreshValidCount recounts working channels of the job and stores the
	// result. Allowed in any status.
	RefreshValidCount(ctx context.Context, jobID int64) (int, error)

	// ListChannels returns a job's channels in playlist order.
	ListChannels(ctx context.Context, jobID int64) ([]models.Channel, error)
	// GetChannel returns a single channel by id.
	GetChannel(ctx context.Context, channelID int64) (*models.Channel, error)
	// UpdateChannelStatus sets is_working and last_checked_at together.
	UpdateChannelStatus(ctx context.Context, channelID int64, working bool, checkedAt time.Time) error

	// CreateExport records a generated playlist; returns its id.
	CreateExport(ctx context.Context, e *models.PlaylistExport) (int64, error)
}
