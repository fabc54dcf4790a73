package models

import "time"

// Channel represents a single stream entry from an M3U playlist.
// IsWorking is nil until the channel has been probed at least once.
type Channel struct {
	ID            int64      `json:"id,omitempty"`
	JobID         int64      `json:"job_id,omitempty"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Category      *string    `json:"category,omitempty"`
	Logo          *string    `json:"logo,omitempty"`
	IsWorking     *bool      `json:"is_working"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// MarkChecked records a probe outcome. Both fields are always written together.
func (c *Channel) MarkChecked(working bool, at time.Time) {
	c.IsWorking = &working
	c.LastCheckedAt = &at
}

// Working reports whether the last probe succeeded.
func (c *Channel) Working() bool {
	return c.IsWorking != nil && *c.IsWorking
}
