package models

import "time"

// PlaylistExport is a generated playlist file kept for history.
type PlaylistExport struct {
	ID            int64     `json:"id,omitempty"`
	JobID         int64     `json:"job_id"`
	Filename      string    `json:"filename"`
	Content       string    `json:"-"`
	ChannelsCount int       `json:"channels_count"`
	ExportType    string    `json:"export_type"`
	CreatedAt     time.Time `json:"created_at"`
}
