package models

import "time"

// Job is one user-initiated playlist discovery request.
type Job struct {
	ID                 int64     `json:"id,omitempty"`
	SourceURL          string    `json:"source_url"`
	Status             JobStatus `json:"status"`
	Title              *string   `json:"title,omitempty"`
	ChannelsFound      int       `json:"channels_found"`
	ValidChannelsCount int       `json:"valid_channels"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
