package models

// JobStatus is the lifecycle state of a Job.
type JobStatus string

// Job status values. Completed and failed are terminal.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ExportTypeM3U is the only export format.
const ExportTypeM3U = "m3u"

// UncategorizedLabel is shown for channels without a group-title.
const UncategorizedLabel = "Uncategorized"
