package constants

// JobStatus is the canonical status for rows in retraining_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending   JobStatus = "pending"   // created, pipeline not started yet
	JobStatusRunning   JobStatus = "running"   // mining/templating in progress
	JobStatusCompleted JobStatus = "completed" // terminal success, new version persisted
	JobStatusFailed    JobStatus = "failed"    // terminal failure, error recorded on the job
)

// Terminal reports whether s is a terminal job status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
