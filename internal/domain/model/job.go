package model

import "time"

// ScheduledJob is a short-form schedule or a VOD upload. Both share one shape;
// Kind selects the dispatcher operation.
type ScheduledJob struct {
	ID            int64
	Kind          JobKind
	Title         string
	Description   string
	Tags          []string
	VideoPath     string
	ScheduledFor  time.Time
	Platform      Platform
	AccountID     *int64
	Status        JobStatus
	ExternalID    string
	ResultMessage string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsDue reports whether the job is pending and its scheduled time has passed.
func (j ScheduledJob) IsDue(now time.Time) bool {
	return j.Status == JobStatusPending && !j.ScheduledFor.After(now)
}

// Payload builds the dispatcher payload for this job.
func (j ScheduledJob) Payload() UploadPayload {
	return UploadPayload{
		Title:        j.Title,
		Description:  j.Description,
		Tags:         j.Tags,
		VideoPath:    j.VideoPath,
		ScheduledFor: j.ScheduledFor,
	}
}

// JobResult carries the optional fields written alongside a status change.
type JobResult struct {
	ExternalID    string
	ResultMessage string
}
