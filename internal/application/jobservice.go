package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// ScheduleJobInput is a request to schedule a short or VOD upload.
type ScheduleJobInput struct {
	Title        string
	Description  string
	Tags         []string
	VideoPath    string
	ScheduledFor time.Time
	Platform     string
	AccountID    *int64
}

// JobService creates and lists scheduled jobs. Processing is owned by
// JobProcessor.
type JobService struct {
	store driven.JobStore
}

// NewJobService creates a JobService.
func NewJobService(store driven.JobStore) *JobService {
	return &JobService{store: store}
}

// Schedule validates in and stores a pending job of kind. The account is not
// checked here; a missing account fails the job when it comes due.
func (s *JobService) Schedule(ctx context.Context, kind model.JobKind, in ScheduleJobInput) (model.ScheduledJob, error) {
	if kind != model.JobKindShort && kind != model.JobKindVOD {
		return model.ScheduledJob{}, fmt.Errorf("%w: unknown job kind %q", ErrInvalidInput, kind)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.ScheduledJob{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	platform, err := model.ParsePlatform(in.Platform)
	if err != nil {
		return model.ScheduledJob{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.ScheduledFor.IsZero() {
		return model.ScheduledJob{}, fmt.Errorf("%w: scheduled time is required", ErrInvalidInput)
	}

	tags := make([]string, 0, len(in.Tags))
	seen := make(map[string]bool, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}

	job, err := s.store.Create(ctx, model.ScheduledJob{
		Kind:         kind,
		Title:        title,
		Description:  in.Description,
		Tags:         tags,
		VideoPath:    strings.TrimSpace(in.VideoPath),
		ScheduledFor: in.ScheduledFor.UTC(),
		Platform:     platform,
		AccountID:    in.AccountID,
	})
	if err != nil {
		return model.ScheduledJob{}, err
	}

	slog.Info("job scheduled", "job_id", job.ID, "kind", kind, "platform", platform, "scheduled_for", job.ScheduledFor)
	return job, nil
}

// List returns every job of kind ordered by scheduled time.
func (s *JobService) List(ctx context.Context, kind model.JobKind) ([]model.ScheduledJob, error) {
	return s.store.ListByKind(ctx, kind)
}
