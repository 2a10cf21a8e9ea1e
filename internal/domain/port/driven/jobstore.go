package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// Sentinel errors returned by JobStore implementations.
var (
	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition indicates the job was not in the expected state,
	// either because the move is illegal or because another tick already
	// claimed it.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobStore defines the driven port for scheduled job persistence.
type JobStore interface {
	// Create inserts a new job in pending status and returns the stored row.
	Create(ctx context.Context, job model.ScheduledJob) (model.ScheduledJob, error)

	// GetByID returns nil, nil if the job does not exist.
	GetByID(ctx context.Context, id int64) (*model.ScheduledJob, error)

	// ListByKind returns all jobs of a kind ordered by scheduled time.
	ListByKind(ctx context.Context, kind model.JobKind) ([]model.ScheduledJob, error)

	// ListDue returns pending jobs of kind whose scheduled time is at or
	// before now, in ascending scheduled time (ties broken by id).
	ListDue(ctx context.Context, kind model.JobKind, now time.Time) ([]model.ScheduledJob, error)

	// Transition atomically moves a job from one status to another. It
	// returns ErrInvalidTransition if the job is not currently in from or
	// the move is not allowed.
	Transition(ctx context.Context, id int64, from, to model.JobStatus, result model.JobResult) error
}
