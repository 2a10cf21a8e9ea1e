package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

const jobColumns = `id, kind, title, description, tags, video_path, scheduled_for, platform,
	account_id, status, external_id, result_message, created_at, updated_at`

// JobRepo is the SQLite implementation of the JobStore port interface. Shorts
// and VODs share the scheduled_jobs table, split by kind.
type JobRepo struct {
	db  *DB
	now func() time.Time
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db, now: time.Now}
}

// Create inserts a job in pending status and returns the stored row.
func (r *JobRepo) Create(ctx context.Context, job model.ScheduledJob) (model.ScheduledJob, error) {
	tags, err := encodeStrings(job.Tags)
	if err != nil {
		return model.ScheduledJob{}, err
	}

	now := formatTime(r.now())
	query := `
		INSERT INTO scheduled_jobs (kind, title, description, tags, video_path, scheduled_for,
			platform, account_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + jobColumns

	row := r.db.Writer.QueryRowContext(ctx, query,
		string(job.Kind),
		job.Title,
		job.Description,
		tags,
		job.VideoPath,
		formatTime(job.ScheduledFor),
		string(job.Platform),
		nullInt64(job.AccountID),
		string(model.JobStatusPending),
		now,
		now,
	)

	stored, err := scanJob(row)
	if err != nil {
		return model.ScheduledJob{}, fmt.Errorf("create %s job: %w", job.Kind, err)
	}
	return *stored, nil
}

// GetByID returns the job with the given id. Returns nil, nil if not found.
func (r *JobRepo) GetByID(ctx context.Context, id int64) (*model.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = ?`

	job, err := scanJob(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// ListByKind returns all jobs of a kind ordered by scheduled time.
func (r *JobRepo) ListByKind(ctx context.Context, kind model.JobKind) ([]model.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs
		WHERE kind = ? ORDER BY scheduled_for ASC, id ASC`
	return r.list(ctx, query, string(kind))
}

// ListDue returns pending jobs of kind whose scheduled time is at or before now.
func (r *JobRepo) ListDue(ctx context.Context, kind model.JobKind, now time.Time) ([]model.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs
		WHERE kind = ? AND status = ? AND scheduled_for <= ?
		ORDER BY scheduled_for ASC, id ASC`
	return r.list(ctx, query, string(kind), string(model.JobStatusPending), formatTime(now))
}

// Transition moves a job from one status to another with a conditional
// update. When zero rows match, the job is either missing (ErrJobNotFound)
// or no longer in from (ErrInvalidTransition).
func (r *JobRepo) Transition(ctx context.Context, id int64, from, to model.JobStatus, result model.JobResult) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("job %d %s -> %s: %w", id, from, to, driven.ErrInvalidTransition)
	}

	const query = `
		UPDATE scheduled_jobs
		SET status = ?,
			external_id = COALESCE(?, external_id),
			result_message = COALESCE(?, result_message),
			updated_at = ?
		WHERE id = ? AND status = ?`

	res, err := r.db.Writer.ExecContext(ctx, query,
		string(to),
		nullString(result.ExternalID),
		nullString(result.ResultMessage),
		formatTime(r.now()),
		id,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("transition job %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("job %d: %w", id, driven.ErrJobNotFound)
	}
	return fmt.Errorf("job %d is %s, not %s: %w", id, existing.Status, from, driven.ErrInvalidTransition)
}

func (r *JobRepo) list(ctx context.Context, query string, args ...any) ([]model.ScheduledJob, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

func scanJob(s scanner) (*model.ScheduledJob, error) {
	var job model.ScheduledJob
	var kind, tags, scheduledFor, platform, status, createdAt, updatedAt string
	var accountID sql.NullInt64
	var externalID, resultMessage sql.NullString

	err := s.Scan(
		&job.ID, &kind, &job.Title, &job.Description, &tags, &job.VideoPath,
		&scheduledFor, &platform, &accountID, &status, &externalID, &resultMessage,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = model.JobKind(kind)
	job.Platform = model.Platform(platform)
	job.Status = model.JobStatus(status)
	job.AccountID = int64Ptr(accountID)
	job.ExternalID = externalID.String
	job.ResultMessage = resultMessage.String

	if job.Tags, err = decodeStrings(tags); err != nil {
		return nil, err
	}
	if job.ScheduledFor, err = parseTime(scheduledFor); err != nil {
		return nil, fmt.Errorf("parse scheduled_for: %w", err)
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &job, nil
}
