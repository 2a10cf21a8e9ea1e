package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Result messages written to jobs that fail before or succeed without a
// dispatcher-provided message.
const (
	MsgAccountMissing  = "Account missing"
	MsgShortPosted     = "Posted successfully"
	MsgVODUploaded     = "Uploaded successfully"
	msgNoDispatcherFmt = "No dispatcher for platform %s"
)

// TickReport summarizes one tick of a job class or of the token refresh loop.
type TickReport struct {
	Class     JobClass      `json:"class"`
	Due       int           `json:"due"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// accountResolver is the slice of AccountService the processor needs.
type accountResolver interface {
	FindByID(ctx context.Context, id int64) (*model.Account, error)
	Authorize(a model.Account) (model.AuthorizedAccount, error)
}

// announcer is the go-live fan-out triggered after a short is posted.
type announcer interface {
	Broadcast(ctx context.Context, message string) BroadcastReport
}

// JobProcessor runs due jobs through pending -> uploading -> posted|failed.
// Claiming a job is a conditional store transition, so a job is dispatched
// at most once even if two ticks overlap.
type JobProcessor struct {
	jobs            driven.JobStore
	accounts        accountResolver
	dispatchers     driven.DispatcherLookup
	announcer       announcer
	dispatchTimeout time.Duration
	now             func() time.Time
}

// NewJobProcessor creates a JobProcessor. announcer may be nil to disable
// go-live fan-out.
func NewJobProcessor(
	jobs driven.JobStore,
	accounts accountResolver,
	dispatchers driven.DispatcherLookup,
	announcer announcer,
	dispatchTimeout time.Duration,
) *JobProcessor {
	return &JobProcessor{
		jobs:            jobs,
		accounts:        accounts,
		dispatchers:     dispatchers,
		announcer:       announcer,
		dispatchTimeout: dispatchTimeout,
		now:             time.Now,
	}
}

// Tick processes every due job of kind sequentially in ascending scheduled
// time. A failing job never stops the rest of the tick.
func (p *JobProcessor) Tick(ctx context.Context, kind model.JobKind) TickReport {
	start := time.Now()
	report := TickReport{Class: classForKind(kind)}

	due, err := p.jobs.ListDue(ctx, kind, p.now())
	if err != nil {
		slog.Error("list due jobs failed", "kind", kind, "error", err)
		return report
	}
	report.Due = len(due)

	for _, job := range due {
		if ctx.Err() != nil {
			break
		}
		switch p.process(ctx, job) {
		case outcomeSucceeded:
			report.Succeeded++
		case outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	report.Duration = time.Since(start)
	if report.Due > 0 {
		slog.Info("job tick complete",
			"kind", kind,
			"due", report.Due,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"duration", report.Duration,
		)
	}
	return report
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
)

func (p *JobProcessor) process(ctx context.Context, job model.ScheduledJob) outcome {
	authorized := model.AuthorizedAccount{Platform: job.Platform}

	if job.AccountID != nil {
		acct, err := p.accounts.FindByID(ctx, *job.AccountID)
		if err != nil {
			slog.Error("resolve job account failed", "job_id", job.ID, "account_id", *job.AccountID, "error", err)
			return outcomeSkipped
		}
		if acct == nil {
			return p.failEarly(ctx, job, MsgAccountMissing)
		}

		authorized, err = p.accounts.Authorize(*acct)
		if err != nil {
			return p.failEarly(ctx, job, fmt.Sprintf("Account credentials unreadable: %v", err))
		}
	}

	dispatcher, ok := p.dispatchers.Get(job.Platform)
	if !ok {
		return p.failEarly(ctx, job, fmt.Sprintf(msgNoDispatcherFmt, job.Platform))
	}

	if err := p.jobs.Transition(ctx, job.ID, model.JobStatusPending, model.JobStatusUploading, model.JobResult{}); err != nil {
		if errors.Is(err, driven.ErrInvalidTransition) {
			slog.Debug("job already claimed", "job_id", job.ID)
		} else {
			slog.Error("claim job failed", "job_id", job.ID, "error", err)
		}
		return outcomeSkipped
	}

	result, err := p.dispatch(ctx, dispatcher, authorized, job)
	if err != nil {
		slog.Error("job dispatch failed",
			"job_id", job.ID,
			"kind", job.Kind,
			"platform", job.Platform,
			"error", err,
		)
		p.finish(ctx, job, model.JobStatusFailed, model.JobResult{ResultMessage: err.Error()})
		return outcomeFailed
	}

	msg := result.Message
	if msg == "" {
		msg = successMessage(job.Kind)
	}
	if !p.finish(ctx, job, model.JobStatusPosted, model.JobResult{ExternalID: result.ExternalID, ResultMessage: msg}) {
		return outcomeSkipped
	}

	slog.Info("job posted", "job_id", job.ID, "kind", job.Kind, "platform", job.Platform, "external_id", result.ExternalID)

	if job.Kind == model.JobKindShort && p.announcer != nil {
		p.announcer.Broadcast(ctx, job.Title)
	}
	return outcomeSucceeded
}

// dispatch calls the operation for the job's kind under the dispatch
// timeout. A dispatcher panic is returned as an error.
func (p *JobProcessor) dispatch(
	ctx context.Context,
	d driven.PlatformDispatcher,
	account model.AuthorizedAccount,
	job model.ScheduledJob,
) (result model.DispatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
	defer cancel()

	switch job.Kind {
	case model.JobKindShort:
		return d.ScheduleShort(callCtx, account, job.Payload())
	case model.JobKindVOD:
		return d.UploadVOD(callCtx, account, job.Payload())
	default:
		return model.DispatchResult{}, fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// failEarly moves a job that cannot be dispatched straight to failed.
func (p *JobProcessor) failEarly(ctx context.Context, job model.ScheduledJob, msg string) outcome {
	err := p.jobs.Transition(ctx, job.ID, model.JobStatusPending, model.JobStatusFailed, model.JobResult{ResultMessage: msg})
	if err != nil {
		slog.Error("fail job", "job_id", job.ID, "error", err)
		return outcomeSkipped
	}
	slog.Warn("job failed before dispatch", "job_id", job.ID, "kind", job.Kind, "reason", msg)
	return outcomeFailed
}

// finish records the terminal state of a claimed job.
func (p *JobProcessor) finish(ctx context.Context, job model.ScheduledJob, to model.JobStatus, result model.JobResult) bool {
	// The dispatch context may have expired; the write must still land.
	writeCtx := context.WithoutCancel(ctx)
	if err := p.jobs.Transition(writeCtx, job.ID, model.JobStatusUploading, to, result); err != nil {
		slog.Error("record job result failed", "job_id", job.ID, "status", to, "error", err)
		return false
	}
	return true
}

func successMessage(kind model.JobKind) string {
	if kind == model.JobKindVOD {
		return MsgVODUploaded
	}
	return MsgShortPosted
}
