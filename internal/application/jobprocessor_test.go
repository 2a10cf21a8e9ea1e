package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/streamcaster/internal/application"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

type processorFixture struct {
	jobs       *mockJobStore
	accounts   *mockAccountStore
	svc        *application.AccountService
	dispatcher *mockDispatcher
	announcer  *mockAnnouncer
	processor  *application.JobProcessor
}

func newProcessorFixture(t *testing.T, timeout time.Duration) *processorFixture {
	t.Helper()

	f := &processorFixture{
		jobs:       newMockJobStore(),
		accounts:   newMockAccountStore(),
		dispatcher: &mockDispatcher{platform: model.PlatformYouTube},
		announcer:  &mockAnnouncer{},
	}
	dispatchers := dispatcherMap{model.PlatformYouTube: f.dispatcher}
	f.svc = application.NewAccountService(f.accounts, fakeBox{}, dispatchers, time.Second)
	f.processor = application.NewJobProcessor(f.jobs, f.svc, dispatchers, f.announcer, timeout)
	return f
}

func (f *processorFixture) linkAccount(t *testing.T) int64 {
	t.Helper()
	acct, err := f.svc.Upsert(context.Background(), application.ConnectAccountInput{
		Platform:     model.PlatformYouTube,
		ExternalID:   "UC123",
		DisplayName:  "Main channel",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	})
	require.NoError(t, err)
	return acct.ID
}

func (f *processorFixture) addJob(t *testing.T, kind model.JobKind, title string, at time.Time, accountID *int64) int64 {
	t.Helper()
	job, err := f.jobs.Create(context.Background(), model.ScheduledJob{
		Kind:         kind,
		Title:        title,
		VideoPath:    "/videos/" + title + ".mp4",
		ScheduledFor: at,
		Platform:     model.PlatformYouTube,
		AccountID:    accountID,
	})
	require.NoError(t, err)
	return job.ID
}

func TestJobProcessor_PostsDueShortsInScheduledOrder(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	acct := f.linkAccount(t)
	now := time.Now()

	late := f.addJob(t, model.JobKindShort, "late", now.Add(-time.Minute), &acct)
	early := f.addJob(t, model.JobKindShort, "early", now.Add(-time.Hour), &acct)
	future := f.addJob(t, model.JobKindShort, "future", now.Add(time.Hour), &acct)

	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Equal(t, application.ClassShorts, report.Class)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "early", calls[0].Payload.Title)
	assert.Equal(t, "late", calls[1].Payload.Title)
	assert.Equal(t, driven.OpScheduleShort, calls[0].Op)
	assert.Equal(t, "access-1", calls[0].Account.AccessToken)
	assert.Equal(t, "UC123", calls[0].Account.ExternalID)

	for _, id := range []int64{early, late} {
		job := f.jobs.get(id)
		assert.Equal(t, model.JobStatusPosted, job.Status)
		assert.Equal(t, application.MsgShortPosted, job.ResultMessage)
		assert.Equal(t, "ext-"+job.Title, job.ExternalID)
	}
	assert.Equal(t, model.JobStatusPending, f.jobs.get(future).Status)

	assert.Equal(t, []string{"early", "late"}, f.announcer.Messages())
}

func TestJobProcessor_UploadsVODWithoutBroadcast(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	acct := f.linkAccount(t)
	id := f.addJob(t, model.JobKindVOD, "vod", time.Now().Add(-time.Second), &acct)

	report := f.processor.Tick(context.Background(), model.JobKindVOD)

	assert.Equal(t, application.ClassVODs, report.Class)
	assert.Equal(t, 1, report.Succeeded)

	job := f.jobs.get(id)
	assert.Equal(t, model.JobStatusPosted, job.Status)
	assert.Equal(t, application.MsgVODUploaded, job.ResultMessage)
	assert.Equal(t, "vod-vod", job.ExternalID)

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, driven.OpUploadVOD, calls[0].Op)
	assert.Empty(t, f.announcer.Messages())
}

func TestJobProcessor_KindsAreIndependent(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	acct := f.linkAccount(t)
	vod := f.addJob(t, model.JobKindVOD, "vod", time.Now().Add(-time.Second), &acct)

	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Zero(t, report.Due)
	assert.Empty(t, f.dispatcher.Calls())
	assert.Equal(t, model.JobStatusPending, f.jobs.get(vod).Status)
}

func TestJobProcessor_DispatcherMessageOverridesDefault(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	f.dispatcher.scheduleShort = func(_ context.Context, _ model.AuthorizedAccount, _ model.UploadPayload) (model.DispatchResult, error) {
		return model.DispatchResult{Status: "scheduled", ExternalID: "abc", Message: "Scheduled as private"}, nil
	}
	acct := f.linkAccount(t)
	id := f.addJob(t, model.JobKindShort, "clip", time.Now().Add(-time.Second), &acct)

	f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Equal(t, "Scheduled as private", f.jobs.get(id).ResultMessage)
}

func TestJobProcessor_MissingAccountFailsWithoutDispatch(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	id := f.addJob(t, model.JobKindShort, "orphan", time.Now().Add(-time.Second), int64Ptr(99))

	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Equal(t, 1, report.Failed)
	job := f.jobs.get(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, application.MsgAccountMissing, job.ResultMessage)
	assert.Empty(t, f.dispatcher.Calls())
	assert.Empty(t, f.announcer.Messages())
}

func TestJobProcessor_UnknownPlatformFails(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	job, err := f.jobs.Create(context.Background(), model.ScheduledJob{
		Kind:         model.JobKindShort,
		Title:        "kick clip",
		ScheduledFor: time.Now().Add(-time.Second),
		Platform:     model.PlatformKick,
	})
	require.NoError(t, err)

	f.processor.Tick(context.Background(), model.JobKindShort)

	got := f.jobs.get(job.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "No dispatcher for platform Kick", got.ResultMessage)
	assert.Empty(t, f.dispatcher.Calls())
}

func TestJobProcessor_JobWithoutAccountDispatchesWithBlankCredentials(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	id := f.addJob(t, model.JobKindShort, "anon", time.Now().Add(-time.Second), nil)

	f.processor.Tick(context.Background(), model.JobKindShort)

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.AuthorizedAccount{Platform: model.PlatformYouTube}, calls[0].Account)
	assert.Equal(t, model.JobStatusPosted, f.jobs.get(id).Status)
}

func TestJobProcessor_DisconnectedAccountIsStillDispatched(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	acct := f.linkAccount(t)
	require.NoError(t, f.svc.Disconnect(context.Background(), acct))
	id := f.addJob(t, model.JobKindShort, "after-disconnect", time.Now().Add(-time.Second), &acct)

	f.processor.Tick(context.Background(), model.JobKindShort)

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Account.AccessToken)
	assert.Equal(t, model.JobStatusPosted, f.jobs.get(id).Status)
}

func TestJobProcessor_DispatchErrorMarksFailed(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	f.dispatcher.scheduleShort = func(_ context.Context, _ model.AuthorizedAccount, _ model.UploadPayload) (model.DispatchResult, error) {
		return model.DispatchResult{}, driven.NewDispatchError(model.PlatformYouTube, driven.OpScheduleShort, driven.ErrCredentialRejected)
	}
	acct := f.linkAccount(t)
	id := f.addJob(t, model.JobKindShort, "rejected", time.Now().Add(-time.Second), &acct)

	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Equal(t, 1, report.Failed)
	job := f.jobs.get(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.ResultMessage, driven.ErrCredentialRejected.Error())
	assert.Empty(t, f.announcer.Messages())
}

func TestJobProcessor_FailureDoesNotStopTick(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	f.dispatcher.scheduleShort = func(_ context.Context, _ model.AuthorizedAccount, p model.UploadPayload) (model.DispatchResult, error) {
		if p.Title == "bad" {
			return model.DispatchResult{}, errors.New("boom")
		}
		return model.DispatchResult{ExternalID: "ok"}, nil
	}
	acct := f.linkAccount(t)
	now := time.Now()
	bad := f.addJob(t, model.JobKindShort, "bad", now.Add(-2*time.Minute), &acct)
	good := f.addJob(t, model.JobKindShort, "good", now.Add(-time.Minute), &acct)

	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, model.JobStatusFailed, f.jobs.get(bad).Status)
	assert.Equal(t, model.JobStatusPosted, f.jobs.get(good).Status)
}

func TestJobProcessor_DispatcherPanicMarksFailed(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	f.dispatcher.scheduleShort = func(_ context.Context, _ model.AuthorizedAccount, _ model.UploadPayload) (model.DispatchResult, error) {
		panic("adapter bug")
	}
	acct := f.linkAccount(t)
	id := f.addJob(t, model.JobKindShort, "panics", time.Now().Add(-time.Second), &acct)

	require.NotPanics(t, func() {
		f.processor.Tick(context.Background(), model.JobKindShort)
	})

	job := f.jobs.get(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.ResultMessage, "adapter bug")
}

func TestJobProcessor_DispatchTimeoutMarksFailed(t *testing.T) {
	f := newProcessorFixture(t, 20*time.Millisecond)
	f.dispatcher.scheduleShort = func(ctx context.Context, _ model.AuthorizedAccount, _ model.UploadPayload) (model.DispatchResult, error) {
		<-ctx.Done()
		return model.DispatchResult{}, ctx.Err()
	}
	acct := f.linkAccount(t)
	id := f.addJob(t, model.JobKindShort, "slow", time.Now().Add(-time.Second), &acct)

	f.processor.Tick(context.Background(), model.JobKindShort)

	job := f.jobs.get(id)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.ResultMessage, context.DeadlineExceeded.Error())
}

func TestJobProcessor_TerminalJobsAreNotRedispatched(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	acct := f.linkAccount(t)
	f.addJob(t, model.JobKindShort, "once", time.Now().Add(-time.Second), &acct)

	f.processor.Tick(context.Background(), model.JobKindShort)
	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Zero(t, report.Due)
	assert.Len(t, f.dispatcher.Calls(), 1)
}

func TestJobProcessor_AccountLookupErrorLeavesJobPending(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	acct := f.linkAccount(t)
	id := f.addJob(t, model.JobKindShort, "retry-later", time.Now().Add(-time.Second), &acct)
	f.accounts.getErr = errors.New("database is locked")

	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, model.JobStatusPending, f.jobs.get(id).Status)
	assert.Empty(t, f.dispatcher.Calls())
}

func TestJobProcessor_OverlappingTicksDispatchOnce(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.dispatcher.scheduleShort = func(_ context.Context, _ model.AuthorizedAccount, _ model.UploadPayload) (model.DispatchResult, error) {
		close(entered)
		<-release
		return model.DispatchResult{ExternalID: "x"}, nil
	}
	acct := f.linkAccount(t)
	id := f.addJob(t, model.JobKindShort, "slow upload", time.Now().Add(-time.Second), &acct)

	done := make(chan application.TickReport)
	go func() { done <- f.processor.Tick(context.Background(), model.JobKindShort) }()

	<-entered
	second := f.processor.Tick(context.Background(), model.JobKindShort)
	assert.Zero(t, second.Succeeded)
	assert.Equal(t, model.JobStatusUploading, f.jobs.get(id).Status)

	close(release)
	first := <-done

	assert.Equal(t, 1, first.Succeeded)
	assert.Len(t, f.dispatcher.Calls(), 1)
	assert.Equal(t, model.JobStatusPosted, f.jobs.get(id).Status)
}

func TestJobProcessor_ConcurrentTicksClaimEachJobOnce(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	acct := f.linkAccount(t)
	now := time.Now()
	for i := range 20 {
		f.addJob(t, model.JobKindShort, string(rune('a'+i)), now.Add(-time.Duration(i+1)*time.Second), &acct)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.processor.Tick(context.Background(), model.JobKindShort)
		}()
	}
	wg.Wait()

	perJob := make(map[string]int)
	for _, c := range f.dispatcher.Calls() {
		perJob[c.Payload.Title]++
	}
	assert.Len(t, perJob, 20)
	for title, n := range perJob {
		assert.Equal(t, 1, n, "job %s dispatched %d times", title, n)
	}
	assert.Len(t, f.announcer.Messages(), 20)
}

func TestJobProcessor_ListErrorReturnsEmptyReport(t *testing.T) {
	f := newProcessorFixture(t, time.Second)
	f.jobs.listErr = errors.New("disk I/O error")

	report := f.processor.Tick(context.Background(), model.JobKindShort)

	assert.Zero(t, report.Due)
	assert.Empty(t, f.dispatcher.Calls())
}
