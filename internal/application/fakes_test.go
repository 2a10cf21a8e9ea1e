package application_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/application"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// --- SecretBox ---

// fakeBox "seals" by prefixing. Envelopes without the prefix fail to open.
type fakeBox struct{}

var errFakeIntegrity = errors.New("fake integrity failure")

func (fakeBox) Seal(plaintext string) (string, error) { return "sealed:" + plaintext, nil }

func (fakeBox) Open(envelope string) (string, error) {
	s, ok := strings.CutPrefix(envelope, "sealed:")
	if !ok {
		return "", errFakeIntegrity
	}
	return s, nil
}

func (b fakeBox) Preview(envelope string) string {
	s, err := b.Open(envelope)
	if err != nil {
		return "invalid-secret"
	}
	if s == "" {
		return ""
	}
	return "preview:" + s[len(s)-1:]
}

// --- JobStore ---

type mockJobStore struct {
	mu      sync.Mutex
	jobs    map[int64]*model.ScheduledJob
	nextID  int64
	listErr error
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[int64]*model.ScheduledJob)}
}

func (m *mockJobStore) Create(_ context.Context, job model.ScheduledJob) (model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	job.ID = m.nextID
	job.Status = model.JobStatusPending
	m.jobs[job.ID] = &job
	return job, nil
}

func (m *mockJobStore) GetByID(_ context.Context, id int64) (*model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *mockJobStore) ListByKind(_ context.Context, kind model.JobKind) ([]model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ScheduledJob
	for _, j := range m.jobs {
		if j.Kind == kind {
			out = append(out, *j)
		}
	}
	sortJobs(out)
	return out, nil
}

func (m *mockJobStore) ListDue(_ context.Context, kind model.JobKind, now time.Time) ([]model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.ScheduledJob
	for _, j := range m.jobs {
		if j.Kind == kind && j.IsDue(now) {
			out = append(out, *j)
		}
	}
	sortJobs(out)
	return out, nil
}

func (m *mockJobStore) Transition(_ context.Context, id int64, from, to model.JobStatus, result model.JobResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return driven.ErrJobNotFound
	}
	if j.Status != from || !from.CanTransitionTo(to) {
		return driven.ErrInvalidTransition
	}
	j.Status = to
	if result.ExternalID != "" {
		j.ExternalID = result.ExternalID
	}
	if result.ResultMessage != "" {
		j.ResultMessage = result.ResultMessage
	}
	return nil
}

func (m *mockJobStore) get(id int64) model.ScheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func sortJobs(jobs []model.ScheduledJob) {
	slices.SortFunc(jobs, func(a, b model.ScheduledJob) int {
		if c := a.ScheduledFor.Compare(b.ScheduledFor); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
}

// --- AccountStore ---

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[int64]*model.Account
	nextID   int64
	getErr   error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: make(map[int64]*model.Account)}
}

func (m *mockAccountStore) Upsert(_ context.Context, a model.Account) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Platform == a.Platform && existing.ExternalID == a.ExternalID {
			a.ID = existing.ID
			a.CreatedAt = existing.CreatedAt
			*existing = a
			return a, nil
		}
	}
	m.nextID++
	a.ID = m.nextID
	m.accounts[a.ID] = &a
	return a, nil
}

func (m *mockAccountStore) GetByID(_ context.Context, id int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountStore) ListAll(_ context.Context) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b model.Account) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *mockAccountStore) ListByStatus(ctx context.Context, status model.ConnectionStatus) ([]model.Account, error) {
	all, _ := m.ListAll(ctx)
	var out []model.Account
	for _, a := range all {
		if a.ConnectionStatus == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAccountStore) UpdateTokens(_ context.Context, id int64, access, refresh string, scopes []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return driven.ErrAccountNotFound
	}
	a.SealedAccessToken = access
	a.SealedRefreshToken = refresh
	if scopes != nil {
		a.Scopes = scopes
	}
	a.LastRefreshedAt = at
	return nil
}

func (m *mockAccountStore) Disconnect(_ context.Context, id int64, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return driven.ErrAccountNotFound
	}
	a.SealedAccessToken = access
	a.SealedRefreshToken = refresh
	a.ConnectionStatus = model.ConnectionDisconnected
	return nil
}

// --- IntegrationStore ---

type mockIntegrationStore struct {
	integrations []model.SocialIntegration
}

func (m *mockIntegrationStore) Create(_ context.Context, in model.SocialIntegration) (model.SocialIntegration, error) {
	in.ID = int64(len(m.integrations) + 1)
	m.integrations = append(m.integrations, in)
	return in, nil
}

func (m *mockIntegrationStore) Update(_ context.Context, in model.SocialIntegration) (model.SocialIntegration, error) {
	for i := range m.integrations {
		if m.integrations[i].ID == in.ID {
			m.integrations[i] = in
			return in, nil
		}
	}
	return model.SocialIntegration{}, driven.ErrIntegrationNotFound
}

func (m *mockIntegrationStore) Delete(_ context.Context, id int64) error {
	for i := range m.integrations {
		if m.integrations[i].ID == id {
			m.integrations = slices.Delete(m.integrations, i, i+1)
			return nil
		}
	}
	return driven.ErrIntegrationNotFound
}

func (m *mockIntegrationStore) GetByID(_ context.Context, id int64) (*model.SocialIntegration, error) {
	for _, in := range m.integrations {
		if in.ID == id {
			return &in, nil
		}
	}
	return nil, nil
}

func (m *mockIntegrationStore) ListAll(_ context.Context) ([]model.SocialIntegration, error) {
	return m.integrations, nil
}

func (m *mockIntegrationStore) ListEnabled(_ context.Context) ([]model.SocialIntegration, error) {
	var out []model.SocialIntegration
	for _, in := range m.integrations {
		if in.Enabled {
			out = append(out, in)
		}
	}
	return out, nil
}

// --- AlertStore ---

type mockAlertStore struct {
	mu        sync.Mutex
	events    []model.AlertEvent
	appendErr error
}

func (m *mockAlertStore) Append(_ context.Context, ev model.AlertEvent) (model.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return model.AlertEvent{}, m.appendErr
	}
	ev.ID = int64(len(m.events) + 1)
	ev.CreatedAt = time.Now().UTC()
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *mockAlertStore) ListRecent(_ context.Context, limit int) ([]model.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AlertEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// --- PlatformDispatcher ---

type dispatchCall struct {
	Op      string
	Account model.AuthorizedAccount
	Payload model.UploadPayload
	Meta    model.StreamMetadata
}

type mockDispatcher struct {
	platform model.Platform

	scheduleShort func(ctx context.Context, a model.AuthorizedAccount, p model.UploadPayload) (model.DispatchResult, error)
	uploadVOD     func(ctx context.Context, a model.AuthorizedAccount, p model.UploadPayload) (model.DispatchResult, error)
	refresh       func(ctx context.Context, a model.AuthorizedAccount) (model.TokenGrant, error)
	metadata      func(ctx context.Context, a model.AuthorizedAccount, m model.StreamMetadata) error

	mu    sync.Mutex
	calls []dispatchCall
}

func (m *mockDispatcher) record(c dispatchCall) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

func (m *mockDispatcher) Calls() []dispatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *mockDispatcher) Platform() model.Platform { return m.platform }

func (m *mockDispatcher) RefreshToken(ctx context.Context, a model.AuthorizedAccount) (model.TokenGrant, error) {
	m.record(dispatchCall{Op: driven.OpRefreshToken, Account: a})
	if m.refresh != nil {
		return m.refresh(ctx, a)
	}
	return model.TokenGrant{AccessToken: a.AccessToken + "-refreshed"}, nil
}

func (m *mockDispatcher) UpdateStreamInfo(ctx context.Context, a model.AuthorizedAccount, meta model.StreamMetadata) error {
	m.record(dispatchCall{Op: driven.OpUpdateStreamInfo, Account: a, Meta: meta})
	if m.metadata != nil {
		return m.metadata(ctx, a, meta)
	}
	return nil
}

func (m *mockDispatcher) CreateLiveEvent(ctx context.Context, a model.AuthorizedAccount, meta model.StreamMetadata) error {
	m.record(dispatchCall{Op: driven.OpCreateLiveEvent, Account: a, Meta: meta})
	if m.metadata != nil {
		return m.metadata(ctx, a, meta)
	}
	return nil
}

func (m *mockDispatcher) ScheduleShort(ctx context.Context, a model.AuthorizedAccount, p model.UploadPayload) (model.DispatchResult, error) {
	m.record(dispatchCall{Op: driven.OpScheduleShort, Account: a, Payload: p})
	if m.scheduleShort != nil {
		return m.scheduleShort(ctx, a, p)
	}
	return model.DispatchResult{Status: "scheduled", ExternalID: "ext-" + p.Title}, nil
}

func (m *mockDispatcher) UploadVOD(ctx context.Context, a model.AuthorizedAccount, p model.UploadPayload) (model.DispatchResult, error) {
	m.record(dispatchCall{Op: driven.OpUploadVOD, Account: a, Payload: p})
	if m.uploadVOD != nil {
		return m.uploadVOD(ctx, a, p)
	}
	return model.DispatchResult{Status: "uploaded", ExternalID: "vod-" + p.Title}, nil
}

// dispatcherMap is a DispatcherLookup over a fixed set of dispatchers.
type dispatcherMap map[model.Platform]driven.PlatformDispatcher

func (m dispatcherMap) Get(p model.Platform) (driven.PlatformDispatcher, bool) {
	d, ok := m[p]
	return d, ok
}

func (m dispatcherMap) Platforms() []model.Platform {
	out := make([]model.Platform, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// --- SocialSender / announcer ---

type mockSender struct {
	mu         sync.Mutex
	deliveries []model.SocialDelivery
	send       func(ctx context.Context, d model.SocialDelivery) error
}

func (m *mockSender) Send(ctx context.Context, d model.SocialDelivery) error {
	m.mu.Lock()
	m.deliveries = append(m.deliveries, d)
	m.mu.Unlock()
	if m.send != nil {
		return m.send(ctx, d)
	}
	return nil
}

func (m *mockSender) Deliveries() []model.SocialDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deliveries)
}

type mockAnnouncer struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockAnnouncer) Broadcast(_ context.Context, message string) application.BroadcastReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return application.BroadcastReport{}
}

func (m *mockAnnouncer) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

func int64Ptr(v int64) *int64 { return &v }
