package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// HealthStatus is the overall engine state reported by the health endpoint.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
)

// JobCounts tallies jobs of one kind by status.
type JobCounts struct {
	Pending   int
	Uploading int
	Posted    int
	Failed    int
}

// HealthSummary is the enriched status view served over HTTP.
type HealthSummary struct {
	Status               HealthStatus
	Platforms            []model.Platform
	ConnectedAccounts    int
	DisconnectedAccounts int
	Shorts               JobCounts
	VODs                 JobCounts

	// UnservedPlatforms lists platforms with connected accounts but no
	// registered dispatcher.
	UnservedPlatforms []model.Platform
}

// platformLister is the slice of the dispatcher registry HealthService needs.
type platformLister interface {
	driven.DispatcherLookup
	Platforms() []model.Platform
}

// HealthService assembles a status summary from the stores and the
// dispatcher registry. It depends only on port interfaces.
type HealthService struct {
	accounts    driven.AccountStore
	jobs        driven.JobStore
	dispatchers platformLister
}

// NewHealthService creates a new HealthService with the required dependencies.
func NewHealthService(accounts driven.AccountStore, jobs driven.JobStore, dispatchers platformLister) *HealthService {
	return &HealthService{accounts: accounts, jobs: jobs, dispatchers: dispatchers}
}

// Summary loads accounts and jobs and computes the overall status.
func (s *HealthService) Summary(ctx context.Context) (*HealthSummary, error) {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	shorts, err := s.jobs.ListByKind(ctx, model.JobKindShort)
	if err != nil {
		return nil, fmt.Errorf("list shorts: %w", err)
	}
	vods, err := s.jobs.ListByKind(ctx, model.JobKindVOD)
	if err != nil {
		return nil, fmt.Errorf("list vods: %w", err)
	}

	summary := &HealthSummary{
		Platforms: s.dispatchers.Platforms(),
		Shorts:    countJobs(shorts),
		VODs:      countJobs(vods),
	}

	seen := make(map[model.Platform]bool)
	for _, a := range accounts {
		if !a.IsConnected() {
			summary.DisconnectedAccounts++
			continue
		}
		summary.ConnectedAccounts++
		if _, ok := s.dispatchers.Get(a.Platform); !ok && !seen[a.Platform] {
			seen[a.Platform] = true
			summary.UnservedPlatforms = append(summary.UnservedPlatforms, a.Platform)
		}
	}

	summary.Status = computeHealthStatus(summary)
	return summary, nil
}

// computeHealthStatus reports degraded when no dispatchers are registered or
// a connected account has no dispatcher for its platform.
func computeHealthStatus(s *HealthSummary) HealthStatus {
	if len(s.UnservedPlatforms) > 0 {
		return HealthDegraded
	}
	if len(s.Platforms) == 0 {
		return HealthDegraded
	}
	return HealthOK
}

func countJobs(jobs []model.ScheduledJob) JobCounts {
	var c JobCounts
	for _, j := range jobs {
		switch j.Status {
		case model.JobStatusPending:
			c.Pending++
		case model.JobStatusUploading:
			c.Uploading++
		case model.JobStatusPosted:
			c.Posted++
		case model.JobStatusFailed:
			c.Failed++
		}
	}
	return c
}
