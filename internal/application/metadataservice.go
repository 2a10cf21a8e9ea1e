package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// MetadataOutcome is the per-account result of a metadata or live event push.
// Err is nil on success.
type MetadataOutcome struct {
	AccountID int64
	Platform  model.Platform
	Err       error
}

// MetadataService pushes stream title/category changes and live events to a
// set of linked accounts.
type MetadataService struct {
	accounts    accountResolver
	dispatchers driven.DispatcherLookup
	timeout     time.Duration
}

// NewMetadataService creates a MetadataService. timeout bounds each
// per-account dispatcher call.
func NewMetadataService(accounts accountResolver, dispatchers driven.DispatcherLookup, timeout time.Duration) *MetadataService {
	return &MetadataService{accounts: accounts, dispatchers: dispatchers, timeout: timeout}
}

// UpdateStreamInfo sends meta to every listed account. Failures are
// collected per account; one failing account never stops the others.
func (s *MetadataService) UpdateStreamInfo(ctx context.Context, meta model.StreamMetadata, accountIDs []int64) []MetadataOutcome {
	return s.each(ctx, driven.OpUpdateStreamInfo, accountIDs, func(ctx context.Context, d driven.PlatformDispatcher, a model.AuthorizedAccount) error {
		return d.UpdateStreamInfo(ctx, a, meta)
	})
}

// CreateLiveEvent schedules a live event on every listed account.
func (s *MetadataService) CreateLiveEvent(ctx context.Context, meta model.StreamMetadata, accountIDs []int64) []MetadataOutcome {
	return s.each(ctx, driven.OpCreateLiveEvent, accountIDs, func(ctx context.Context, d driven.PlatformDispatcher, a model.AuthorizedAccount) error {
		return d.CreateLiveEvent(ctx, a, meta)
	})
}

type metadataCall func(ctx context.Context, d driven.PlatformDispatcher, a model.AuthorizedAccount) error

func (s *MetadataService) each(ctx context.Context, op string, accountIDs []int64, call metadataCall) []MetadataOutcome {
	outcomes := make([]MetadataOutcome, 0, len(accountIDs))
	for _, id := range accountIDs {
		out := s.one(ctx, id, call)
		if out.Err != nil {
			slog.Warn("metadata dispatch failed", "op", op, "account_id", id, "platform", out.Platform, "error", out.Err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (s *MetadataService) one(ctx context.Context, id int64, call metadataCall) (out MetadataOutcome) {
	out.AccountID = id

	acct, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		out.Err = fmt.Errorf("load account: %w", err)
		return out
	}
	if acct == nil {
		out.Err = driven.ErrAccountNotFound
		return out
	}
	out.Platform = acct.Platform

	dispatcher, ok := s.dispatchers.Get(acct.Platform)
	if !ok {
		out.Err = fmt.Errorf(msgNoDispatcherFmt, acct.Platform)
		return out
	}

	authorized, err := s.accounts.Authorize(*acct)
	if err != nil {
		out.Err = err
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	out.Err = call(callCtx, dispatcher, authorized)
	return out
}
