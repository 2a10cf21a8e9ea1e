package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
)

// Dispatch failure categories. DispatchError wraps one of these (or a
// lower-level cause) so callers can classify with errors.Is.
var (
	ErrCredentialRejected  = errors.New("credential rejected by platform")
	ErrMissingCredentials  = errors.New("account has no usable credentials")
	ErrPlatformUnavailable = errors.New("platform unavailable")
	ErrPlatformRejected    = errors.New("platform rejected request")
	ErrUnsupported         = errors.New("operation not supported by platform")
)

// Dispatcher operation names used in DispatchError.
const (
	OpRefreshToken     = "refresh_token"
	OpUpdateStreamInfo = "update_stream_info"
	OpCreateLiveEvent  = "create_live_event"
	OpScheduleShort    = "schedule_short"
	OpUploadVOD        = "upload_vod"
)

// DispatchError is returned by every PlatformDispatcher failure.
type DispatchError struct {
	Platform model.Platform
	Op       string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// NewDispatchError wraps err for the given platform and operation. A nil err
// returns nil.
func NewDispatchError(platform model.Platform, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return err
	}
	return &DispatchError{Platform: platform, Op: op, Err: err}
}

// PlatformDispatcher is the uniform publishing capability implemented once
// per platform. Implementations are stateless adapters: they receive a
// decrypted account for the duration of the call and never persist it.
type PlatformDispatcher interface {
	Platform() model.Platform

	RefreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error)
	UpdateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error
	CreateLiveEvent(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error
	ScheduleShort(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error)
	UploadVOD(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error)
}

// DispatcherLookup resolves the dispatcher for a platform.
type DispatcherLookup interface {
	Get(platform model.Platform) (PlatformDispatcher, bool)
}
