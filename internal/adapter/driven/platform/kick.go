package platform

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformDispatcher = (*Kick)(nil)

const kickAPIURL = "https://api.kick.com/public/v1"

// kickEndpoint is Kick's OAuth 2.1 endpoint.
var kickEndpoint = oauth2.Endpoint{
	AuthURL:   "https://id.kick.com/oauth/authorize",
	TokenURL:  "https://id.kick.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Kick dispatches to the Kick public API. Only channel metadata updates are
// exposed publicly; scheduling and uploads return ErrUnsupported.
type Kick struct {
	creds OAuthCredentials
	opts  options
	api   *apiClient
}

// NewKick creates a Kick dispatcher.
func NewKick(creds OAuthCredentials, opts ...Option) *Kick {
	o := applyOptions(opts)
	base := o.baseURL
	if base == "" {
		base = kickAPIURL
	}
	return &Kick{creds: creds, opts: o, api: newAPIClient(model.PlatformKick, base, o)}
}

// Platform returns model.PlatformKick.
func (k *Kick) Platform() model.Platform { return model.PlatformKick }

// RefreshToken exchanges the refresh token at Kick's identity endpoint.
func (k *Kick) RefreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error) {
	cfg := oauthConfig(k.creds, kickEndpoint, k.opts.tokenURL, nil)
	grant, err := refreshOAuth(ctx, cfg, k.opts.httpClient, account)
	return grant, driven.NewDispatchError(k.Platform(), driven.OpRefreshToken, err)
}

type kickCategoryQuery struct {
	Q string `url:"q"`
}

type kickCategories struct {
	Data []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type kickChannelUpdate struct {
	StreamTitle string `json:"stream_title,omitempty"`
	CategoryID  int64  `json:"category_id,omitempty"`
}

// UpdateStreamInfo sets the stream title and category.
func (k *Kick) UpdateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	err := k.updateStreamInfo(ctx, account, meta)
	return driven.NewDispatchError(k.Platform(), driven.OpUpdateStreamInfo, err)
}

func (k *Kick) updateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	if err := requireToken(account); err != nil {
		return err
	}

	update := kickChannelUpdate{StreamTitle: meta.Title}
	if name := gameName(meta); name != "" {
		var cats kickCategories
		err := k.api.do(ctx, request{
			Method: http.MethodGet,
			Path:   "/categories",
			Query:  kickCategoryQuery{Q: name},
			Token:  account.AccessToken,
		}, &cats)
		if err != nil {
			return err
		}
		if len(cats.Data) == 0 {
			return fmt.Errorf("%w: unknown category %q", driven.ErrPlatformRejected, name)
		}
		update.CategoryID = cats.Data[0].ID
	}

	return k.api.do(ctx, request{
		Method: http.MethodPatch,
		Path:   "/channels",
		Body:   update,
		Token:  account.AccessToken,
	}, nil)
}

// CreateLiveEvent is not supported on Kick.
func (k *Kick) CreateLiveEvent(context.Context, model.AuthorizedAccount, model.StreamMetadata) error {
	return driven.NewDispatchError(k.Platform(), driven.OpCreateLiveEvent, driven.ErrUnsupported)
}

// ScheduleShort is not supported on Kick.
func (k *Kick) ScheduleShort(context.Context, model.AuthorizedAccount, model.UploadPayload) (model.DispatchResult, error) {
	return model.DispatchResult{}, driven.NewDispatchError(k.Platform(), driven.OpScheduleShort, driven.ErrUnsupported)
}

// UploadVOD is not supported on Kick.
func (k *Kick) UploadVOD(context.Context, model.AuthorizedAccount, model.UploadPayload) (model.DispatchResult, error) {
	return model.DispatchResult{}, driven.NewDispatchError(k.Platform(), driven.OpUploadVOD, driven.ErrUnsupported)
}
