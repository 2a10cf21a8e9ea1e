package platform

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2/twitch"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformDispatcher = (*Twitch)(nil)

const twitchHelixURL = "https://api.twitch.tv/helix"

// Twitch dispatches to the Twitch Helix API. Twitch has no public upload
// API, so ScheduleShort and UploadVOD return ErrUnsupported.
type Twitch struct {
	creds OAuthCredentials
	opts  options
	api   *apiClient
	// games shares api settings but caches category lookups.
	games *apiClient
}

// NewTwitch creates a Twitch dispatcher. Game lookups go through an
// in-memory HTTP cache so repeated metadata updates reuse the category id.
func NewTwitch(creds OAuthCredentials, opts ...Option) *Twitch {
	o := applyOptions(opts)
	base := o.baseURL
	if base == "" {
		base = twitchHelixURL
	}

	api := newAPIClient(model.PlatformTwitch, base, o)
	api.headers["Client-Id"] = creds.ClientID

	cacheTransport := httpcache.NewMemoryCacheTransport()
	if o.httpClient.Transport != nil {
		cacheTransport.Transport = o.httpClient.Transport
	}
	cachedOpts := o
	cachedOpts.httpClient = &http.Client{Transport: cacheTransport, Timeout: o.httpClient.Timeout}

	games := newAPIClient(model.PlatformTwitch, base, cachedOpts)
	games.headers["Client-Id"] = creds.ClientID

	return &Twitch{creds: creds, opts: o, api: api, games: games}
}

// Platform returns model.PlatformTwitch.
func (t *Twitch) Platform() model.Platform { return model.PlatformTwitch }

// RefreshToken exchanges the refresh token at the Twitch identity endpoint.
func (t *Twitch) RefreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error) {
	cfg := oauthConfig(t.creds, twitch.Endpoint, t.opts.tokenURL, nil)
	grant, err := refreshOAuth(ctx, cfg, t.opts.httpClient, account)
	return grant, driven.NewDispatchError(t.Platform(), driven.OpRefreshToken, err)
}

type twitchBroadcasterQuery struct {
	BroadcasterID string `url:"broadcaster_id"`
}

type twitchGameQuery struct {
	Name string `url:"name"`
}

type twitchGamesResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type twitchChannelUpdate struct {
	Title  string `json:"title,omitempty"`
	GameID string `json:"game_id,omitempty"`
}

// UpdateStreamInfo sets the channel title and category.
func (t *Twitch) UpdateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	err := t.updateStreamInfo(ctx, account, meta)
	return driven.NewDispatchError(t.Platform(), driven.OpUpdateStreamInfo, err)
}

func (t *Twitch) updateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	if err := requireToken(account); err != nil {
		return err
	}

	gameID, err := t.lookupGame(ctx, account, gameName(meta))
	if err != nil {
		return err
	}

	return t.api.do(ctx, request{
		Method: http.MethodPatch,
		Path:   "/channels",
		Query:  twitchBroadcasterQuery{BroadcasterID: account.ExternalID},
		Body:   twitchChannelUpdate{Title: meta.Title, GameID: gameID},
		Token:  account.AccessToken,
	}, nil)
}

type twitchSegment struct {
	StartTime   string `json:"start_time"`
	Timezone    string `json:"timezone"`
	Duration    string `json:"duration"`
	IsRecurring bool   `json:"is_recurring"`
	CategoryID  string `json:"category_id,omitempty"`
	Title       string `json:"title,omitempty"`
}

// CreateLiveEvent adds a one-off segment to the channel's stream schedule.
func (t *Twitch) CreateLiveEvent(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	err := t.createLiveEvent(ctx, account, meta)
	return driven.NewDispatchError(t.Platform(), driven.OpCreateLiveEvent, err)
}

func (t *Twitch) createLiveEvent(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	if err := requireToken(account); err != nil {
		return err
	}

	gameID, err := t.lookupGame(ctx, account, gameName(meta))
	if err != nil {
		return err
	}

	start := meta.ScheduledStart
	if start.IsZero() {
		start = time.Now()
	}

	return t.api.do(ctx, request{
		Method: http.MethodPost,
		Path:   "/schedule/segment",
		Query:  twitchBroadcasterQuery{BroadcasterID: account.ExternalID},
		Body: twitchSegment{
			StartTime:  start.UTC().Format(time.RFC3339),
			Timezone:   "UTC",
			Duration:   "240",
			CategoryID: gameID,
			Title:      meta.Title,
		},
		Token:      account.AccessToken,
		Idempotent: true,
	}, nil)
}

// ScheduleShort is not supported on Twitch.
func (t *Twitch) ScheduleShort(context.Context, model.AuthorizedAccount, model.UploadPayload) (model.DispatchResult, error) {
	return model.DispatchResult{}, driven.NewDispatchError(t.Platform(), driven.OpScheduleShort, driven.ErrUnsupported)
}

// UploadVOD is not supported on Twitch.
func (t *Twitch) UploadVOD(context.Context, model.AuthorizedAccount, model.UploadPayload) (model.DispatchResult, error) {
	return model.DispatchResult{}, driven.NewDispatchError(t.Platform(), driven.OpUploadVOD, driven.ErrUnsupported)
}

// lookupGame resolves a category name to its Helix id. An empty name yields
// an empty id, which leaves the category unchanged.
func (t *Twitch) lookupGame(ctx context.Context, account model.AuthorizedAccount, name string) (string, error) {
	if name == "" {
		return "", nil
	}

	var resp twitchGamesResponse
	err := t.games.do(ctx, request{
		Method: http.MethodGet,
		Path:   "/games",
		Query:  twitchGameQuery{Name: name},
		Token:  account.AccessToken,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("%w: unknown category %q", driven.ErrPlatformRejected, name)
	}
	return resp.Data[0].ID, nil
}

// gameName prefers the explicit game over the free-form category.
func gameName(meta model.StreamMetadata) string {
	if meta.Game != "" {
		return meta.Game
	}
	return meta.Category
}
