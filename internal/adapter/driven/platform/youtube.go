package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformDispatcher = (*YouTube)(nil)

// shortsTag marks an upload as a YouTube Short.
const shortsTag = "#Shorts"

// YouTube dispatches to the YouTube Data API v3.
type YouTube struct {
	creds OAuthCredentials
	opts  options
}

// NewYouTube creates a YouTube dispatcher.
func NewYouTube(creds OAuthCredentials, opts ...Option) *YouTube {
	return &YouTube{creds: creds, opts: applyOptions(opts)}
}

// Platform returns model.PlatformYouTube.
func (y *YouTube) Platform() model.Platform { return model.PlatformYouTube }

// RefreshToken exchanges the refresh token at Google's token endpoint.
func (y *YouTube) RefreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error) {
	cfg := oauthConfig(y.creds, google.Endpoint, y.opts.tokenURL, []string{
		youtube.YoutubeScope,
		youtube.YoutubeUploadScope,
	})
	grant, err := refreshOAuth(ctx, cfg, y.opts.httpClient, account)
	return grant, driven.NewDispatchError(y.Platform(), driven.OpRefreshToken, err)
}

// UpdateStreamInfo retitles the channel's active broadcast.
func (y *YouTube) UpdateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	err := y.updateStreamInfo(ctx, account, meta)
	return driven.NewDispatchError(y.Platform(), driven.OpUpdateStreamInfo, err)
}

func (y *YouTube) updateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	svc, err := y.service(ctx, account)
	if err != nil {
		return err
	}

	list, err := svc.LiveBroadcasts.List([]string{"id", "snippet"}).
		BroadcastStatus("active").
		Context(ctx).
		Do()
	if err != nil {
		return classifyGoogleError(err)
	}
	if len(list.Items) == 0 {
		return fmt.Errorf("%w: no active broadcast", driven.ErrPlatformRejected)
	}

	bc := list.Items[0]
	if meta.Title != "" {
		bc.Snippet.Title = meta.Title
	}
	if meta.Description != "" {
		bc.Snippet.Description = meta.Description
	}

	if _, err := svc.LiveBroadcasts.Update([]string{"snippet"}, bc).Context(ctx).Do(); err != nil {
		return classifyGoogleError(err)
	}
	return nil
}

// CreateLiveEvent schedules a private live broadcast.
func (y *YouTube) CreateLiveEvent(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	err := y.createLiveEvent(ctx, account, meta)
	return driven.NewDispatchError(y.Platform(), driven.OpCreateLiveEvent, err)
}

func (y *YouTube) createLiveEvent(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	svc, err := y.service(ctx, account)
	if err != nil {
		return err
	}

	start := meta.ScheduledStart
	if start.IsZero() {
		start = time.Now()
	}

	bc := &youtube.LiveBroadcast{
		Snippet: &youtube.LiveBroadcastSnippet{
			Title:              meta.Title,
			Description:        meta.Description,
			ScheduledStartTime: start.UTC().Format(time.RFC3339),
		},
		Status: &youtube.LiveBroadcastStatus{PrivacyStatus: "private"},
	}

	if _, err := svc.LiveBroadcasts.Insert([]string{"snippet", "status"}, bc).Context(ctx).Do(); err != nil {
		return classifyGoogleError(err)
	}
	return nil
}

// ScheduleShort uploads the video as a Short. Future schedule times are
// passed as publishAt on a private upload.
func (y *YouTube) ScheduleShort(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error) {
	if !strings.Contains(payload.Title, shortsTag) {
		payload.Title = strings.TrimSpace(payload.Title + " " + shortsTag)
	}
	res, err := y.upload(ctx, account, payload, "scheduled")
	return res, driven.NewDispatchError(y.Platform(), driven.OpScheduleShort, err)
}

// UploadVOD uploads the video as a regular video.
func (y *YouTube) UploadVOD(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error) {
	res, err := y.upload(ctx, account, payload, "uploaded")
	return res, driven.NewDispatchError(y.Platform(), driven.OpUploadVOD, err)
}

func (y *YouTube) upload(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload, status string) (model.DispatchResult, error) {
	svc, err := y.service(ctx, account)
	if err != nil {
		return model.DispatchResult{}, err
	}

	f, err := os.Open(payload.VideoPath)
	if err != nil {
		return model.DispatchResult{}, fmt.Errorf("%w: open video: %v", driven.ErrPlatformRejected, err)
	}
	defer f.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       payload.Title,
			Description: payload.Description,
			Tags:        payload.Tags,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: "public"},
	}
	if payload.ScheduledFor.After(time.Now()) {
		video.Status.PrivacyStatus = "private"
		video.Status.PublishAt = payload.ScheduledFor.UTC().Format(time.RFC3339)
	}

	out, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f).
		Context(ctx).
		Do()
	if err != nil {
		return model.DispatchResult{}, classifyGoogleError(err)
	}

	return model.DispatchResult{Status: status, ExternalID: out.Id}, nil
}

func (y *YouTube) service(ctx context.Context, account model.AuthorizedAccount) (*youtube.Service, error) {
	if err := requireToken(account); err != nil {
		return nil, err
	}
	if err := y.opts.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	clientOpts := []option.ClientOption{
		option.WithHTTPClient(staticClient(ctx, y.opts.httpClient, account.AccessToken)),
	}
	if y.opts.baseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(y.opts.baseURL))
	}

	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return svc, nil
}

func classifyGoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: %s", classifyStatus(gerr.Code), gerr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", driven.ErrPlatformUnavailable, err)
}

