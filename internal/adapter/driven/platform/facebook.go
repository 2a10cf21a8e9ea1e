package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/oauth2/facebook"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformDispatcher = (*Facebook)(nil)

const facebookGraphURL = "https://graph.facebook.com/v19.0"

// Facebook dispatches to the Graph API for the page identified by the
// account's external id.
type Facebook struct {
	creds OAuthCredentials
	opts  options
	api   *apiClient
}

// NewFacebook creates a Facebook dispatcher.
func NewFacebook(creds OAuthCredentials, opts ...Option) *Facebook {
	o := applyOptions(opts)
	base := o.baseURL
	if base == "" {
		base = facebookGraphURL
	}
	return &Facebook{creds: creds, opts: o, api: newAPIClient(model.PlatformFacebook, base, o)}
}

// Platform returns model.PlatformFacebook.
func (f *Facebook) Platform() model.Platform { return model.PlatformFacebook }

type facebookExchangeQuery struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

type facebookTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// RefreshToken swaps the current long-lived token for a fresh one with the
// fb_exchange_token grant. Facebook issues no separate refresh token.
func (f *Facebook) RefreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error) {
	grant, err := f.refreshToken(ctx, account)
	return grant, driven.NewDispatchError(f.Platform(), driven.OpRefreshToken, err)
}

func (f *Facebook) refreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error) {
	if err := requireToken(account); err != nil {
		return model.TokenGrant{}, err
	}
	if !f.creds.Configured() {
		return model.TokenGrant{}, fmt.Errorf("%w: oauth client not configured", driven.ErrMissingCredentials)
	}

	tokenURL := f.opts.tokenURL
	if tokenURL == "" {
		tokenURL = facebook.Endpoint.TokenURL
	}

	var resp facebookTokenResponse
	err := f.api.do(ctx, request{
		Method: http.MethodGet,
		Path:   tokenURL,
		Query: facebookExchangeQuery{
			GrantType:       "fb_exchange_token",
			ClientID:        f.creds.ClientID,
			ClientSecret:    f.creds.ClientSecret,
			FBExchangeToken: account.AccessToken,
		},
	}, &resp)
	if err != nil {
		return model.TokenGrant{}, err
	}

	grant := model.TokenGrant{AccessToken: resp.AccessToken}
	if resp.ExpiresIn > 0 {
		grant.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return grant, nil
}

type facebookLiveQuery struct {
	BroadcastStatus string `url:"broadcast_status"`
}

type facebookLiveList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type facebookLiveVideo struct {
	Title            string `json:"title,omitempty"`
	Description      string `json:"description,omitempty"`
	Status           string `json:"status,omitempty"`
	PlannedStartTime int64  `json:"planned_start_time,omitempty"`
}

// UpdateStreamInfo retitles the page's current live video.
func (f *Facebook) UpdateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	err := f.updateStreamInfo(ctx, account, meta)
	return driven.NewDispatchError(f.Platform(), driven.OpUpdateStreamInfo, err)
}

func (f *Facebook) updateStreamInfo(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	if err := requireToken(account); err != nil {
		return err
	}

	var live facebookLiveList
	err := f.api.do(ctx, request{
		Method: http.MethodGet,
		Path:   "/" + account.ExternalID + "/live_videos",
		Query:  facebookLiveQuery{BroadcastStatus: `["LIVE"]`},
		Token:  account.AccessToken,
	}, &live)
	if err != nil {
		return err
	}
	if len(live.Data) == 0 {
		return fmt.Errorf("%w: no live video", driven.ErrPlatformRejected)
	}

	return f.api.do(ctx, request{
		Method: http.MethodPost,
		Path:   "/" + live.Data[0].ID,
		Body:   facebookLiveVideo{Title: meta.Title, Description: meta.Description},
		Token:  account.AccessToken,
	}, nil)
}

// CreateLiveEvent creates a scheduled, unpublished live video on the page.
func (f *Facebook) CreateLiveEvent(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	err := f.createLiveEvent(ctx, account, meta)
	return driven.NewDispatchError(f.Platform(), driven.OpCreateLiveEvent, err)
}

func (f *Facebook) createLiveEvent(ctx context.Context, account model.AuthorizedAccount, meta model.StreamMetadata) error {
	if err := requireToken(account); err != nil {
		return err
	}

	body := facebookLiveVideo{
		Title:       meta.Title,
		Description: meta.Description,
		Status:      "SCHEDULED_UNPUBLISHED",
	}
	if !meta.ScheduledStart.IsZero() {
		body.PlannedStartTime = meta.ScheduledStart.Unix()
	}

	return f.api.do(ctx, request{
		Method:     http.MethodPost,
		Path:       "/" + account.ExternalID + "/live_videos",
		Body:       body,
		Token:      account.AccessToken,
		Idempotent: true,
	}, nil)
}

// ScheduleShort uploads the clip to the page's videos edge.
func (f *Facebook) ScheduleShort(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error) {
	res, err := f.upload(ctx, account, payload, "scheduled")
	return res, driven.NewDispatchError(f.Platform(), driven.OpScheduleShort, err)
}

// UploadVOD uploads the video to the page's videos edge.
func (f *Facebook) UploadVOD(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error) {
	res, err := f.upload(ctx, account, payload, "uploaded")
	return res, driven.NewDispatchError(f.Platform(), driven.OpUploadVOD, err)
}

type facebookUploadResponse struct {
	ID string `json:"id"`
}

func (f *Facebook) upload(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload, status string) (model.DispatchResult, error) {
	if err := requireToken(account); err != nil {
		return model.DispatchResult{}, err
	}

	fields := map[string]string{
		"title":       payload.Title,
		"description": payload.Description,
	}
	if payload.ScheduledFor.After(time.Now()) {
		fields["published"] = "false"
		fields["scheduled_publish_time"] = strconv.FormatInt(payload.ScheduledFor.Unix(), 10)
	}

	body, contentType, err := multipartVideo(payload.VideoPath, "source", fields)
	if err != nil {
		return model.DispatchResult{}, err
	}

	base := f.opts.uploadURL
	if base == "" {
		base = f.api.baseURL
	}

	var resp facebookUploadResponse
	err = f.api.do(ctx, request{
		Method:      http.MethodPost,
		Path:        base + "/" + account.ExternalID + "/videos",
		RawBody:     body,
		ContentType: contentType,
		Token:       account.AccessToken,
		Idempotent:  true,
	}, &resp)
	if err != nil {
		return model.DispatchResult{}, err
	}

	return model.DispatchResult{Status: status, ExternalID: resp.ID}, nil
}

// multipartVideo builds a multipart form with the file at path under
// fileField plus the given text fields.
func multipartVideo(path, fileField string, fields map[string]string) (io.Reader, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: open video: %v", driven.ErrPlatformRejected, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	part, err := w.CreateFormFile(fileField, filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy video: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
