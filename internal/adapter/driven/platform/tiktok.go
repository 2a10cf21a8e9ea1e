package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlatformDispatcher = (*TikTok)(nil)

const tiktokAPIURL = "https://open.tiktokapis.com/v2"

// TikTok dispatches to the TikTok Content Posting API. Videos are pushed in
// a single chunk; live features are not exposed and return ErrUnsupported.
type TikTok struct {
	creds OAuthCredentials
	opts  options
	api   *apiClient
}

// NewTikTok creates a TikTok dispatcher.
func NewTikTok(creds OAuthCredentials, opts ...Option) *TikTok {
	o := applyOptions(opts)
	base := o.baseURL
	if base == "" {
		base = tiktokAPIURL
	}
	return &TikTok{creds: creds, opts: o, api: newAPIClient(model.PlatformTikTok, base, o)}
}

// Platform returns model.PlatformTikTok.
func (t *TikTok) Platform() model.Platform { return model.PlatformTikTok }

// tiktokRefreshForm uses client_key where other providers use client_id,
// which is why this adapter does not go through oauth2.Config.
type tiktokRefreshForm struct {
	ClientKey    string `url:"client_key"`
	ClientSecret string `url:"client_secret"`
	GrantType    string `url:"grant_type"`
	RefreshToken string `url:"refresh_token"`
}

type tiktokTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
	Description  string `json:"error_description"`
}

// RefreshToken exchanges the refresh token at TikTok's token endpoint.
func (t *TikTok) RefreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error) {
	grant, err := t.refreshToken(ctx, account)
	return grant, driven.NewDispatchError(t.Platform(), driven.OpRefreshToken, err)
}

func (t *TikTok) refreshToken(ctx context.Context, account model.AuthorizedAccount) (model.TokenGrant, error) {
	if account.RefreshToken == "" {
		return model.TokenGrant{}, driven.ErrMissingCredentials
	}
	if !t.creds.Configured() {
		return model.TokenGrant{}, fmt.Errorf("%w: oauth client not configured", driven.ErrMissingCredentials)
	}

	form, err := query.Values(tiktokRefreshForm{
		ClientKey:    t.creds.ClientID,
		ClientSecret: t.creds.ClientSecret,
		GrantType:    "refresh_token",
		RefreshToken: account.RefreshToken,
	})
	if err != nil {
		return model.TokenGrant{}, fmt.Errorf("encode refresh form: %w", err)
	}

	path := t.opts.tokenURL
	if path == "" {
		path = "/oauth/token/"
	}

	var resp tiktokTokenResponse
	err = t.api.do(ctx, request{
		Method:      http.MethodPost,
		Path:        path,
		RawBody:     strings.NewReader(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}, &resp)
	if err != nil {
		return model.TokenGrant{}, err
	}
	if resp.Error != "" {
		return model.TokenGrant{}, fmt.Errorf("%w: %s: %s", driven.ErrCredentialRejected, resp.Error, resp.Description)
	}

	grant := model.TokenGrant{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.Scope != "" {
		grant.Scopes = strings.Split(resp.Scope, ",")
	}
	if resp.ExpiresIn > 0 {
		grant.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return grant, nil
}

// UpdateStreamInfo is not supported on TikTok.
func (t *TikTok) UpdateStreamInfo(context.Context, model.AuthorizedAccount, model.StreamMetadata) error {
	return driven.NewDispatchError(t.Platform(), driven.OpUpdateStreamInfo, driven.ErrUnsupported)
}

// CreateLiveEvent is not supported on TikTok.
func (t *TikTok) CreateLiveEvent(context.Context, model.AuthorizedAccount, model.StreamMetadata) error {
	return driven.NewDispatchError(t.Platform(), driven.OpCreateLiveEvent, driven.ErrUnsupported)
}

// ScheduleShort publishes the clip to the creator's account.
func (t *TikTok) ScheduleShort(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error) {
	res, err := t.publish(ctx, account, payload, "scheduled")
	return res, driven.NewDispatchError(t.Platform(), driven.OpScheduleShort, err)
}

// UploadVOD publishes the video to the creator's account.
func (t *TikTok) UploadVOD(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload) (model.DispatchResult, error) {
	res, err := t.publish(ctx, account, payload, "uploaded")
	return res, driven.NewDispatchError(t.Platform(), driven.OpUploadVOD, err)
}

type tiktokPostInfo struct {
	Title        string `json:"title"`
	PrivacyLevel string `json:"privacy_level"`
}

type tiktokSourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

type tiktokInitRequest struct {
	PostInfo   tiktokPostInfo   `json:"post_info"`
	SourceInfo tiktokSourceInfo `json:"source_info"`
}

type tiktokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (t *TikTok) publish(ctx context.Context, account model.AuthorizedAccount, payload model.UploadPayload, status string) (model.DispatchResult, error) {
	if err := requireToken(account); err != nil {
		return model.DispatchResult{}, err
	}

	video, err := os.ReadFile(payload.VideoPath)
	if err != nil {
		return model.DispatchResult{}, fmt.Errorf("%w: read video: %v", driven.ErrPlatformRejected, err)
	}
	size := int64(len(video))
	if size == 0 {
		return model.DispatchResult{}, fmt.Errorf("%w: empty video file", driven.ErrPlatformRejected)
	}

	var init tiktokInitResponse
	err = t.api.do(ctx, request{
		Method: http.MethodPost,
		Path:   "/post/publish/video/init/",
		Body: tiktokInitRequest{
			PostInfo: tiktokPostInfo{
				Title:        captionWithTags(payload.Title, payload.Tags),
				PrivacyLevel: "PUBLIC_TO_EVERYONE",
			},
			SourceInfo: tiktokSourceInfo{
				Source:          "FILE_UPLOAD",
				VideoSize:       size,
				ChunkSize:       size,
				TotalChunkCount: 1,
			},
		},
		Token:      account.AccessToken,
		Idempotent: true,
	}, &init)
	if err != nil {
		return model.DispatchResult{}, err
	}
	if init.Error.Code != "" && init.Error.Code != "ok" {
		return model.DispatchResult{}, fmt.Errorf("%w: %s: %s", driven.ErrPlatformRejected, init.Error.Code, init.Error.Message)
	}
	if init.Data.UploadURL == "" {
		return model.DispatchResult{}, fmt.Errorf("%w: init returned no upload url", driven.ErrPlatformRejected)
	}

	err = t.api.do(ctx, request{
		Method:      http.MethodPut,
		Path:        init.Data.UploadURL,
		RawBody:     bytes.NewReader(video),
		ContentType: "video/mp4",
		Headers: map[string]string{
			"Content-Range": fmt.Sprintf("bytes 0-%d/%d", size-1, size),
		},
	}, nil)
	if err != nil {
		return model.DispatchResult{}, err
	}

	return model.DispatchResult{Status: status, ExternalID: init.Data.PublishID}, nil
}

// captionWithTags appends tags as hashtags to title.
func captionWithTags(title string, tags []string) string {
	var b strings.Builder
	b.WriteString(title)
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		b.WriteString(" #")
		b.WriteString(strings.ReplaceAll(tag, " ", ""))
	}
	return b.String()
}
