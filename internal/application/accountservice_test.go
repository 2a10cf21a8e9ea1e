package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/streamcaster/internal/application"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

func newAccountService(store *mockAccountStore, dispatchers dispatcherMap) *application.AccountService {
	return application.NewAccountService(store, fakeBox{}, dispatchers, time.Second)
}

func TestAccountService_UpsertSealsTokens(t *testing.T) {
	store := newMockAccountStore()
	svc := newAccountService(store, dispatcherMap{})

	acct, err := svc.Upsert(context.Background(), application.ConnectAccountInput{
		Platform:     "youtube",
		ExternalID:   " UC1 ",
		DisplayName:  "Channel",
		AccessToken:  "at",
		RefreshToken: "rt",
	})
	require.NoError(t, err)

	assert.Equal(t, model.PlatformYouTube, acct.Platform)
	assert.Equal(t, "UC1", acct.ExternalID)
	assert.Equal(t, "sealed:at", acct.SealedAccessToken)
	assert.Equal(t, "sealed:rt", acct.SealedRefreshToken)
	assert.Equal(t, model.ConnectionConnected, acct.ConnectionStatus)
	assert.NotNil(t, acct.Scopes)
	assert.False(t, acct.LastRefreshedAt.IsZero())
}

func TestAccountService_UpsertIsIdempotentPerExternalID(t *testing.T) {
	store := newMockAccountStore()
	svc := newAccountService(store, dispatcherMap{})
	ctx := context.Background()

	first, err := svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformTwitch, ExternalID: "42", AccessToken: "a1"})
	require.NoError(t, err)
	second, err := svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformTwitch, ExternalID: "42", AccessToken: "a2", DisplayName: "renamed"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "sealed:a2", all[0].SealedAccessToken)
	assert.Equal(t, "renamed", all[0].DisplayName)
}

func TestAccountService_UpsertValidation(t *testing.T) {
	svc := newAccountService(newMockAccountStore(), dispatcherMap{})

	_, err := svc.Upsert(context.Background(), application.ConnectAccountInput{Platform: "myspace", ExternalID: "1"})
	assert.ErrorIs(t, err, application.ErrInvalidInput)

	_, err = svc.Upsert(context.Background(), application.ConnectAccountInput{Platform: model.PlatformKick, ExternalID: "  "})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
}

func TestAccountService_ViewsNeverContainTokens(t *testing.T) {
	svc := newAccountService(newMockAccountStore(), dispatcherMap{})
	_, err := svc.Upsert(context.Background(), application.ConnectAccountInput{
		Platform: model.PlatformKick, ExternalID: "k1", AccessToken: "secret-token-x",
	})
	require.NoError(t, err)

	views, err := svc.ListViews(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "preview:x", views[0].AccessTokenPreview)
	assert.NotContains(t, views[0].AccessTokenPreview, "secret-token")
}

func TestAccountService_DisconnectBlanksTokens(t *testing.T) {
	store := newMockAccountStore()
	svc := newAccountService(store, dispatcherMap{})
	ctx := context.Background()

	acct, err := svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformTikTok, ExternalID: "t1", AccessToken: "a", RefreshToken: "r"})
	require.NoError(t, err)

	require.NoError(t, svc.Disconnect(ctx, acct.ID))

	got, err := svc.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ConnectionDisconnected, got.ConnectionStatus)

	authorized, err := svc.Authorize(*got)
	require.NoError(t, err)
	assert.Empty(t, authorized.AccessToken)
	assert.Empty(t, authorized.RefreshToken)

	assert.ErrorIs(t, svc.Disconnect(ctx, 999), driven.ErrAccountNotFound)
}

func TestAccountService_AuthorizeRejectsTamperedTokens(t *testing.T) {
	svc := newAccountService(newMockAccountStore(), dispatcherMap{})

	_, err := svc.Authorize(model.Account{ID: 1, SealedAccessToken: "tampered", SealedRefreshToken: "sealed:r"})
	assert.ErrorIs(t, err, errFakeIntegrity)
}

func TestAccountService_RefreshAllIsolatesFailures(t *testing.T) {
	store := newMockAccountStore()
	yt := &mockDispatcher{platform: model.PlatformYouTube}
	tw := &mockDispatcher{
		platform: model.PlatformTwitch,
		refresh: func(context.Context, model.AuthorizedAccount) (model.TokenGrant, error) {
			return model.TokenGrant{}, errors.New("invalid_grant")
		},
	}
	svc := newAccountService(store, dispatcherMap{model.PlatformYouTube: yt, model.PlatformTwitch: tw})
	ctx := context.Background()

	ytAcct, err := svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformYouTube, ExternalID: "y", AccessToken: "ya", RefreshToken: "yr"})
	require.NoError(t, err)
	twAcct, err := svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformTwitch, ExternalID: "t", AccessToken: "ta", RefreshToken: "tr"})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformFacebook, ExternalID: "f", AccessToken: "fa"})
	require.NoError(t, err)
	kick, err := svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformKick, ExternalID: "k"})
	require.NoError(t, err)
	require.NoError(t, svc.Disconnect(ctx, kick.ID))

	refreshed, failed := svc.RefreshAll(ctx)

	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 2, failed)

	got, err := svc.FindByID(ctx, ytAcct.ID)
	require.NoError(t, err)
	assert.Equal(t, "sealed:ya-refreshed", got.SealedAccessToken)
	assert.Equal(t, "sealed:yr", got.SealedRefreshToken)

	got, err = svc.FindByID(ctx, twAcct.ID)
	require.NoError(t, err)
	assert.Equal(t, "sealed:ta", got.SealedAccessToken)
}

func TestAccountService_RefreshStoresRotatedRefreshTokenAndScopes(t *testing.T) {
	store := newMockAccountStore()
	yt := &mockDispatcher{
		platform: model.PlatformYouTube,
		refresh: func(context.Context, model.AuthorizedAccount) (model.TokenGrant, error) {
			return model.TokenGrant{AccessToken: "new-a", RefreshToken: "new-r", Scopes: []string{"upload"}}, nil
		},
	}
	svc := newAccountService(store, dispatcherMap{model.PlatformYouTube: yt})
	ctx := context.Background()

	acct, err := svc.Upsert(ctx, application.ConnectAccountInput{Platform: model.PlatformYouTube, ExternalID: "y", AccessToken: "a", RefreshToken: "r"})
	require.NoError(t, err)

	refreshed, failed := svc.RefreshAll(ctx)
	assert.Equal(t, 1, refreshed)
	assert.Zero(t, failed)

	got, err := svc.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "sealed:new-a", got.SealedAccessToken)
	assert.Equal(t, "sealed:new-r", got.SealedRefreshToken)
	assert.Equal(t, []string{"upload"}, got.Scopes)

	calls := yt.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "r", calls[0].Account.RefreshToken)
}
