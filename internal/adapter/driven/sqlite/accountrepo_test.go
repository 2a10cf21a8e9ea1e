package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

func makeAccount(platform model.Platform, externalID, access string) model.Account {
	return model.Account{
		Platform:           platform,
		ExternalID:         externalID,
		DisplayName:        "streamer-" + externalID,
		SealedAccessToken:  access,
		SealedRefreshToken: "sealed-refresh-" + externalID,
		Scopes:             []string{"channel:manage", "user:read"},
		ConnectionStatus:   model.ConnectionConnected,
	}
}

func TestAccountRepo_Upsert_Insert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = fixedClock(created)
	ctx := context.Background()

	got, err := repo.Upsert(ctx, makeAccount(model.PlatformTwitch, "u1", "sealed-a"))
	require.NoError(t, err)

	assert.NotZero(t, got.ID)
	assert.Equal(t, model.PlatformTwitch, got.Platform)
	assert.Equal(t, "u1", got.ExternalID)
	assert.Equal(t, "streamer-u1", got.DisplayName)
	assert.Equal(t, "sealed-a", got.SealedAccessToken)
	assert.Equal(t, []string{"channel:manage", "user:read"}, got.Scopes)
	assert.Equal(t, model.ConnectionConnected, got.ConnectionStatus)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.LastRefreshedAt.Equal(created))
}

func TestAccountRepo_Upsert_SameIdentityUpdatesInPlace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, makeAccount(model.PlatformTwitch, "u1", "A"))
	require.NoError(t, err)

	second := makeAccount(model.PlatformTwitch, "u1", "B")
	second.DisplayName = "renamed"
	second.Scopes = []string{"chat:read"}
	got, err := repo.Upsert(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "B", got.SealedAccessToken)
	assert.Equal(t, "renamed", got.DisplayName)
	assert.Equal(t, []string{"chat:read"}, got.Scopes)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAccountRepo_Upsert_SameExternalIDOtherPlatform(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	a, err := repo.Upsert(ctx, makeAccount(model.PlatformTwitch, "u1", "A"))
	require.NoError(t, err)
	b, err := repo.Upsert(ctx, makeAccount(model.PlatformKick, "u1", "B"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestAccountRepo_Upsert_ReconnectsDisconnected(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	acct, err := repo.Upsert(ctx, makeAccount(model.PlatformYouTube, "chan", "A"))
	require.NoError(t, err)
	require.NoError(t, repo.Disconnect(ctx, acct.ID, "blank-a", "blank-r"))

	got, err := repo.Upsert(ctx, makeAccount(model.PlatformYouTube, "chan", "C"))
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, model.ConnectionConnected, got.ConnectionStatus)
}

func TestAccountRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	got, err := repo.GetByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAccountRepo_ListByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	a, err := repo.Upsert(ctx, makeAccount(model.PlatformTwitch, "a", "A"))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, makeAccount(model.PlatformKick, "b", "B"))
	require.NoError(t, err)
	require.NoError(t, repo.Disconnect(ctx, a.ID, "x", "y"))

	connected, err := repo.ListByStatus(ctx, model.ConnectionConnected)
	require.NoError(t, err)
	require.Len(t, connected, 1)
	assert.Equal(t, "b", connected[0].ExternalID)

	disconnected, err := repo.ListByStatus(ctx, model.ConnectionDisconnected)
	require.NoError(t, err)
	require.Len(t, disconnected, 1)
	assert.Equal(t, "a", disconnected[0].ExternalID)
	assert.Equal(t, "x", disconnected[0].SealedAccessToken)
	assert.Equal(t, "y", disconnected[0].SealedRefreshToken)
}

func TestAccountRepo_UpdateTokens(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)
	ctx := context.Background()

	acct, err := repo.Upsert(ctx, makeAccount(model.PlatformFacebook, "page", "A"))
	require.NoError(t, err)

	refreshed := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateTokens(ctx, acct.ID, "A2", "R2", nil, refreshed))

	got, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A2", got.SealedAccessToken)
	assert.Equal(t, "R2", got.SealedRefreshToken)
	assert.Equal(t, acct.Scopes, got.Scopes, "nil scopes leave stored scopes unchanged")
	assert.True(t, got.LastRefreshedAt.Equal(refreshed))

	require.NoError(t, repo.UpdateTokens(ctx, acct.ID, "A3", "R3", []string{"pages_manage_posts"}, refreshed))
	got, err = repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pages_manage_posts"}, got.Scopes)
}

func TestAccountRepo_UpdateTokens_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	err := repo.UpdateTokens(context.Background(), 42, "a", "r", nil, time.Now())
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)
}

func TestAccountRepo_Disconnect_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepo(db)

	err := repo.Disconnect(context.Background(), 42, "a", "r")
	assert.ErrorIs(t, err, driven.ErrAccountNotFound)
}
