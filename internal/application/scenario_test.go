package application_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/streamcaster/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/streamcaster/internal/application"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
	"github.com/ericfisherdev/streamcaster/internal/vault"
)

// TestEndToEndScenario exercises the vault, account registry, job processor
// and go-live fan-out against a real SQLite database.
func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "streamcaster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	box, err := vault.NewWithKey([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	// Vault round-trip and tag corruption.
	sealed, err := box.Seal("abc123")
	require.NoError(t, err)
	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "abc123", opened)

	last := sealed[len(sealed)-1:]
	flip := "0"
	if last == "0" {
		flip = "1"
	}
	_, err = box.Open(sealed[:len(sealed)-1] + flip)
	require.ErrorIs(t, err, vault.ErrIntegrity)

	// Upsert is idempotent per (platform, external id).
	tiktok := &mockDispatcher{platform: model.PlatformTikTok}
	dispatchers := dispatcherMap{model.PlatformTikTok: tiktok}
	accountRepo := sqlite.NewAccountRepo(db)
	accounts := application.NewAccountService(accountRepo, box, dispatchers, time.Second)

	first, err := accounts.Upsert(ctx, application.ConnectAccountInput{
		Platform: model.PlatformTikTok, ExternalID: "u1", DisplayName: "first", AccessToken: "tok",
	})
	require.NoError(t, err)
	second, err := accounts.Upsert(ctx, application.ConnectAccountInput{
		Platform: model.PlatformTikTok, ExternalID: "u1", DisplayName: "second", AccessToken: "tok2",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := accounts.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "second", all[0].DisplayName)
	assert.NotContains(t, all[0].SealedAccessToken, "tok2")

	// Disconnected accounts still get dispatched.
	require.NoError(t, accounts.Disconnect(ctx, first.ID))

	integrationRepo := sqlite.NewIntegrationRepo(db)
	enabled := &mockSender{}
	disabled := &mockSender{}
	broadcaster := application.NewBroadcaster(integrationRepo, box, map[model.IntegrationType]driven.SocialSender{
		model.IntegrationDiscord: enabled,
		model.IntegrationTwitter: disabled,
		model.IntegrationWebhook: disabled,
	}, time.Second)

	for _, in := range []model.SocialIntegration{
		{Name: "tw", Type: model.IntegrationTwitter, SealedAPIKey: mustSeal(t, box, "k"), Enabled: false},
		{Name: "dc", Type: model.IntegrationDiscord, SealedWebhookURL: mustSeal(t, box, "https://discord.test/h"), Enabled: true, MessageTemplate: "📣 {message}"},
		{Name: "wh", Type: model.IntegrationWebhook, SealedWebhookURL: mustSeal(t, box, "https://hooks.test"), Enabled: false},
	} {
		_, err := integrationRepo.Create(ctx, in)
		require.NoError(t, err)
	}

	jobRepo := sqlite.NewJobRepo(db)
	job, err := jobRepo.Create(ctx, model.ScheduledJob{
		Kind:         model.JobKindShort,
		Title:        "Going live",
		VideoPath:    "/clips/a.mp4",
		ScheduledFor: time.Now().Add(-time.Minute),
		Platform:     model.PlatformTikTok,
		AccountID:    &first.ID,
	})
	require.NoError(t, err)

	processor := application.NewJobProcessor(jobRepo, accounts, dispatchers, broadcaster, time.Second)
	report := processor.Tick(ctx, model.JobKindShort)
	assert.Equal(t, 1, report.Succeeded)

	require.Len(t, tiktok.Calls(), 1)
	stored, err := jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.JobStatusPosted, stored.Status)

	// Only the enabled integration receives the rendered message.
	assert.Empty(t, disabled.Deliveries())
	got := enabled.Deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "📣 Going live", got[0].Message)
	assert.Equal(t, "https://discord.test/h", got[0].WebhookURL)

	// A second tick leaves the posted job alone.
	processor.Tick(ctx, model.JobKindShort)
	assert.Len(t, tiktok.Calls(), 1)
}

func mustSeal(t *testing.T, box *vault.Vault, s string) string {
	t.Helper()
	sealed, err := box.Seal(s)
	require.NoError(t, err)
	return sealed
}
