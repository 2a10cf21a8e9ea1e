package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/streamcaster/internal/adapter/driven/platform"
	"github.com/ericfisherdev/streamcaster/internal/adapter/driven/social"
	sqliteadapter "github.com/ericfisherdev/streamcaster/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/streamcaster/internal/adapter/driving/http"
	"github.com/ericfisherdev/streamcaster/internal/application"
	"github.com/ericfisherdev/streamcaster/internal/config"
	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
	"github.com/ericfisherdev/streamcaster/internal/vault"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"shorts_interval", cfg.ShortsInterval,
		"vods_interval", cfg.VODsInterval,
		"refresh_interval", cfg.RefreshInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Credential vault.
	if cfg.UsingDefaultSecret() {
		slog.Warn("STREAMCASTER_SECRET not set, sealing secrets with the development key")
	}
	box := vault.New(cfg.Secret)

	// 4. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	version, err := sqliteadapter.SchemaVersion(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", version)

	// 5. Wire driven adapters.
	accountStore := sqliteadapter.NewAccountRepo(db)
	jobStore := sqliteadapter.NewJobRepo(db)
	integrationStore := sqliteadapter.NewIntegrationRepo(db)
	alertStore := sqliteadapter.NewAlertRepo(db)

	registry := newRegistry(cfg)
	slog.Info("platform dispatchers registered", "platforms", registry.Platforms())

	limiter := social.NewLimiter()
	senders := map[model.IntegrationType]driven.SocialSender{
		model.IntegrationTwitter: social.NewTwitterSender("", social.WithLimiter(limiter)),
		model.IntegrationDiscord: social.NewDiscordSender(social.WithLimiter(limiter)),
		model.IntegrationWebhook: social.NewWebhookSender(social.WithLimiter(limiter)),
	}

	// 6. Application services.
	accounts := application.NewAccountService(accountStore, box, registry, cfg.DispatchTimeout)
	broadcaster := application.NewBroadcaster(integrationStore, box, senders, cfg.SocialTimeout)
	processor := application.NewJobProcessor(jobStore, accounts, registry, broadcaster, cfg.DispatchTimeout)
	scheduler := application.NewScheduler(processor, accounts, application.Intervals{
		Shorts:  cfg.ShortsInterval,
		VODs:    cfg.VODsInterval,
		Refresh: cfg.RefreshInterval,
	})

	apiHandler := httphandler.NewHandler(httphandler.Services{
		Accounts:     accounts,
		Jobs:         application.NewJobService(jobStore),
		Integrations: application.NewIntegrationService(integrationStore, box),
		Broadcaster:  broadcaster,
		Metadata:     application.NewMetadataService(accounts, registry, cfg.DispatchTimeout),
		Alerts:       application.NewAlertBus(alertStore),
		Scheduler:    scheduler,
		Health:       application.NewHealthService(accountStore, jobStore, registry),
	}, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Manual scheduler runs can dispatch uploads inline.
		WriteTimeout: cfg.DispatchTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 7. Run scheduler and HTTP server until shutdown.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Start(gctx)
	})

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("streamcaster started", "listen_addr", cfg.ListenAddr)

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger from the configured level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newRegistry registers a dispatcher for every platform. Platforms without
// OAuth client credentials still dispatch with stored tokens; only token
// refresh requires the client.
func newRegistry(cfg *config.Config) *platform.Registry {
	creds := func(p model.Platform) platform.OAuthCredentials {
		c := cfg.Credentials(p)
		if !c.Configured() {
			slog.Warn("no oauth client configured, token refresh disabled", "platform", p)
		}
		return platform.OAuthCredentials{ClientID: c.ClientID, ClientSecret: c.ClientSecret}
	}

	return platform.NewRegistry(
		platform.NewTikTok(creds(model.PlatformTikTok)),
		platform.NewTwitch(creds(model.PlatformTwitch)),
		platform.NewKick(creds(model.PlatformKick)),
		platform.NewYouTube(creds(model.PlatformYouTube)),
		platform.NewFacebook(creds(model.PlatformFacebook)),
	)
}
