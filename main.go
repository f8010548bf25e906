package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"videotoolbox/api"
	"videotoolbox/config"
	"videotoolbox/ffmpeg"
	"videotoolbox/task"
	"videotoolbox/youtube"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	for _, dir := range []string{cfg.TempDir(), cfg.DownloadsDir(), cfg.OutputsDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Fatal().Str("dir", dir).Err(err).Msg("could not create storage area")
		}
	}

	runner, err := ffmpeg.NewRunner(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ffmpeg runner")
	}

	provider := buildProvider(cfg)
	registry := task.NewRegistry()
	manager := task.NewManager(cfg, registry, runner, provider)
	reaper := task.NewReaper(registry,
		[]string{cfg.TempDir(), cfg.DownloadsDir(), cfg.OutputsDir()},
		cfg.FileRetention, cfg.SweepInterval)

	router := api.SetupRouter(manager, provider, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.SetBaseContext(ctx)
	reaper.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}
	if !manager.Wait(shutdownCtx) {
		log.Warn().Msg("background executors did not finish before timeout")
	}

	log.Info().Msg("server exiting")
}

// buildProvider picks the remote video strategy once at startup: the real
// metadata-only provider, or the simulated-download stub for development.
func buildProvider(cfg *config.Config) youtube.Provider {
	apiProvider := youtube.NewAPIProvider(cfg.YouTubeAPIKey)
	if cfg.UnsafeDownload {
		log.Warn().Msg("unsafe download mode enabled: downloads are simulated, do not use in production")
		return &youtube.StubProvider{Info: apiProvider, SamplePath: cfg.SamplePath}
	}
	return apiProvider
}
