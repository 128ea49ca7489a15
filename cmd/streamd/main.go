// Package main provides the streamd entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/eist-radio/streamd/internal/api"
	"github.com/eist-radio/streamd/internal/engine/factory"
	"github.com/eist-radio/streamd/internal/events"
	"github.com/eist-radio/streamd/internal/infra/config"
	"github.com/eist-radio/streamd/internal/infra/logger"
	"github.com/eist-radio/streamd/internal/infra/station"
	"github.com/eist-radio/streamd/internal/infra/store"
	"github.com/eist-radio/streamd/internal/player"
	"github.com/eist-radio/streamd/internal/remote"
)

var (
	app        = kingpin.New("streamd", "éist live-radio playback daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/streamd.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	checkConfigCmd = app.Command("check-config", "Validate the config file and exit")
)

func init() {
	app.Command("start", "Start the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkConfigCmd.FullCommand() {
		fmt.Printf("Config OK: station=%s stream=%s engine=%s\n",
			cfg.Station.Name, cfg.Station.StreamURL, cfg.Engine.Type)
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		os.Exit(1)
	}
}

// run executes the main daemon logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	st, err := store.Open(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer st.Close()

	eng, err := factory.New(cfg.Engine.Type, cfg.Engine.Settings)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	ctrl := player.New(player.Config{
		StreamURL:            cfg.Station.StreamURL,
		StationName:          cfg.Station.Name,
		OfflineArtworkURL:    cfg.Station.OfflineArtworkURL,
		MaxReconnectAttempts: cfg.Playback.MaxReconnectAttempts,
		Backoff: player.Policy{
			Base: cfg.BackoffBase(),
			Cap:  cfg.BackoffCap(),
		},
		StallPollInterval: cfg.StallPollInterval(),
		StallTimeout:      cfg.StallTimeout(),
		AckTimeout:        cfg.AckTimeout(),
	}, eng, st)

	ctx := context.Background()
	if err := ctrl.Setup(ctx); err != nil {
		return fmt.Errorf("failed to set up playback controller: %w", err)
	}
	defer ctrl.Close()

	rem := remote.New(ctrl, st, cfg.ResumeWindow())
	rem.Bind(eng.Events())
	defer rem.Close()

	bus := events.NewBus()
	go func() {
		for status := range ctrl.Events() {
			bus.Publish(status)
		}
	}()

	if cfg.Metadata.NowPlayingURL != "" {
		client := station.New(station.Config{NowPlayingURL: cfg.Metadata.NowPlayingURL})
		poller := station.NewPoller(client, cfg.MetadataPollInterval(), ctrl.UpdateNowPlaying)
		poller.Start()
		defer poller.Stop()
	} else {
		zlog.Info().Msg("Now-playing endpoint not configured, metadata polling disabled")
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(ctrl, bus, st),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting control API: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal or server error. A plain daemon exit leaves the
	// persisted playback marker untouched so a restart inside the resume
	// window can pick playback back up.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("control API error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown control API: %v", err)
	}

	zlog.Info().Msg("Daemon stopped")
	return nil
}
