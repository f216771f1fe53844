package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/config"
	"github.com/reelsync/reelsync/internal/control"
	"github.com/reelsync/reelsync/internal/coordinator"
	"github.com/reelsync/reelsync/internal/peer"
	"github.com/reelsync/reelsync/internal/playback"
	"github.com/reelsync/reelsync/internal/timeline"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("REELSYNC_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	configPath := flag.String("config", "reelsync.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	streamCfg, err := cfg.ResolveStream()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve local stream")
	}

	coordCfg, err := cfg.CoordinatorConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid coordination settings")
	}

	log.Info().
		Str("session", cfg.Session.Identifier).
		Str("stream", streamCfg.StreamID).
		Str("start", streamCfg.StartTimestamp).
		Str("control_addr", cfg.Control.ListenAddr).
		Msg("starting reelsync")

	clock := clockwork.NewRealClock()

	// Player bridge: the browser player connects to /ws/player and the
	// coordinator drives it through the engine contract.
	bridge := playback.NewBridge()

	localDesc := timeline.Descriptor{
		StreamID:       streamCfg.StreamID,
		StartTimestamp: streamCfg.StartTimestamp,
		Duration:       streamCfg.DurationHint,
	}
	coord := coordinator.New(bridge, localDesc, coordCfg, clock)
	bridge.SetListener(coord)

	watcher := playback.NewWatcher(bridge, coord, clock, cfg.BufferPollInterval())

	manager := peer.NewManager(peer.NewWSTransport(), cfg.PeerConfig(), streamCfg, coord, clock)

	server := control.NewServer(cfg.Control.ListenAddr,
		control.NewHandler(coord, streamCfg),
		bridge.RegisterRoutes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go coord.Run(ctx)
	go watcher.Run(ctx)

	go func() {
		if err := manager.Run(ctx); err != nil {
			log.Error().Err(err).Msg("peer connection ended")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("control server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("control server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("control server shutdown failed")
	}

	cancel()
	log.Info().Msg("reelsync shutdown complete")
}
