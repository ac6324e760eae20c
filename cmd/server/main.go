package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/huddlehq/huddle/internal/adapters/http"
	"github.com/huddlehq/huddle/internal/adapters/ws"
	"github.com/huddlehq/huddle/internal/app"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/core"
	"github.com/huddlehq/huddle/internal/history"
	"github.com/huddlehq/huddle/internal/history/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	conns := core.NewConnRegistry()
	bcast := app.NewBroadcaster(conns)
	rooms := core.NewRoomRegistry(bcast)
	relay := app.NewRelay(conns)
	limiter := app.NewJoinLimiter(cfg.JoinLimit, cfg.JoinWindow)

	var rec history.Recorder = history.Nop{}
	var reader router.HistoryReader
	if cfg.HistoryPath != "" {
		store, err := sqlite.Open(cfg.HistoryPath)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.HistoryPath).Msg("history store unavailable, continuing without")
		} else {
			rec = store
			reader = store
			defer func() {
				if err := store.Close(); err != nil {
					log.Error().Err(err).Msg("close history store")
				}
			}()
		}
	}

	handler := app.NewHandler(conns, rooms, relay, bcast, rec, limiter)
	ctl := ws.NewController(handler, cfg.ReadLimit)

	r := router.SetupRouter(ctx, cfg, rooms, ctl, reader)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
