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

	"github.com/quillgit/trader-pos-sub000/internal/config"
	"github.com/quillgit/trader-pos-sub000/internal/ledger"
	"github.com/quillgit/trader-pos-sub000/internal/outbox"
	"github.com/quillgit/trader-pos-sub000/internal/payroll"
	"github.com/quillgit/trader-pos-sub000/internal/remote"
	"github.com/quillgit/trader-pos-sub000/internal/router"
	"github.com/quillgit/trader-pos-sub000/internal/service"
	"github.com/quillgit/trader-pos-sub000/internal/store"
	syncengine "github.com/quillgit/trader-pos-sub000/internal/sync"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	st, err := store.Open(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DataPath).Msg("failed to open local store")
	}

	client := remote.NewClient(cfg.RemoteEndpoint, time.Duration(cfg.RemoteTimeout)*time.Second)
	queue := outbox.New(st, client, outbox.WithMaxRetries(cfg.MaxRetries))
	engine := syncengine.New(st, queue, client,
		syncengine.WithSchedules(cfg.PullSchedule, cfg.DrainSchedule))

	sessions := ledger.New(st, queue)
	writer := service.New(st, queue, sessions)
	proc := payroll.New(st)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.Start(ctx)
	defer engine.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler: router.New(cfg, st, sessions, writer, proc, engine),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("local API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
