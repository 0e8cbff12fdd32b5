package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/api"
	"github.com/lucasfdcampos/gastro-leads/internal/config"
	"github.com/lucasfdcampos/gastro-leads/internal/domain"
	"github.com/lucasfdcampos/gastro-leads/internal/observability"
	"github.com/lucasfdcampos/gastro-leads/internal/pipeline"
	"github.com/lucasfdcampos/gastro-leads/internal/source"
)

func main() {
	cfg := config.Load()
	observability.InitLogger("gastro-api", cfg.Env)
	observability.SetLevel(cfg.LogLevel)

	lists, err := config.LoadLists(cfg.ListsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("lists")
	}

	deps := pipeline.Wire(context.Background(), cfg, lists, pipeline.Options{
		Query:    source.DefaultQuery(),
		WhatsApp: true,
	})
	defer deps.Close()

	// a run is bound to the request that started it
	runner := func(ctx context.Context) (*domain.RunSummary, error) {
		return pipeline.RunAccumulate(ctx, deps.Config)
	}

	// ─── HTTP server ──────────────────────────────────────────────────────────
	handler := api.NewHandler(deps.Config.Store, runner)
	if deps.Mongo != nil {
		handler.WithHistory(deps.Mongo)
	}
	if deps.Redis != nil {
		handler.WithSearchCache(deps.Redis, deps.SearchKey())
	}
	srv := api.NewServer(cfg.Addr, handler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Info().Err(err).Msg("server stopped")
		}
	}()

	<-quit
	log.Info().Msg("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("bye")
}
