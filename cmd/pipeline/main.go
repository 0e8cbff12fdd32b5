package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/config"
	"github.com/lucasfdcampos/gastro-leads/internal/observability"
	"github.com/lucasfdcampos/gastro-leads/internal/pipeline"
	"github.com/lucasfdcampos/gastro-leads/internal/source"
)

// Saved DataForSEO responses read by -mode snapshot.
const defaultSnapshotFiles = "restaurantes_raw_caba_20251015_171924.json,bares_raw_caba_20251015_171909.json,cafeterias_raw_caba_20251015_171932.json"

type options struct {
	mode           string
	categories     string
	limit          int
	minRating      float64
	snapshotDir    string
	snapshotFiles  string
	onlyWithEmail  bool
	skipEnrichment bool
	skipWhatsApp   bool
}

func main() {
	cfg := config.Load()

	var o options
	flag.StringVar(&o.categories, "categories", "bares,restaurantes,cafeterias", "Grupos de categorías a buscar (bares, restaurantes, cafeterias)")
	flag.IntVar(&o.limit, "limit", 0, "Límite de resultados (accumulate: 1000 máx., snapshot: 3000 por defecto)")
	flag.Float64Var(&o.minRating, "min-rating", 3.0, "Rating mínimo")
	flag.StringVar(&o.mode, "mode", "accumulate", "accumulate | snapshot")
	flag.StringVar(&o.snapshotFiles, "snapshot-files", defaultSnapshotFiles, "Archivos JSON para -mode snapshot, separados por coma")
	flag.StringVar(&o.snapshotDir, "snapshot-dir", "", "Directorio de los JSON (por defecto -data-dir)")
	flag.BoolVar(&o.onlyWithEmail, "only-with-email", false, "Snapshot: conservar solo registros con email")
	flag.BoolVar(&o.skipEnrichment, "skip-enrichment", false, "No visitar los sitios web")
	flag.BoolVar(&o.skipWhatsApp, "skip-whatsapp", false, "No extraer WhatsApp")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directorio de la base consolidada")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Sitios web procesados en paralelo")
	flag.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Pausa entre requests por worker")
	flag.BoolVar(&cfg.Browser, "browser", cfg.Browser, "Usar Chrome headless para widgets de WhatsApp")
	flag.Parse()

	observability.InitLogger("gastro-pipeline", cfg.Env)
	observability.SetLevel(cfg.LogLevel)

	if err := run(cfg, o); err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		os.Exit(1)
	}
}

func run(cfg config.Config, o options) error {
	if o.mode != "accumulate" && o.mode != "snapshot" {
		return fmt.Errorf("unknown mode %q", o.mode)
	}
	snapshot := o.mode == "snapshot"

	lists, err := config.LoadLists(cfg.ListsFile)
	if err != nil {
		return err
	}

	cats, err := source.ExpandCategories(splitList(o.categories))
	if err != nil {
		return err
	}
	q := source.DefaultQuery()
	q.Categories = cats
	q.MinRating = o.minRating
	q.Limit = o.limit
	if !snapshot && q.Limit <= 0 {
		q.Limit = source.MaxLimit
	}

	snapshotDir := o.snapshotDir
	if snapshotDir == "" {
		snapshotDir = cfg.DataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := pipeline.Wire(ctx, cfg, lists, pipeline.Options{
		Snapshot:       snapshot,
		SnapshotDir:    snapshotDir,
		SnapshotFiles:  splitList(o.snapshotFiles),
		Query:          q,
		SkipEnrichment: o.skipEnrichment,
		// the snapshot run only looks for emails
		WhatsApp: !snapshot && !o.skipWhatsApp,
	})
	defer deps.Close()

	log.Info().
		Str("mode", o.mode).
		Strs("categories", cats).
		Int("limit", q.Limit).
		Float64("min_rating", q.MinRating).
		Int("workers", cfg.Workers).
		Dur("delay", cfg.Delay).
		Msg("starting pipeline")

	if snapshot {
		_, err = pipeline.RunSnapshot(ctx, deps.Config, pipeline.SnapshotOptions{OnlyWithEmail: o.onlyWithEmail})
	} else {
		_, err = pipeline.RunAccumulate(ctx, deps.Config)
	}
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
