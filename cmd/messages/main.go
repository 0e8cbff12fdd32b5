package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/config"
	"github.com/lucasfdcampos/gastro-leads/internal/observability"
	"github.com/lucasfdcampos/gastro-leads/internal/outreach"
	"github.com/lucasfdcampos/gastro-leads/internal/source"
)

const defaultFiles = "restaurantes_raw_caba_20251015_171924.json,cafeterias_raw_caba_20251015_171932.json,bares_raw_caba_20251015_171909.json"

func main() {
	cfg := config.Load()

	files := flag.String("files", defaultFiles, "Respuestas JSON de DataForSEO, separadas por coma")
	dir := flag.String("dir", cfg.DataDir, "Directorio de los JSON y del CSV de salida")
	preview := flag.Int("preview", 3, "Mensajes a mostrar en el log")
	flag.Parse()

	observability.InitLogger("gastro-messages", cfg.Env)
	observability.SetLevel(cfg.LogLevel)

	lists, err := config.LoadLists(cfg.ListsFile)
	if err != nil {
		log.Error().Err(err).Msg("lists")
		os.Exit(1)
	}

	// one batch per file; the kind is the file name prefix (bares_raw_… → bares)
	var batches []outreach.Batch
	for _, f := range strings.Split(*files, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		ls, err := source.NewSnapshot(*dir, f).Fetch(context.Background(), source.Query{})
		if err != nil {
			log.Warn().Err(err).Str("file", f).Msg("skipped")
			continue
		}
		kind, _, _ := strings.Cut(filepath.Base(f), "_")
		batches = append(batches, outreach.Batch{Kind: kind, Listings: ls})
	}

	criteria := outreach.PalermoCriteria()
	drafts := outreach.NewGenerator(criteria, lists.Normalizer()).Generate(batches)

	path, err := outreach.WriteSheet(*dir, criteria.Neighborhood, drafts, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("write drafts")
		os.Exit(1)
	}

	for i, d := range drafts {
		if i >= *preview {
			break
		}
		log.Info().
			Str("title", d.Name).
			Str("kind", d.Kind).
			Str("phone", d.Phone).
			Float64("rating", d.Rating).
			Int("reviews", d.Reviews).
			Msg("draft\n" + d.Message)
	}

	byKind := make(map[string]int)
	for _, d := range drafts {
		byKind[d.Kind]++
	}
	ev := log.Info().Str("file", path).Int("drafts", len(drafts))
	for k, n := range byKind {
		ev = ev.Int(k, n)
	}
	ev.Msg("drafts written")
}
