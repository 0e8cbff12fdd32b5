// Package pipeline orchestrates a full lead run.
//
// Accumulating run (RunAccumulate):
//  1. Load      – read the consolidated store; a corrupt store aborts the run
//  2. Discovery – fetch listings from the configured source
//  3. Enrich    – contacts from each business website, in checkpoint chunks
//  4. Merge     – dedup everything processed so far against the store (merge.ModeAccumulate)
//  5. Persist   – save after every chunk, then mirror, publish and log the run
//
// Snapshot run (RunSnapshot) does 2–5 once over saved JSON responses, with the
// email pass enabled, into a fresh timestamped file.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
	"github.com/lucasfdcampos/gastro-leads/internal/merge"
	"github.com/lucasfdcampos/gastro-leads/internal/source"
	"github.com/lucasfdcampos/gastro-leads/internal/store"
)

const (
	// DefaultCheckpoint is how many listings are processed between saves.
	DefaultCheckpoint = 10
	// DefaultSnapshotLimit caps the listings of a snapshot run.
	DefaultSnapshotLimit = 3000
)

// Normalizer builds records and identity keys. *normalize.Normalizer satisfies it.
type Normalizer interface {
	merge.Keyer
	store.Deriver
	FromListing(l domain.Listing, at time.Time) domain.BusinessRecord
}

// Enricher fills record contacts in place. *enrichment.Enricher satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, recs []domain.BusinessRecord) int
}

// RunLog persists run summaries. *store.MongoStore satisfies it.
type RunLog interface {
	SaveRun(ctx context.Context, run domain.RunSummary) error
}

// Publisher uploads output files. *publish.S3Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, runID string, files ...string) ([]string, error)
}

// Config holds injectable dependencies. Enricher, Mirror, Runs and
// Publisher are optional; Mirror is only used by the accumulating run.
type Config struct {
	Source     source.Source
	Query      source.Query
	Normalizer Normalizer
	Enricher   Enricher

	// Store is the consolidated store of the accumulating run.
	Store store.Store
	// Mirror receives a copy of the final record set (e.g. MongoDB).
	Mirror store.Store
	Runs   RunLog
	// Publisher uploads the files of the store (when it has any).
	Publisher Publisher

	// DataDir is where snapshot runs write their output.
	DataDir string
	// Checkpoint is the number of listings between saves (default 10).
	Checkpoint int

	// Now is overridable for tests.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// SnapshotOptions tunes RunSnapshot.
type SnapshotOptions struct {
	// OnlyWithEmail drops records without an email from the output.
	OnlyWithEmail bool
}

// ─── Accumulating run ─────────────────────────────────────────────────────────

// RunAccumulate merges a fresh listing batch into the consolidated store.
// Listing fetch failures abort before anything is written. If ctx is
// cancelled mid-run the last checkpoint stays on disk and ctx.Err() is
// returned.
func RunAccumulate(ctx context.Context, cfg Config) (*domain.RunSummary, error) {
	start := cfg.now()
	run := &domain.RunSummary{
		ID:        uuid.NewString(),
		Mode:      merge.ModeAccumulate.String(),
		StartedAt: start,
	}
	logger := log.With().Str("run_id", run.ID).Str("mode", run.Mode).Logger()

	// ── Phase 1: Load ───────────────────────────────────────────────────────
	existing, err := cfg.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load store: %w", err)
	}
	logger.Info().Int("records", len(existing)).Msg("store loaded")

	// ── Phase 2: Discovery ──────────────────────────────────────────────────
	listings, err := cfg.Source.Fetch(ctx, cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch %s: %w", cfg.Source.Name(), err)
	}
	run.Listings = len(listings)
	logger.Info().Str("source", cfg.Source.Name()).Int("listings", len(listings)).Msg("listings fetched")

	every := cfg.Checkpoint
	if every <= 0 {
		every = DefaultCheckpoint
	}
	engine := merge.New(cfg.Normalizer, merge.ModeAccumulate)

	// ── Phases 3–5 per checkpoint ───────────────────────────────────────────
	// Every checkpoint merges the store as loaded with all records processed
	// so far, so each cascade pass sees the whole batch. An empty batch still
	// goes through one merge+save so the store is created and re-derived on
	// first use.
	processed := make([]domain.BusinessRecord, 0, len(listings))
	merged := existing
	for lo := 0; lo == 0 || lo < len(listings); lo += every {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		hi := min(lo+every, len(listings))
		batch := buildRecords(cfg.Normalizer, listings[lo:hi], cfg.now())
		if cfg.Enricher != nil {
			run.Enriched += cfg.Enricher.Enrich(ctx, batch)
		}
		processed = append(processed, batch...)

		var rep domain.MergeReport
		merged, rep = engine.Merge(existing, processed)
		run.Report = rep

		st, err := cfg.Store.Save(ctx, merged)
		if err != nil {
			return run, fmt.Errorf("pipeline: save store: %w", err)
		}
		run.Stats = st
		logger.Info().Int("processed", hi).Int("total", len(listings)).Int("records", len(merged)).Msg("checkpoint saved")
	}

	if cfg.Mirror != nil {
		if _, err := cfg.Mirror.Save(ctx, merged); err != nil {
			logger.Warn().Err(err).Msg("mirror save failed")
		}
	}

	finish(ctx, cfg, run, cfg.Store, start, logger)
	return run, nil
}

// ─── Snapshot run ─────────────────────────────────────────────────────────────

// RunSnapshot builds a standalone email list from saved listings. Nothing is
// merged with the consolidated store. The output lands in
// DataDir/emails_extraidos_<timestamp>.{csv,json}.
func RunSnapshot(ctx context.Context, cfg Config, opts SnapshotOptions) (*domain.RunSummary, error) {
	start := cfg.now()
	run := &domain.RunSummary{
		ID:        uuid.NewString(),
		Mode:      merge.ModeSnapshot.String(),
		StartedAt: start,
	}
	logger := log.With().Str("run_id", run.ID).Str("mode", run.Mode).Logger()

	q := cfg.Query
	if q.Limit <= 0 {
		q.Limit = DefaultSnapshotLimit
	}
	listings, err := cfg.Source.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetch %s: %w", cfg.Source.Name(), err)
	}
	run.Listings = len(listings)
	logger.Info().Str("source", cfg.Source.Name()).Int("listings", len(listings)).Msg("listings loaded")

	recs := buildRecords(cfg.Normalizer, listings, cfg.now())
	if cfg.Enricher != nil {
		run.Enriched = cfg.Enricher.Enrich(ctx, recs)
	}
	if err := ctx.Err(); err != nil {
		return run, err
	}

	merged, rep := merge.New(cfg.Normalizer, merge.ModeSnapshot).Merge(nil, recs)
	run.Report = rep

	if opts.OnlyWithEmail {
		kept := merged[:0]
		for _, r := range merged {
			if r.HasEmail() {
				kept = append(kept, r)
			}
		}
		logger.Info().Int("dropped", len(merged)-len(kept)).Msg("records without email dropped")
		merged = kept
	}
	run.Report.Output = len(merged)

	out := store.NewFileStore(cfg.DataDir, store.SnapshotName(start), cfg.Normalizer)
	st, err := out.Save(ctx, merged)
	if err != nil {
		return run, fmt.Errorf("pipeline: save snapshot: %w", err)
	}
	run.Stats = st

	finish(ctx, cfg, run, out, start, logger)
	return run, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func buildRecords(n Normalizer, listings []domain.Listing, at time.Time) []domain.BusinessRecord {
	recs := make([]domain.BusinessRecord, 0, len(listings))
	for _, l := range listings {
		recs = append(recs, n.FromListing(l, at))
	}
	return recs
}

type pathed interface {
	Paths() []string
}

// finish runs the best-effort tail of a run: publish, then the run log.
// Failures here are logged and never fail the run.
func finish(ctx context.Context, cfg Config, run *domain.RunSummary, out store.Store, start time.Time, logger zerolog.Logger) {
	if p, ok := out.(pathed); ok {
		run.Outputs = p.Paths()
	}

	if cfg.Publisher != nil && len(run.Outputs) > 0 {
		if keys, err := cfg.Publisher.Publish(ctx, run.ID, run.Outputs...); err != nil {
			logger.Warn().Err(err).Msg("publish failed")
		} else {
			run.Outputs = append(run.Outputs, keys...)
		}
	}

	run.DurationMs = cfg.now().Sub(start).Milliseconds()

	if cfg.Runs != nil {
		if err := cfg.Runs.SaveRun(ctx, *run); err != nil {
			logger.Warn().Err(err).Msg("run log failed")
		}
	}

	logger.Info().
		Int("listings", run.Listings).
		Int("enriched", run.Enriched).
		Int("removed", run.Report.Removed()).
		Int("records", run.Report.Output).
		Int64("duration_ms", run.DurationMs).
		Msg("run finished")
}
