package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/cache"
	"github.com/lucasfdcampos/gastro-leads/internal/config"
	"github.com/lucasfdcampos/gastro-leads/internal/enrichment"
	"github.com/lucasfdcampos/gastro-leads/internal/publish"
	"github.com/lucasfdcampos/gastro-leads/internal/source"
	"github.com/lucasfdcampos/gastro-leads/internal/store"
)

// Options selects what Wire builds on top of the environment.
type Options struct {
	// Snapshot reads saved responses instead of calling the provider.
	Snapshot      bool
	SnapshotDir   string
	SnapshotFiles []string

	Query source.Query

	// SkipEnrichment disables website fetching altogether.
	SkipEnrichment bool
	// WhatsApp enables number extraction during enrichment.
	WhatsApp bool
}

// Deps is a wired Config plus the live clients behind it.
type Deps struct {
	Config Config
	Redis  *cache.Client
	Mongo  *store.MongoStore
}

// Close releases the clients.
func (d *Deps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.Mongo.Disconnect(ctx)
		cancel()
	}
}

// Wire connects the optional backends named by cfg and assembles a pipeline
// Config. Redis, MongoDB and S3 that are configured but unreachable are
// logged and left out; the run goes on without them.
func Wire(ctx context.Context, cfg config.Config, lists config.Lists, opts Options) *Deps {
	norm := lists.Normalizer()
	d := &Deps{}

	// ─── Redis ────────────────────────────────────────────────────────────────
	if cfg.RedisAddr != "" {
		rc := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rc.Ping(pctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis not available, caching disabled")
			_ = rc.Close()
		} else {
			d.Redis = rc
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
		}
		cancel()
	}

	// ─── MongoDB ──────────────────────────────────────────────────────────────
	if cfg.MongoURI != "" {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		ms, err := store.NewMongo(mctx, cfg.MongoURI, norm)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("mongodb not available, mirror and run log disabled")
		} else {
			d.Mongo = ms
			log.Info().Msg("mongodb connected")
		}
	}

	// ─── Source ───────────────────────────────────────────────────────────────
	var src source.Source
	if opts.Snapshot {
		src = source.NewSnapshot(opts.SnapshotDir, opts.SnapshotFiles...)
	} else {
		live := source.NewDataForSEO(cfg.DataForSEOLogin, cfg.DataForSEOPassword, cfg.DataForSEOURL)
		if d.Redis != nil {
			src = source.NewCached(live, d.Redis)
		} else {
			src = live
		}
	}

	pc := Config{
		Source:     src,
		Query:      opts.Query,
		Normalizer: norm,
		Store:      store.NewFileStore(cfg.DataDir, store.ConsolidatedName, norm),
		DataDir:    cfg.DataDir,
	}

	// ─── Enrichment ───────────────────────────────────────────────────────────
	if !opts.SkipEnrichment {
		e := enrichment.New(
			enrichment.NewHTTPFetcher(cfg.FetchTimeout),
			enrichment.NewExtractor(norm),
			enrichment.Options{Workers: cfg.Workers, Delay: cfg.Delay, WhatsApp: opts.WhatsApp},
		)
		if cfg.Browser && opts.WhatsApp {
			e.WithBrowser(enrichment.NewBrowserFetcher())
		}
		// plain interface values: a nil *cache.Client must not become a
		// non-nil interface
		var l1 enrichment.ContactCache
		var l2 enrichment.ContactStore
		if d.Redis != nil {
			l1 = d.Redis
		}
		if d.Mongo != nil {
			l2 = d.Mongo
		}
		pc.Enricher = e.WithCache(l1, l2)
	}

	if d.Mongo != nil {
		pc.Mirror = d.Mongo
		pc.Runs = d.Mongo
	}

	// ─── S3 ───────────────────────────────────────────────────────────────────
	if cfg.ArtifactBucket != "" {
		p, err := publish.NewS3(ctx, cfg.ArtifactBucket, cfg.AWSRegion, "runs")
		if err != nil {
			log.Warn().Err(err).Msg("s3 not available, artifacts stay local")
		} else {
			pc.Publisher = p
		}
	}

	d.Config = pc
	return d
}

// SearchKey is the listing cache key of the wired source and query.
func (d *Deps) SearchKey() string {
	q := d.Config.Query
	return cache.SearchKey(d.Config.Source.Name(), q.Categories, q.MinRating, q.Limit, q.Location())
}
