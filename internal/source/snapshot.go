package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// Snapshot replays previously saved provider responses.
type Snapshot struct {
	Paths []string
}

// NewSnapshot reads files, resolving relative names against dir.
func NewSnapshot(dir string, files ...string) *Snapshot {
	s := &Snapshot{}
	for _, f := range files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(dir, f)
		}
		s.Paths = append(s.Paths, f)
	}
	return s
}

func (s *Snapshot) Name() string { return "snapshot" }

// Fetch loads every file, skipping the ones that are missing or unparseable,
// then returns the most popular q.Limit listings (all when Limit <= 0).
// Categories and coordinates in q are not applied; the files were already
// filtered by the search that produced them.
func (s *Snapshot) Fetch(ctx context.Context, q Query) ([]domain.Listing, error) {
	var all []domain.Listing
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			log.Warn().Str("file", p).Err(err).Msg("snapshot not found, skipping")
			continue
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Str("file", p).Err(err).Msg("snapshot unreadable, skipping")
			continue
		}
		items := env.items()
		log.Info().Str("file", filepath.Base(p)).Int("listings", len(items)).Msg("snapshot loaded")
		all = append(all, items...)
	}

	SortByPopularity(all)
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return all, nil
}
