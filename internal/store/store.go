// Package store persists the consolidated business database.
//
// Two backends implement Store:
//   - FileStore  – CSV (with UTF-8 BOM, for spreadsheets) + a JSON mirror
//   - MongoStore – collection "records" in database "gastro_leads", plus the
//     run log and the contacts L2 cache
//
// Both rewrite the whole record set on Save; nothing is appended in place.
package store

import (
	"context"
	"errors"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// ErrCorrupt is returned when a store exists but cannot be read. Callers must
// not treat it as an empty store.
var ErrCorrupt = errors.New("store: corrupt")

// Store loads and replaces the consolidated record set.
type Store interface {
	// Load returns every stored record; an absent store yields an empty slice.
	Load(ctx context.Context) ([]domain.BusinessRecord, error)
	// Save replaces the stored set with recs and returns its statistics.
	Save(ctx context.Context, recs []domain.BusinessRecord) (domain.Stats, error)
}

// Deriver recomputes derived record flags. *normalize.Normalizer satisfies it.
type Deriver interface {
	Derive(rec *domain.BusinessRecord)
}

func derive(d Deriver, recs []domain.BusinessRecord) {
	if d == nil {
		return
	}
	for i := range recs {
		d.Derive(&recs[i])
	}
}
