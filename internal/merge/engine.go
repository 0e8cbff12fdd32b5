// Package merge consolidates freshly processed records into an existing store.
//
// Merge runs a fixed cascade of identity passes, each one over what the
// previous pass left:
//
//  1. external ID      last-seen wins (the fresh record replaces the stored one)
//  2. chain locality   every branch of a chain brand collapses to its best-rated location
//  3. name + phone     normalized title + raw phone
//  4. primary email    only in ModeSnapshot
//
// Whenever a pass has to pick one record out of a group it keeps the best
// ranked by (rating desc, review_count desc). Ties are broken by input order
// (existing before batch), so the outcome is deterministic.
package merge

import (
	"sort"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// Mode selects which passes of the cascade run.
type Mode int

const (
	// ModeAccumulate runs passes 1–3. Used when merging into the persistent store.
	ModeAccumulate Mode = iota
	// ModeSnapshot also collapses records sharing a primary email.
	ModeSnapshot
)

func (m Mode) String() string {
	switch m {
	case ModeSnapshot:
		return "snapshot"
	default:
		return "accumulate"
	}
}

// Keyer builds the identity keys the passes group on.
// *normalize.Normalizer satisfies it.
type Keyer interface {
	Title(title string) string
	PrimaryEmail(emails []string) string
}

// Engine runs the dedup cascade. It holds no state between calls.
type Engine struct {
	keys Keyer
	mode Mode
}

// New creates an Engine.
func New(keys Keyer, mode Mode) *Engine {
	return &Engine{keys: keys, mode: mode}
}

// Mode returns the cascade mode.
func (e *Engine) Mode() Mode { return e.mode }

// Merge consolidates existing ++ batch. Neither input is modified. It never
// fails: records with missing fields simply sit out the passes that need them.
func (e *Engine) Merge(existing, batch []domain.BusinessRecord) ([]domain.BusinessRecord, domain.MergeReport) {
	recs := make([]domain.BusinessRecord, 0, len(existing)+len(batch))
	recs = append(recs, existing...)
	recs = append(recs, batch...)

	report := domain.MergeReport{Input: len(recs)}

	recs, report.ByExternalID = byExternalID(recs)
	recs, report.ByChain = e.byChain(recs)
	recs, report.ByNamePhone = e.byNamePhone(recs)
	if e.mode == ModeSnapshot {
		recs, report.ByEmail = e.byEmail(recs)
	}

	SortByRank(recs)
	report.Output = len(recs)
	return recs, report
}

// ─── Passes ───────────────────────────────────────────────────────────────────

// byExternalID keeps the last record seen for every external ID, at the
// position of that last occurrence. Records without an ID pass through.
func byExternalID(recs []domain.BusinessRecord) ([]domain.BusinessRecord, int) {
	last := make(map[string]int, len(recs))
	for i, r := range recs {
		if r.ExternalID != "" {
			last[r.ExternalID] = i
		}
	}

	out := make([]domain.BusinessRecord, 0, len(last))
	for i, r := range recs {
		if r.ExternalID == "" || last[r.ExternalID] == i {
			out = append(out, r)
		}
	}
	return out, len(recs) - len(out)
}

// byChain collapses chain records sharing a normalized title to the best
// ranked one. Non-chain records and the survivors keep their relative order.
func (e *Engine) byChain(recs []domain.BusinessRecord) ([]domain.BusinessRecord, int) {
	var chain []int
	for i, r := range recs {
		if r.IsChain {
			chain = append(chain, i)
		}
	}
	if len(chain) < 2 {
		return recs, 0
	}

	sort.SliceStable(chain, func(a, b int) bool {
		return ranksBefore(recs[chain[a]], recs[chain[b]])
	})

	drop := make(map[int]bool)
	seen := make(map[string]bool)
	for _, i := range chain {
		key := e.keys.Title(recs[i].Title)
		if key == "" {
			continue
		}
		if seen[key] {
			drop[i] = true
			continue
		}
		seen[key] = true
	}

	out := make([]domain.BusinessRecord, 0, len(recs)-len(drop))
	for i, r := range recs {
		if !drop[i] {
			out = append(out, r)
		}
	}
	return out, len(drop)
}

// byNamePhone keeps the best ranked record per normalized title + raw phone.
// Records with no phone or no distinctive title are not grouped.
func (e *Engine) byNamePhone(recs []domain.BusinessRecord) ([]domain.BusinessRecord, int) {
	sorted := sortedCopy(recs)

	out := make([]domain.BusinessRecord, 0, len(sorted))
	seen := make(map[string]bool)
	for _, r := range sorted {
		title := e.keys.Title(r.Title)
		if title == "" || r.Phone == "" {
			out = append(out, r)
			continue
		}
		key := title + "|" + r.Phone
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out, len(recs) - len(out)
}

// byEmail keeps the best ranked record per primary email. Records without a
// plausible email are appended untouched after the grouped ones.
func (e *Engine) byEmail(recs []domain.BusinessRecord) ([]domain.BusinessRecord, int) {
	var withEmail, without []domain.BusinessRecord
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		if k := e.keys.PrimaryEmail(r.Emails); k != "" {
			withEmail = append(withEmail, r)
			keys = append(keys, k)
			continue
		}
		without = append(without, r)
	}

	idx := make([]int, len(withEmail))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ranksBefore(withEmail[idx[a]], withEmail[idx[b]])
	})

	out := make([]domain.BusinessRecord, 0, len(recs))
	seen := make(map[string]bool)
	for _, i := range idx {
		if seen[keys[i]] {
			continue
		}
		seen[keys[i]] = true
		out = append(out, withEmail[i])
	}
	out = append(out, without...)
	return out, len(recs) - len(out)
}

// ─── Ranking ──────────────────────────────────────────────────────────────────

// SortByRank stable-sorts recs by rating desc (absent last), then review
// count desc.
func SortByRank(recs []domain.BusinessRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return ranksBefore(recs[i], recs[j]) })
}

func sortedCopy(recs []domain.BusinessRecord) []domain.BusinessRecord {
	out := make([]domain.BusinessRecord, len(recs))
	copy(out, recs)
	SortByRank(out)
	return out
}

func ranksBefore(a, b domain.BusinessRecord) bool {
	switch {
	case a.Rating != nil && b.Rating == nil:
		return true
	case a.Rating == nil && b.Rating != nil:
		return false
	case a.Rating != nil && *a.Rating != *b.Rating:
		return *a.Rating > *b.Rating
	}
	return a.ReviewCount > b.ReviewCount
}
