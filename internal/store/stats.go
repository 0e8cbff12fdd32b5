package store

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// ComputeStats summarises recs. Percentages on an empty set are 0.
func ComputeStats(recs []domain.BusinessRecord) domain.Stats {
	var st domain.Stats
	var ratingSum float64
	var reviewSum int

	st.Total = len(recs)
	for _, r := range recs {
		if r.HasEmail() {
			st.WithEmail++
		}
		if r.HasWhatsApp() {
			st.WithWhatsApp++
		}
		if r.HasOwnWebsite {
			st.WithOwnWebsite++
		}
		if r.IsChain {
			st.Chains++
		}
		if r.Rating != nil {
			st.Rated++
			ratingSum += *r.Rating
		}
		reviewSum += r.ReviewCount
	}
	if st.Rated > 0 {
		st.MeanRating = ratingSum / float64(st.Rated)
	}
	if st.Total > 0 {
		st.MeanReviews = float64(reviewSum) / float64(st.Total)
	}
	return st
}

// DomainCount is one row of TopEmailDomains.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// TopEmailDomains counts the domains of every stored address and returns the
// n most frequent, ties broken alphabetically.
func TopEmailDomains(recs []domain.BusinessRecord, n int) []DomainCount {
	counts := make(map[string]int)
	for _, r := range recs {
		for _, e := range r.Emails {
			if _, d, ok := strings.Cut(strings.ToLower(e), "@"); ok && d != "" {
				counts[d]++
			}
		}
	}

	out := make([]DomainCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, DomainCount{Domain: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// LogStats reports a saved store to the operator log.
func LogStats(where string, st domain.Stats, recs []domain.BusinessRecord) {
	ev := log.Info().
		Str("store", where).
		Int("total", st.Total).
		Int("with_email", st.WithEmail).
		Float64("email_pct", st.EmailPct()).
		Int("with_whatsapp", st.WithWhatsApp).
		Float64("whatsapp_pct", st.WhatsAppPct()).
		Int("own_website", st.WithOwnWebsite).
		Int("chains", st.Chains).
		Float64("chain_pct", st.ChainPct())
	if st.Rated > 0 {
		ev = ev.Float64("mean_rating", st.MeanRating)
	}
	ev.Float64("mean_reviews", st.MeanReviews).Msg("store saved")

	for _, dc := range TopEmailDomains(recs, 5) {
		log.Debug().Str("domain", dc.Domain).Int("count", dc.Count).Msg("top email domain")
	}
}
