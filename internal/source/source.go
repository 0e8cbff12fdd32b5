// Package source fetches raw business listings: live from the DataForSEO
// business-listings API, from saved JSON responses, or through the Redis
// listing cache.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// ErrProvider is returned when the provider answers but reports a failure.
var ErrProvider = errors.New("source: provider error")

// Source is implemented by every listing origin.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]domain.Listing, error)
}

// Query describes one listing search around a coordinate.
type Query struct {
	Categories []string
	Limit      int
	MinRating  float64
	Lat        float64
	Lon        float64
	RadiusKm   float64
}

// CABA centre and search radius.
const (
	CABALat      = -34.6037
	CABALon      = -58.3816
	CABARadiusKm = 20
)

// MaxLimit is the provider's per-request ceiling.
const MaxLimit = 1000

// DefaultQuery searches the whole city for every category group.
func DefaultQuery() Query {
	cats, _ := ExpandCategories([]string{"bares", "restaurantes", "cafeterias"})
	return Query{
		Categories: cats,
		Limit:      MaxLimit,
		MinRating:  3.0,
		Lat:        CABALat,
		Lon:        CABALon,
		RadiusKm:   CABARadiusKm,
	}
}

// Location renders the "lat,lon,radius" coordinate string.
func (q Query) Location() string {
	return strconv.FormatFloat(q.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(q.Lon, 'f', -1, 64) + "," +
		strconv.FormatFloat(q.RadiusKm, 'f', -1, 64)
}

// ─── Categories ───────────────────────────────────────────────────────────────

// CategoryGroups maps the CLI category groups to provider categories.
var CategoryGroups = map[string][]string{
	"bares":        {"bar", "pub", "wine_bar", "cocktail_bar", "sports_bar"},
	"restaurantes": {"restaurant", "meal_takeaway", "meal_delivery"},
	"cafeterias":   {"cafe", "coffee_shop"},
}

// ExpandCategories flattens groups into provider categories, keeping order
// and dropping repeats.
func ExpandCategories(groups []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, g := range groups {
		cats, ok := CategoryGroups[g]
		if !ok {
			return nil, fmt.Errorf("source: unknown category group %q", g)
		}
		for _, c := range cats {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// ─── Response envelope ────────────────────────────────────────────────────────

// okStatus is the provider's success code.
const okStatus = 20000

// envelope is the shape shared by live responses and saved snapshots.
type envelope struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Result        []struct {
			Items []domain.Listing `json:"items"`
		} `json:"result"`
	} `json:"tasks"`
}

// items collects result[0].items of every task.
func (e envelope) items() []domain.Listing {
	var out []domain.Listing
	for _, t := range e.Tasks {
		if len(t.Result) > 0 {
			out = append(out, t.Result[0].Items...)
		}
	}
	return out
}

// SortByPopularity stable-sorts listings by rating value desc, then vote
// count desc. A missing rating counts as 0.
func SortByPopularity(ls []domain.Listing) {
	value := func(l domain.Listing) float64 {
		if v := l.RatingValue(); v != nil {
			return *v
		}
		return 0
	}
	sort.SliceStable(ls, func(i, j int) bool {
		vi, vj := value(ls[i]), value(ls[j])
		if vi != vj {
			return vi > vj
		}
		return ls[i].Votes() > ls[j].Votes()
	})
}
