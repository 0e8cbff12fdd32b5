package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
	"github.com/lucasfdcampos/gastro-leads/internal/httpx"
)

// DefaultDataForSEOURL is the production API host.
const DefaultDataForSEOURL = "https://api.dataforseo.com"

const searchPath = "/v3/business_data/business_listings/search/live"

// DataForSEO searches claimed business listings through the live endpoint.
type DataForSEO struct {
	Login    string
	Password string
	BaseURL  string

	client *http.Client
	retry  httpx.Policy
}

// NewDataForSEO creates a client. baseURL may be empty for production.
func NewDataForSEO(login, password, baseURL string) *DataForSEO {
	if baseURL == "" {
		baseURL = DefaultDataForSEOURL
	}
	return &DataForSEO{
		Login:    login,
		Password: password,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 120 * time.Second},
		retry:    httpx.DefaultPolicy(2),
	}
}

func (d *DataForSEO) Name() string { return "dataforseo" }

type searchTask struct {
	LocationCoordinate string   `json:"location_coordinate"`
	Categories         []string `json:"categories"`
	IsClaimed          bool     `json:"is_claimed"`
	Filters            [][]any  `json:"filters,omitempty"`
	OrderBy            []string `json:"order_by"`
	Limit              int      `json:"limit"`
}

// Fetch runs one search. Limit is clamped to MaxLimit.
func (d *DataForSEO) Fetch(ctx context.Context, q Query) ([]domain.Listing, error) {
	if d.Login == "" || d.Password == "" {
		return nil, fmt.Errorf("source: dataforseo: credentials not configured")
	}

	limit := q.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	task := searchTask{
		LocationCoordinate: q.Location(),
		Categories:         q.Categories,
		IsClaimed:          true,
		OrderBy:            []string{"rating.votes_count,desc"},
		Limit:              limit,
	}
	if q.MinRating > 0 {
		task.Filters = [][]any{{"rating.value", ">", q.MinRating}}
	}

	body, err := json.Marshal([]searchTask{task})
	if err != nil {
		return nil, fmt.Errorf("source: dataforseo: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source: dataforseo: %w", err)
	}
	req.SetBasicAuth(d.Login, d.Password)
	req.Header.Set("Content-Type", "application/json")

	log.Info().
		Strs("categories", q.Categories).
		Int("limit", limit).
		Float64("min_rating", q.MinRating).
		Str("location", task.LocationCoordinate).
		Msg("searching listings")

	resp, err := d.retry.Do(ctx, d.client, req)
	if err != nil {
		return nil, fmt.Errorf("source: dataforseo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: dataforseo HTTP %d", ErrProvider, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("source: dataforseo: decode: %w", err)
	}
	if env.StatusCode != okStatus {
		return nil, fmt.Errorf("%w: dataforseo %d %s", ErrProvider, env.StatusCode, env.StatusMessage)
	}

	items := env.items()
	log.Info().Int("listings", len(items)).Msg("listings found")
	return items, nil
}
