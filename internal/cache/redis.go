// Package cache provides a Redis-backed caching layer.
//
// Key strategy:
//   - Listing searches:  gastro:search:v1:{sha256(source+categories+filters)} → TTL 24 h
//   - Website contacts:  gastro:contact:v1:{sha256(normalized url)}            → TTL 7 d
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

const (
	SearchTTL  = 24 * time.Hour
	ContactTTL = 7 * 24 * time.Hour

	searchPrefix  = "gastro:search:v1:"
	contactPrefix = "gastro:contact:v1:"
)

// Client wraps redis.Client with domain-aware helpers.
type Client struct {
	rdb *redis.Client
}

// New creates a new cache Client.
// addr example: "localhost:6379"
func New(addr, password string, db int) *Client {
	return NewFromRedis(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// NewFromRedis wraps an existing client.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }

// ─── Search cache ─────────────────────────────────────────────────────────────

// SearchKey returns the cache key for a listing search. Category order does
// not matter.
func SearchKey(source string, categories []string, minRating float64, limit int, location string) string {
	cats := append([]string(nil), categories...)
	sort.Strings(cats)
	raw := fmt.Sprintf("%s|%s|min=%.2f|limit=%d|loc=%s", source, strings.Join(cats, ","), minRating, limit, location)
	return searchPrefix + hash(raw)
}

// GetListings returns cached listings, or nil on miss.
func (c *Client) GetListings(ctx context.Context, key string) ([]domain.Listing, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}
	var out []domain.Listing
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetListings stores listings with SearchTTL.
func (c *Client) SetListings(ctx context.Context, key string, listings []domain.Listing) error {
	b, err := json.Marshal(listings)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, SearchTTL).Err()
}

// DeleteSearch removes a search cache entry.
func (c *Client) DeleteSearch(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// ─── Contact cache ────────────────────────────────────────────────────────────

// ContactKey returns the cache key for the contacts of one website. Scheme,
// "www." and trailing slashes are ignored.
func ContactKey(rawURL string) string {
	return contactPrefix + hash(canonicalURL(rawURL))
}

// GetContacts returns cached contacts for a website, or nil on miss.
func (c *Client) GetContacts(ctx context.Context, key string) (*domain.Contacts, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ct domain.Contacts
	if err := json.Unmarshal(val, &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

// SetContacts stores contacts with ContactTTL.
func (c *Client) SetContacts(ctx context.Context, key string, ct domain.Contacts) error {
	b, err := json.Marshal(ct)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ContactTTL).Err()
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func hash(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.EscapedPath(), "/") + queryPart(u)
}

func queryPart(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}
