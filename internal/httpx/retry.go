// Package httpx holds the retrying HTTP helper shared by every outbound client.
package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Policy configures DoWithRetry backoff.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy starts at 500 ms and caps at 30 s.
func DefaultPolicy(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

// DoWithRetry executes req with DefaultPolicy(maxRetries).
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	return DefaultPolicy(maxRetries).Do(ctx, client, req)
}

// Do executes an HTTP request with automatic retry on transient errors
// (429, 502, 503, 504 and network errors).
//
// Each attempt uses req.Clone(ctx); requests with a body are rewound through
// req.GetBody, which http.NewRequest sets for bytes/strings readers.
//
// Backoff doubles on each attempt. A Retry-After header (in seconds) is
// honoured when present.
func (p Policy) Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	delay := p.BaseDelay

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		clone := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("httpx: rewind body: %w", err)
			}
			clone.Body = body
		}

		resp, err := client.Do(clone)
		if err != nil {
			if attempt == p.MaxRetries || ctx.Err() != nil {
				return nil, err
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = p.capDelay(delay * 2)
			continue
		}

		if !retryable(resp.StatusCode) {
			return resp, nil
		}

		resp.Body.Close()
		if attempt == p.MaxRetries {
			return nil, fmt.Errorf("httpx: HTTP %d after %d retries: %s", resp.StatusCode, p.MaxRetries, req.URL)
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				delay = p.capDelay(time.Duration(secs) * time.Second)
			}
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = p.capDelay(delay * 2)
	}

	return nil, fmt.Errorf("httpx: max retries exceeded: %s", req.URL)
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p Policy) capDelay(d time.Duration) time.Duration {
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
