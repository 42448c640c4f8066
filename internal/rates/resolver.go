// Package rates resolves currency exchange rates. The scheduling and
// evaluation core treats the resolver as a collaborator: it consumes an
// already-resolved numeric rate and never retries on its behalf.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"finledger/internal/cache"
	"finledger/internal/core"
)

// Resolver returns the multiplier converting one unit of from into to.
type Resolver interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// HTTPResolver queries a fastforex-style fetch-all endpoint and derives the
// cross rate from the two quoted values.
type HTTPResolver struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPResolver(baseURL, apiKey string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type fetchAllResponse struct {
	Results map[string]float64 `json:"results"`
}

func (r *HTTPResolver) Rate(ctx context.Context, from, to string) (float64, error) {
	endpoint := fmt.Sprintf("%s/fetch-all?api_key=%s", r.baseURL, url.QueryEscape(r.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", core.ErrRateUnavailable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d", core.ErrRateUnavailable, resp.StatusCode)
	}

	var body fetchAllResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", core.ErrRateUnavailable, err)
	}

	fromRate, okFrom := body.Results[from]
	toRate, okTo := body.Results[to]
	if !okFrom || !okTo || fromRate == 0 {
		return 0, fmt.Errorf("%w: no quote for %s -> %s", core.ErrRateUnavailable, from, to)
	}

	return toRate / fromRate, nil
}

// CachingResolver memoizes quotes from the wrapped resolver. Failures are
// not cached, so a transient outage clears on the next lookup.
type CachingResolver struct {
	next  Resolver
	cache *cache.LRUCache[float64]
}

func NewCachingResolver(next Resolver, maxSize int, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: cache.NewLRUCache[float64](maxSize, ttl),
	}
}

func (c *CachingResolver) Rate(ctx context.Context, from, to string) (float64, error) {
	key := from + "/" + to
	if rate, ok := c.cache.Get(key); ok {
		return rate, nil
	}

	rate, err := c.next.Rate(ctx, from, to)
	if err != nil {
		return 0, err
	}
	c.cache.Set(key, rate)
	return rate, nil
}

// StaticResolver serves rates from a fixed table. Lookup key is "FROM/TO";
// same-currency pairs resolve to 1 without a table entry.
type StaticResolver struct {
	Rates map[string]float64
}

func (s StaticResolver) Rate(_ context.Context, from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	rate, ok := s.Rates[from+"/"+to]
	if !ok {
		return 0, fmt.Errorf("%w: no quote for %s -> %s", core.ErrRateUnavailable, from, to)
	}
	return rate, nil
}
