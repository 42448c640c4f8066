package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finledger/internal/core"
)

func TestHTTPResolverCrossRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": {"USD": 1.0, "EUR": 0.5, "GBP": 0.25}}`))
	}))
	defer srv.Close()

	resolver := NewHTTPResolver(srv.URL, "test-key")

	rate, err := resolver.Rate(context.Background(), "EUR", "GBP")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate != 0.5 {
		t.Fatalf("expected cross rate 0.5, got %v", rate)
	}
}

func TestHTTPResolverUnknownCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results": {"USD": 1.0}}`))
	}))
	defer srv.Close()

	resolver := NewHTTPResolver(srv.URL, "k")
	_, err := resolver.Rate(context.Background(), "USD", "XXX")
	if !errors.Is(err, core.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestHTTPResolverServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := NewHTTPResolver(srv.URL, "k")
	_, err := resolver.Rate(context.Background(), "USD", "EUR")
	if !errors.Is(err, core.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestStaticResolver(t *testing.T) {
	resolver := StaticResolver{Rates: map[string]float64{"USD/EUR": 0.9}}

	rate, err := resolver.Rate(context.Background(), "USD", "EUR")
	if err != nil || rate != 0.9 {
		t.Fatalf("expected 0.9, got %v (err=%v)", rate, err)
	}

	rate, err = resolver.Rate(context.Background(), "USD", "USD")
	if err != nil || rate != 1 {
		t.Fatalf("same currency expected 1, got %v (err=%v)", rate, err)
	}

	if _, err := resolver.Rate(context.Background(), "EUR", "USD"); !errors.Is(err, core.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

type countingResolver struct {
	calls int
	inner StaticResolver
}

func (c *countingResolver) Rate(ctx context.Context, from, to string) (float64, error) {
	c.calls++
	return c.inner.Rate(ctx, from, to)
}

func TestCachingResolver(t *testing.T) {
	upstream := &countingResolver{inner: StaticResolver{Rates: map[string]float64{"USD/EUR": 0.9}}}
	resolver := NewCachingResolver(upstream, 16, time.Minute)

	for i := 0; i < 3; i++ {
		rate, err := resolver.Rate(context.Background(), "USD", "EUR")
		if err != nil || rate != 0.9 {
			t.Fatalf("expected 0.9, got %v (err=%v)", rate, err)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", upstream.calls)
	}

	// Failures must not be cached.
	if _, err := resolver.Rate(context.Background(), "EUR", "JPY"); !errors.Is(err, core.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
	if _, err := resolver.Rate(context.Background(), "EUR", "JPY"); !errors.Is(err, core.ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable on retry, got %v", err)
	}
	if upstream.calls != 3 {
		t.Fatalf("upstream calls = %d, want 3", upstream.calls)
	}
}
