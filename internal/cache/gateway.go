package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/medrex/clinic-portal/pkg/logger"
)

// DefaultTTL is how long a stored payload is served without refetching
const DefaultTTL = 5 * time.Minute

// Fetcher produces the payload for an endpoint. Implementations may fail; a
// failed fetch is never cached.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params interface{}) (interface{}, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, endpoint string, params interface{}) (interface{}, error)

// Fetch implements Fetcher
func (f FetcherFunc) Fetch(ctx context.Context, endpoint string, params interface{}) (interface{}, error) {
	return f(ctx, endpoint, params)
}

// Metrics receives cache activity
type Metrics interface {
	RecordCacheLookup(endpoint string, hit bool)
	RecordCacheFetch(endpoint string, err error, duration time.Duration)
	RecordCacheInvalidation(scope string)
}

type nopMetrics struct{}

func (nopMetrics) RecordCacheLookup(string, bool)                {}
func (nopMetrics) RecordCacheFetch(string, error, time.Duration) {}
func (nopMetrics) RecordCacheInvalidation(string)                {}

// Stats is a point-in-time snapshot of gateway counters
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Fetches int64 `json:"fetches"`
	Entries int   `json:"entries"`
}

// Gateway memoizes fetches by (endpoint, params) for a fixed TTL.
// Concurrent misses on one key share a single fetch.
type Gateway struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  *logger.Logger
	metrics Metrics
	tracer  trace.Tracer

	group  singleflight.Group
	closed atomic.Bool

	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
}

// Option configures a Gateway
type Option func(*Gateway)

// WithStore replaces the default in-memory store
func WithStore(store Store) Option {
	return func(g *Gateway) {
		g.store = store
	}
}

// WithTTL sets the freshness window
func WithTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		g.ttl = ttl
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) Option {
	return func(g *Gateway) {
		g.logger = log
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTracer sets the tracer used for fetch spans
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// New creates a gateway in front of fetcher. The gateway owns its store and
// closes it in Close.
func New(fetcher Fetcher, opts ...Option) *Gateway {
	g := &Gateway{
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  logger.Discard(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.store == nil {
		g.store = NewMemoryStore()
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer("github.com/medrex/clinic-portal/internal/cache")
	}
	return g
}

// Get returns the payload for endpoint and params, fetching it when no fresh
// entry exists. Fetch errors reach the caller unchanged and leave the cache
// untouched.
func (g *Gateway) Get(ctx context.Context, endpoint string, params interface{}) (interface{}, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}

	key, err := Key(endpoint, params)
	if err != nil {
		return nil, err
	}

	if payload, ok := g.lookup(ctx, key); ok {
		g.hits.Add(1)
		g.metrics.RecordCacheLookup(endpoint, true)
		return payload, nil
	}
	g.misses.Add(1)
	g.metrics.RecordCacheLookup(endpoint, false)

	payload, err, shared := g.group.Do(key, func() (interface{}, error) {
		// a flight that finished just before this one may have filled the key
		if payload, ok := g.lookup(ctx, key); ok {
			return payload, nil
		}
		return g.fetch(ctx, key, endpoint, params)
	})
	if shared {
		g.logger.WithComponent("cache").WithField("key", key).Debug("Joined in-flight fetch")
	}
	return payload, err
}

func (g *Gateway) lookup(ctx context.Context, key string) (interface{}, bool) {
	entry, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.WithComponent("cache").WithError(err).WithField("key", key).Warn("Cache store read failed")
		return nil, false
	}
	if !ok || !g.fresh(entry) {
		return nil, false
	}
	return entry.Payload, true
}

func (g *Gateway) fresh(entry *Entry) bool {
	return g.now().Sub(entry.StoredAt) < g.ttl
}

func (g *Gateway) fetch(ctx context.Context, key, endpoint string, params interface{}) (interface{}, error) {
	ctx, span := g.tracer.Start(ctx, "cache.fetch", trace.WithAttributes(
		attribute.String("cache.endpoint", endpoint),
		attribute.String("cache.key", key),
	))
	defer span.End()

	g.fetches.Add(1)
	start := time.Now()
	payload, err := g.fetcher.Fetch(ctx, endpoint, params)
	g.metrics.RecordCacheFetch(endpoint, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	entry := &Entry{Key: key, Payload: payload, StoredAt: g.now()}
	if err := g.store.Set(ctx, key, entry); err != nil {
		g.logger.WithComponent("cache").WithError(err).WithField("key", key).Warn("Cache store write failed")
	}
	return payload, nil
}

// Invalidate removes exactly the entry derived from endpoint and params
func (g *Gateway) Invalidate(ctx context.Context, endpoint string, params interface{}) error {
	if g.closed.Load() {
		return ErrClosed
	}

	key, err := Key(endpoint, params)
	if err != nil {
		return err
	}
	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	g.metrics.RecordCacheInvalidation("key")
	g.logger.WithComponent("cache").WithField("key", key).Debug("Cache entry invalidated")
	return nil
}

// ClearAll removes every entry
func (g *Gateway) ClearAll(ctx context.Context) error {
	if g.closed.Load() {
		return ErrClosed
	}
	if err := g.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	g.metrics.RecordCacheInvalidation("all")
	g.logger.WithComponent("cache").Info("Cache cleared")
	return nil
}

// Stats reports counters since creation and the current entry count
func (g *Gateway) Stats(ctx context.Context) (Stats, error) {
	if g.closed.Load() {
		return Stats{}, ErrClosed
	}
	entries, err := g.store.Len(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return Stats{
		Hits:    g.hits.Load(),
		Misses:  g.misses.Load(),
		Fetches: g.fetches.Load(),
		Entries: entries,
	}, nil
}

// Close disposes the gateway and its store. Later calls return ErrClosed.
func (g *Gateway) Close() error {
	if g.closed.Swap(true) {
		return nil
	}
	return g.store.Close()
}
