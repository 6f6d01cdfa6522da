package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/web3-frozen/helium-monitor/internal/httpclient"
	"github.com/web3-frozen/helium-monitor/internal/metrics"
)

// DefaultTTL is the maximum age of a cached response.
const DefaultTTL = 600 * time.Second

// ErrInvalidResponse is returned for a 2xx response that is not a 200 with a
// JSON body. Such responses are never cached.
var ErrInvalidResponse = errors.New("invalid backend response")

// Requester performs a single HTTP call. *httpclient.Client implements it.
type Requester interface {
	Request(ctx context.Context, path string, payload any, method string, headers http.Header) (*httpclient.Response, error)
}

// Client is the backend API client with a TTL cache in front of every GET.
// One Client belongs to one integration entry and is shared by its jobs.
type Client struct {
	http   Requester
	token  string
	ttl    time.Duration
	store  Store
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

type Option func(*Client)

func WithTTL(ttl time.Duration) Option { return func(c *Client) { c.ttl = ttl } }

func WithStore(s Store) Option { return func(c *Client) { c.store = s } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(requester Requester, token string, opts ...Option) *Client {
	c := &Client{
		http:   requester,
		token:  token,
		ttl:    DefaultTTL,
		store:  NewMemoryStore(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) TTL() time.Duration { return c.ttl }

// GetData returns the response for path, refreshing it if the entry under
// cacheKey is missing or older than the TTL. cacheKey defaults to path.
//
// A failed refresh returns the error and leaves any previous entry in place.
// Concurrent refreshes of the same key share one request. The shared request
// is not cancelled with the caller that started it; the HTTP client timeout
// bounds it instead.
func (c *Client) GetData(ctx context.Context, path, cacheKey string) (*httpclient.Response, error) {
	if cacheKey == "" {
		cacheKey = path
	}

	if e, ok := c.fresh(ctx, cacheKey); ok {
		metrics.CacheHitsTotal.WithLabelValues(c.store.Name()).Inc()
		return e.Response, nil
	}
	metrics.CacheMissesTotal.WithLabelValues(c.store.Name()).Inc()

	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if e, ok := c.fresh(shared, cacheKey); ok {
			return e.Response, nil
		}
		return c.refresh(shared, path, cacheKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*httpclient.Response), nil
}

// Cached returns the entry under key without refreshing it.
func (c *Client) Cached(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
		return Entry{}, false
	}
	return e, ok
}

// Close releases the underlying store.
func (c *Client) Close() error {
	return c.store.Close()
}

func (c *Client) fresh(ctx context.Context, key string) (Entry, bool) {
	e, ok := c.Cached(ctx, key)
	if !ok || e.Response == nil {
		return Entry{}, false
	}
	if c.now().Sub(e.FetchedAt) > c.ttl {
		return Entry{}, false
	}
	return e, true
}

func (c *Client) refresh(ctx context.Context, path, key string) (*httpclient.Response, error) {
	c.logger.Debug("refreshing data", "path", path, "key", key)
	fetchedAt := c.now()

	headers := http.Header{}
	headers.Set("Authorization", "bearer "+c.token)

	resp, err := c.http.Request(ctx, path, nil, http.MethodGet, headers)
	if err != nil {
		metrics.CacheRefreshFailuresTotal.WithLabelValues(c.store.Name()).Inc()
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		metrics.CacheRefreshFailuresTotal.WithLabelValues(c.store.Name()).Inc()
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	if err := c.store.Set(ctx, Entry{Key: key, Response: resp, FetchedAt: fetchedAt}); err != nil {
		c.logger.Warn("cache store failed", "key", key, "error", err)
	}
	return resp, nil
}

func checkResponse(resp *httpclient.Response) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}
	if !json.Valid(resp.Body) {
		return fmt.Errorf("%w: body is not JSON", ErrInvalidResponse)
	}
	return nil
}
