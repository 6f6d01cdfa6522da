package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/web3-frozen/helium-monitor/internal/httpclient"
)

// Backend resource paths.
const (
	StatsPath          = "heliumstats"
	WalletPathPrefix   = "wallet/"
	HotspotPathPrefix  = "hotspot-rewards2/"
	StakingPathPrefix  = "staking-rewards/"
	PriceJobName       = "price"
	DefaultPriceAPIURL = "https://api.coingecko.com/api/v3/simple/price"
)

// TokenIDs are the price oracle ids queried by the price job.
var TokenIDs = []string{"helium", "helium-iot", "helium-mobile", "wrapped-solana"}

// Fetcher is the cached backend API. *backend.Client implements it.
type Fetcher interface {
	GetData(ctx context.Context, path, cacheKey string) (*httpclient.Response, error)
}

// Requester performs an uncached HTTP call. *httpclient.Client implements it.
type Requester interface {
	Request(ctx context.Context, path string, payload any, method string, headers http.Header) (*httpclient.Response, error)
}

type options struct {
	name     string
	interval time.Duration
	logger   *slog.Logger
	optional bool
}

type Option func(*options)

func WithInterval(d time.Duration) Option { return func(o *options) { o.interval = d } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithName(name string) Option { return func(o *options) { o.name = name } }

// Optional makes a 404 from the backend an empty result instead of a failure.
func Optional() Option { return func(o *options) { o.optional = true } }

func buildOptions(defaultName string, opts []Option) options {
	o := options{name: defaultName}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Job refreshes one backend path through the cached backend client.
type Job struct {
	*base
	path     string
	optional bool
}

// NewJob creates a job for path, defaulting to the network stats path.
func NewJob(api Fetcher, path string, opts ...Option) *Job {
	if path == "" {
		path = StatsPath
	}
	o := buildOptions(path, opts)
	j := &Job{path: path, optional: o.optional}
	j.base = newBase(o.name, o.interval, j.fetcher(api), o.logger)
	return j
}

func NewStatsJob(api Fetcher, opts ...Option) *Job {
	return NewJob(api, StatsPath, opts...)
}

func NewWalletJob(api Fetcher, address string, opts ...Option) *Job {
	return NewJob(api, WalletPathPrefix+address, opts...)
}

func NewHotspotJob(api Fetcher, address string, opts ...Option) *Job {
	return NewJob(api, HotspotPathPrefix+address, opts...)
}

// NewStakingJob creates the best-effort staking rewards job. It is never
// scheduled; a missing resource leaves it in StateEmpty.
func NewStakingJob(api Fetcher, address string, opts ...Option) *Job {
	return NewJob(api, StakingPathPrefix+address, append([]Option{Optional()}, opts...)...)
}

func (j *Job) Path() string { return j.path }

func (j *Job) fetcher(api Fetcher) FetchFunc {
	return func(ctx context.Context) (json.RawMessage, error) {
		resp, err := api.GetData(ctx, j.path, "")
		if err != nil {
			if j.optional && httpclient.StatusCode(err) == http.StatusNotFound {
				return nil, ErrEmpty
			}
			return nil, fmt.Errorf("get %s: %w", j.path, err)
		}
		return decode(j.path, resp)
	}
}

// PriceJob queries the external price API directly on every refresh.
type PriceJob struct {
	*base
	currency string
}

// NewPriceJob creates the token price job quoting in currency and USD.
func NewPriceJob(client Requester, currency string, opts ...Option) *PriceJob {
	o := buildOptions(PriceJobName, opts)
	p := &PriceJob{currency: strings.ToUpper(currency)}
	query := PriceQuery(TokenIDs, VsCurrencies(currency))
	p.base = newBase(o.name, o.interval, func(ctx context.Context) (json.RawMessage, error) {
		resp, err := client.Request(ctx, query, nil, http.MethodGet, nil)
		if err != nil {
			return nil, fmt.Errorf("get prices: %w", err)
		}
		return decode("prices", resp)
	}, o.logger)
	return p
}

// Currency is the configured quote currency, upper case.
func (p *PriceJob) Currency() string { return p.currency }

// VsCurrencies returns the lower-case quote set {currency, usd}.
func VsCurrencies(currency string) []string {
	c := strings.ToLower(strings.TrimSpace(currency))
	if c == "" || c == "usd" {
		return []string{"usd"}
	}
	return []string{c, "usd"}
}

// PriceQuery builds the "?ids=...&vs_currencies=..." query string.
func PriceQuery(ids, currencies []string) string {
	v := url.Values{}
	v.Set("ids", strings.Join(ids, ","))
	v.Set("vs_currencies", strings.Join(currencies, ","))
	return "?" + v.Encode()
}

func decode(what string, resp *httpclient.Response) (json.RawMessage, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", what, resp.StatusCode)
	}
	payload, err := resp.JSON()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return payload, nil
}
