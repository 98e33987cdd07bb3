package waterfalls

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
)

// Config holds the connection settings of a client.
type Config struct {
	// BaseURL of the index server, e.g. https://waterfalls.example.com/api.
	BaseURL string
	// Proxy URL formatted as <scheme>://<user>:<password>@host:<port>.
	// Supported schemes are http, https, socks5 and socks5h.
	Proxy string
	// Timeout bounds a single HTTP exchange. Retries are not covered by it.
	Timeout time.Duration
	// Headers are set on every request.
	Headers map[string]string
	// MaxRetries is the number of retries after a retryable status.
	MaxRetries int
}

// DefaultConfig returns a Config for baseURL with the default retry budget.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		MaxRetries: DefaultMaxRetries,
	}
}

type options struct {
	httpClient *http.Client
	doer       Doer
	sleeper    Sleeper
	logger     *zap.Logger
	metrics    Metrics
	rps        int
	backoff    Backoff
	headers    uint
}

// Option customises a client.
type Option func(*options)

// WithHTTPClient sends requests through c. Proxy and Timeout from Config
// are not applied to it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDoer sends requests through d, taking precedence over WithHTTPClient.
func WithDoer(d Doer) Option {
	return func(o *options) { o.doer = d }
}

// WithSleeper replaces the sleeper used between retries.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRateLimit caps outgoing requests, retries included, to rps per second.
func WithRateLimit(rps int) Option {
	return func(o *options) { o.rps = rps }
}

// WithHeaderCache keeps up to size block headers in memory, keyed by hash.
// Headers never change once mined, so cached entries do not expire.
func WithHeaderCache(size uint) Option {
	return func(o *options) { o.headers = size }
}

// WithBackoff replaces the default 256ms unbounded backoff.
func WithBackoff(b Backoff) Option {
	return func(o *options) { o.backoff = b }
}

func (c Config) validate() (*url.URL, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, invalidConfig("base url %q: %v", c.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, invalidConfig("base url %q: scheme must be http or https", c.BaseURL)
	}
	if base.Host == "" {
		return nil, invalidConfig("base url %q: missing host", c.BaseURL)
	}
	if c.MaxRetries < 0 {
		return nil, invalidConfig("max retries %d is negative", c.MaxRetries)
	}
	if c.Timeout < 0 {
		return nil, invalidConfig("timeout %s is negative", c.Timeout)
	}

	var proxy *url.URL
	if c.Proxy != "" {
		proxy, err = url.Parse(c.Proxy)
		if err != nil {
			return nil, invalidConfig("proxy %q: %v", c.Proxy, err)
		}
		switch proxy.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return nil, invalidConfig("proxy %q: unsupported scheme %q", c.Proxy, proxy.Scheme)
		}
		if proxy.Host == "" {
			return nil, invalidConfig("proxy %q: missing host", c.Proxy)
		}
	}

	for k, v := range c.Headers {
		if !httpguts.ValidHeaderFieldName(k) {
			return nil, invalidConfig("header name %q", k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return nil, invalidConfig("header value %q", v)
		}
	}
	return proxy, nil
}

func (c Config) header() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// newPipeline validates cfg and assembles the request pipeline.
// defaultSleeper is used unless WithSleeper is given.
func newPipeline(cfg Config, defaultSleeper Sleeper, opts ...Option) (*pipeline, error) {
	proxy, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	o := options{
		sleeper: defaultSleeper,
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
		backoff: NewBackoff(DefaultBaseBackoff),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sleeper == nil {
		o.sleeper = defaultSleeper
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.rps < 0 {
		return nil, invalidConfig("rate limit %d is negative", o.rps)
	}
	if o.backoff.Base < 0 || o.backoff.Ceiling < 0 {
		return nil, invalidConfig("backoff durations must not be negative")
	}

	doer := o.doer
	if doer == nil && o.httpClient != nil {
		doer = o.httpClient
	}
	if doer == nil {
		doer = newHTTPClient(proxy, cfg.Timeout)
	}
	if o.rps > 0 {
		doer = newRateLimitedDoer(doer, o.rps)
	}

	return &pipeline{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		doer:       doer,
		sleeper:    o.sleeper,
		header:     cfg.header(),
		maxRetries: cfg.MaxRetries,
		backoff:    o.backoff,
		logger:     o.logger.Named("waterfalls"),
		metrics:    o.metrics,
		headers:    newHeaderCache(o.headers),
	}, nil
}
