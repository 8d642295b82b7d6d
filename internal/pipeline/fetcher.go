package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ppiankov/astrolabium/internal/cache"
	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/metrics"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/util"
	"github.com/ppiankov/astrolabium/internal/worker"
)

const maxBackoff = 30 * time.Second

// Fetcher downloads catalogue files and name-source responses. Requests
// are throttled per host, retried on transient failures, checked against
// robots.txt and cached by URL. Gzip bodies are decompressed.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	retries    int
	retryBase  time.Duration
	limiter    *worker.Limiter
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	cache      cache.Cache
	cacheTTL   time.Duration
	metrics    *metrics.Metrics
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithCache caches successful bodies for ttl
func WithCache(c cache.Cache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithMetrics records fetch counters
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher creates a Fetcher from the HTTP configuration
func NewFetcher(cfg model.HTTPConfig, opts ...FetcherOption) *Fetcher {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		retries:    cfg.Retries,
		retryBase:  cfg.RetryBase,
		limiter:    worker.NewLimiter(cfg.RatePerSecond, 1),
		cache:      cache.Nop{},
	}
	if f.retries <= 0 {
		f.retries = 1
	}
	if f.retryBase <= 0 {
		f.retryBase = time.Second
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 256 << 20
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get returns the body of rawURL, from the cache when present
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	key := cache.Key(cache.KindRaw, rawURL)
	if body, ok := f.cache.Get(key); ok {
		f.metrics.CacheLookup(cache.KindRaw, true)
		return body, nil
	}
	f.metrics.CacheLookup(cache.KindRaw, false)

	if err := f.checkRobots(ctx, rawURL); err != nil {
		return nil, err
	}

	body, err := f.FetchWithRetry(ctx, rawURL)
	f.metrics.Fetched(util.HostOf(rawURL), len(body), err)
	if err != nil {
		return nil, err
	}

	if err := f.cache.Set(key, body, f.cacheTTL); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("url", rawURL).Msg("cache write failed")
	}
	return body, nil
}

// Lines fetches rawURL and splits it into lines without terminators
func (f *Fetcher) Lines(ctx context.Context, rawURL string) ([]string, error) {
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return SplitLines(body)
}

// SplitLines splits a body into lines, accepting CRLF endings
func SplitLines(body []byte) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("split lines: %w", err)
	}
	return lines, nil
}

func (f *Fetcher) checkRobots(ctx context.Context, rawURL string) error {
	if f.robots == nil {
		return nil
	}
	allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if !allowed {
		return &errors.APIError{Service: util.HostOf(rawURL), StatusCode: http.StatusForbidden, Message: "disallowed by robots.txt"}
	}
	if delay > 0 {
		f.limiter.SetHostRate(util.HostOf(rawURL), 1/delay.Seconds(), 1)
	}
	return nil
}

// FetchWithRetry fetches rawURL, retrying transient failures with
// exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	log := logging.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt < f.retries; attempt++ {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}

		body, err := f.fetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || attempt == f.retries-1 {
			break
		}
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Msg("retrying fetch")
		if err := worker.Backoff(ctx, attempt, f.retryBase, maxBackoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.APIError{Service: req.URL.Host, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: body of %s exceeds %d bytes", errors.ErrInvalidInput, rawURL, f.maxBytes)
	}

	body, err = gunzip(body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	return body, nil
}

// gunzip decompresses body when it starts with the gzip magic number. A
// positive limit caps the decompressed size.
func gunzip(body []byte, limit int64) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, limit+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: decompressed body exceeds %d bytes", errors.ErrInvalidInput, limit)
	}
	return out, nil
}

// isRetryableFetchError returns true for 5xx, 429 and transient network
// failures
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errors.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.HasPrefix(s, "fetch:") &&
		(strings.Contains(s, "connection refused") ||
			strings.Contains(s, "connection reset") ||
			strings.Contains(s, "timeout") ||
			strings.Contains(s, "eof"))
}
