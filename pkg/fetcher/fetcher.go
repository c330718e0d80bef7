// Package fetcher retrieves listing pages politely: a random pause before
// every request, an optional requests-per-second ceiling, a browser-like
// header set and an optional robots.txt check. Failures are logged and
// reported to the caller as "no content".
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/harvester/internal/config"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

var (
	ErrStatus     = errors.New("unexpected HTTP status")
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher implements the page fetching used by the pagination driver.
type Fetcher struct {
	client        *http.Client
	timeout       time.Duration
	userAgent     string
	delayMin      time.Duration
	delayMax      time.Duration
	limiter       *rate.Limiter
	respectRobots bool
	sleep         SleepFunc
	random        func() float64
	logger        *zap.Logger

	robotsMu sync.Mutex
	robots   map[string]*robotstxt.RobotsData
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithDelay sets the bounds of the uniform random pause before each request.
func WithDelay(min, max time.Duration) Option {
	return func(f *Fetcher) {
		f.delayMin = min
		f.delayMax = max
	}
}

// WithMaxRPS caps the request rate on top of the random pause. Zero or less
// disables the cap.
func WithMaxRPS(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithRobots makes the fetcher skip URLs disallowed by the host's robots.txt.
func WithRobots(enabled bool) Option {
	return func(f *Fetcher) { f.respectRobots = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithSleep replaces the function used for the pause.
func WithSleep(s SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = s }
}

// WithRandom replaces the [0,1) source used to pick the pause.
func WithRandom(r func() float64) Option {
	return func(f *Fetcher) { f.random = r }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultTimeout,
		userAgent: config.DefaultUserAgent,
		sleep:     sleepContext,
		random:    rand.Float64,
		logger:    zap.NewNop(),
		robots:    make(map[string]*robotstxt.RobotsData),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f
}

// FromConfig builds a Fetcher from runtime settings and the site's delay
// bounds.
func FromConfig(cfg config.FetchConfig, delayMin, delayMax time.Duration, logger *zap.Logger) *Fetcher {
	return New(
		WithTimeout(cfg.Timeout),
		WithUserAgent(cfg.UserAgent),
		WithMaxRPS(cfg.MaxRPS),
		WithRobots(cfg.RespectRobots),
		WithDelay(delayMin, delayMax),
		WithLogger(logger),
	)
}

// Fetch pauses, then GETs pageURL once. It returns the body decoded to UTF-8
// and true, or "" and false on any failure. Failures are logged, never
// retried.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, bool) {
	delay := f.Delay()
	if err := f.sleep(ctx, delay); err != nil {
		f.logger.Info("fetch canceled during delay", zap.String("url", pageURL), zap.Error(err))
		return "", false
	}

	begin := time.Now()
	body, err := f.get(ctx, pageURL)
	if err != nil {
		f.logger.Error("error fetching page",
			zap.String("url", pageURL),
			zap.Duration("duration", time.Since(begin)),
			zap.Error(err),
		)
		return "", false
	}

	f.logger.Info("fetched page",
		zap.String("url", pageURL),
		zap.Int("bytes", len(body)),
		zap.Duration("delay", delay),
		zap.Duration("duration", time.Since(begin)),
	)
	return body, true
}

// Delay picks a pause uniformly from [delayMin, delayMax].
func (f *Fetcher) Delay() time.Duration {
	if f.delayMax <= f.delayMin {
		return f.delayMin
	}
	span := float64(f.delayMax - f.delayMin)
	return f.delayMin + time.Duration(f.random()*span)
}

func (f *Fetcher) get(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL %q", pageURL)
	}

	if f.respectRobots && !f.allowed(ctx, u) {
		return "", ErrDisallowed
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
}

// allowed consults robots.txt for u's host, fetching it once per host.
// An unreachable robots.txt allows everything.
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	f.robotsMu.Lock()
	robots, ok := f.robots[u.Host]
	f.robotsMu.Unlock()

	if !ok {
		robots = f.loadRobots(ctx, u)
		f.robotsMu.Lock()
		f.robots[u.Host] = robots
		f.robotsMu.Unlock()
	}
	if robots == nil {
		return true
	}
	return robots.TestAgent(u.RequestURI(), f.userAgent)
}

func (f *Fetcher) loadRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Info("robots.txt unavailable", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Info("robots.txt unreadable", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	return robots
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
