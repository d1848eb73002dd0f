// Package robots enforces robots.txt directives per host with a run-scoped cache.
package robots

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/metrics"
)

const maxRobotsBytes = 1 << 20

// Pacer delays outbound requests; the robots fetch is subject to the same pacing as page fetches.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls robots enforcement.
type Config struct {
	UserAgent      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// FailOpen allows fetches when the robots document itself cannot be retrieved.
	FailOpen bool
}

// Enforcer fetches and caches robots.txt per host. Each host is fetched at most once per run.
type Enforcer struct {
	client    *http.Client
	userAgent string
	failOpen  bool
	pacer     Pacer
	logger    *zap.Logger

	mu    sync.Mutex
	hosts map[string]*hostEntry
}

type hostEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
	err  error
}

// New builds an Enforcer. pacer may be nil.
func New(cfg Config, pacer Pacer, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 10 * time.Second
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		IdleConnTimeout:       30 * time.Second,
	}
	return &Enforcer{
		client:    &http.Client{Transport: transport, Timeout: connect + read},
		userAgent: cfg.UserAgent,
		failOpen:  cfg.FailOpen,
		pacer:     pacer,
		logger:    logger,
		hosts:     make(map[string]*hostEntry),
	}
}

// Allowed reports whether rawURL may be fetched under the host's robots policy.
func (r *Enforcer) Allowed(ctx context.Context, rawURL string) bool {
	if r == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data, err := r.load(ctx, parsed)
	if err != nil {
		metrics.ObserveRobotsFallback(parsed.Host, r.failOpen)
		if r.failOpen {
			r.logger.Warn("robots fetch failed; allowing access", zap.String("host", parsed.Host), zap.Error(err))
			return true
		}
		r.logger.Warn("robots fetch failed; denying access", zap.String("host", parsed.Host), zap.Error(err))
		return false
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.RequestURI())
}

func (r *Enforcer) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	r.mu.Lock()
	entry, ok := r.hosts[hostKey]
	if !ok {
		entry = &hostEntry{}
		r.hosts[hostKey] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.data, entry.err = r.fetch(ctx, parsed)
	})
	return entry.data, entry.err
}

func (r *Enforcer) fetch(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	target := robotsURL.String()
	if r.pacer != nil {
		if err := r.pacer.Wait(ctx, target); err != nil {
			return nil, fmt.Errorf("pace robots request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("robots returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

// AllowAll is the policy used when robots enforcement is disabled.
type AllowAll struct{}

// Allowed always returns true.
func (AllowAll) Allowed(context.Context, string) bool { return true }
