package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang-price-watcher/internal/tracker/config"
	"golang-price-watcher/pkg/browser"
	"golang-price-watcher/pkg/logger"

	"github.com/patrickmn/go-cache"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Result is the outcome of one fetch tier.
type Result struct {
	HTML       string
	StatusCode int
	Rendered   bool
}

// Fetcher obtains page content for a URL, escalating from a lightweight HTTP
// fetch to a rendered-browser fetch when blocked. Rendering happens at most
// once per check.
type Fetcher struct {
	client        *http.Client
	renderer      browser.Renderer
	cfg           config.Tracker
	logger        *logger.Logger
	renderBackoff *cache.Cache
}

// New creates a fetch escalation controller. renderer may be nil, in which
// case escalation is unavailable and blocked fetches fail outright.
func New(cfg config.Tracker, renderer browser.Renderer, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		renderer:      renderer,
		cfg:           cfg,
		logger:        log,
		renderBackoff: cache.New(cfg.RenderBackoff, 2*cfg.RenderBackoff),
	}
}

// Fetch runs the first escalation pass: a plain HTTP fetch unless the host is
// known to require rendering, escalating to the rendered tier on a blocked
// response or a network failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if f.requiresRender(rawURL) {
		return f.render(ctx, rawURL)
	}

	res, err := f.fetchPlain(ctx, rawURL)
	if err != nil {
		f.logger.Warn("Plain fetch failed, escalating to rendered fetch",
			logger.StringField("url", rawURL), logger.ErrorField(err))
		return f.render(ctx, rawURL)
	}

	if isBlockedStatus(res.StatusCode) || browser.IsChallengePage(res.HTML) {
		f.logger.Info("Plain fetch blocked, escalating to rendered fetch",
			logger.StringField("url", rawURL), logger.IntField("status", res.StatusCode))
		return f.render(ctx, rawURL)
	}

	return res, nil
}

// Rerender is the second escalation trigger: the first pass produced zero
// candidates. It renders only if the first pass had not already rendered.
func (f *Fetcher) Rerender(ctx context.Context, rawURL string, previous *Result) (*Result, error) {
	if previous != nil && previous.Rendered {
		return nil, fmt.Errorf("already rendered once this check")
	}
	return f.render(ctx, rawURL)
}

func (f *Fetcher) fetchPlain(ctx context.Context, rawURL string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Result{HTML: string(body), StatusCode: resp.StatusCode}, nil
}

func (f *Fetcher) render(ctx context.Context, rawURL string) (*Result, error) {
	if f.renderer == nil {
		return nil, fmt.Errorf("rendered fetch unavailable: no renderer configured")
	}

	host := hostOf(rawURL)
	if _, backedOff := f.renderBackoff.Get(host); backedOff {
		return nil, fmt.Errorf("rendered fetch for %s backed off after failed challenge", host)
	}

	start := time.Now()
	html, err := f.renderer.Render(ctx, rawURL, f.cfg.RenderTimeout)
	if err != nil {
		return nil, fmt.Errorf("rendered fetch failed: %w", err)
	}

	if browser.IsChallengePage(html) {
		// The interstitial never cleared; don't hammer this host again soon.
		f.renderBackoff.SetDefault(host, time.Now())
		return nil, fmt.Errorf("rendered fetch for %s still behind anti-bot challenge", host)
	}

	f.logger.Debug("Rendered fetch complete",
		logger.StringField("url", rawURL),
		logger.Field("took", time.Since(start).String()),
	)

	return &Result{HTML: html, StatusCode: http.StatusOK, Rendered: true}, nil
}

func (f *Fetcher) requiresRender(rawURL string) bool {
	host := hostOf(rawURL)
	for _, h := range f.cfg.RenderRequiredHosts {
		if strings.Contains(host, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

func isBlockedStatus(code int) bool {
	switch code {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return strings.ToLower(u.Hostname())
	}
	return rawURL
}
