package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang-price-watcher/pkg/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Anti-bot interstitials that must be waited out before the real page loads.
var challengePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)just a moment`),
	regexp.MustCompile(`(?i)checking your browser`),
	regexp.MustCompile(`(?i)verify(ing)? you are (a )?human`),
	regexp.MustCompile(`(?i)enable javascript and cookies to continue`),
	regexp.MustCompile(`(?i)access to this page has been denied`),
	regexp.MustCompile(`(?i)cf-challenge`),
}

// Config holds renderer settings.
type Config struct {
	Headless             bool          `mapstructure:"headless"`
	BinPath              string        `mapstructure:"bin_path"`
	ChallengeWaitTimeout time.Duration `mapstructure:"challenge_wait_timeout"`
	UserAgent            string        `mapstructure:"user_agent"`
}

// Renderer loads a URL in a real browser and returns the final DOM markup.
type Renderer interface {
	Render(ctx context.Context, url string, timeout time.Duration) (string, error)
	Close() error
}

type rodRenderer struct {
	browser *rod.Browser
	lc      *launcher.Launcher
	cfg     Config
	logger  *logger.Logger
}

// NewRodRenderer launches a headless browser shared by all renders.
func NewRodRenderer(cfg Config, log *logger.Logger) (Renderer, error) {
	lc := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Leakless(false)
	if cfg.BinPath != "" {
		lc = lc.Bin(cfg.BinPath)
	}

	controlURL, err := lc.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if cfg.ChallengeWaitTimeout <= 0 {
		cfg.ChallengeWaitTimeout = 25 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &rodRenderer{browser: b, lc: lc, cfg: cfg, logger: log}, nil
}

// Render navigates to the URL, waits out any anti-bot interstitial, and
// returns the final page HTML.
func (r *rodRenderer) Render(ctx context.Context, url string, timeout time.Duration) (string, error) {
	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx).Timeout(timeout)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
		return "", fmt.Errorf("failed to set user agent: %w", err)
	}

	// Mask the most common headless fingerprints before any site script runs.
	_, err = page.EvalOnNewDocument(`
		Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
		Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
		Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
		window.chrome = { runtime: {} };
	`)
	if err != nil {
		return "", fmt.Errorf("failed to install fingerprint overrides: %w", err)
	}

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to wait for page load: %w", err)
	}

	html, err := r.waitOutChallenge(ctx, page)
	if err != nil {
		return "", err
	}

	return html, nil
}

// waitOutChallenge polls page state until the anti-bot interstitial clears
// or the bounded wait expires. The last snapshot is returned either way so
// the caller can still attempt extraction.
func (r *rodRenderer) waitOutChallenge(ctx context.Context, page *rod.Page) (string, error) {
	deadline := time.Now().Add(r.cfg.ChallengeWaitTimeout)

	var html string
	for {
		var err error
		html, err = page.HTML()
		if err != nil {
			return "", fmt.Errorf("failed to read page html: %w", err)
		}

		if !IsChallengePage(html) {
			return html, nil
		}

		if time.Now().After(deadline) {
			r.logger.Warn("Anti-bot challenge did not clear within wait window")
			return html, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// Close shuts down the shared browser.
func (r *rodRenderer) Close() error {
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			return err
		}
	}
	if r.lc != nil {
		r.lc.Cleanup()
	}
	return nil
}

// IsChallengePage reports whether the markup looks like an anti-bot
// interstitial rather than real page content.
func IsChallengePage(html string) bool {
	probe := html
	if len(probe) > 20000 {
		probe = probe[:20000]
	}
	probe = strings.ToLower(probe)
	for _, p := range challengePatterns {
		if p.MatchString(probe) {
			return true
		}
	}
	return false
}
