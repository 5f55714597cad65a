// Package browser implements core.PageProvider on top of Playwright.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
	"github.com/devicelab-dev/webflow-runner/pkg/logger"
)

// DefaultTimeout bounds a single Playwright call when ctx has no deadline.
const DefaultTimeout = 30 * time.Second

// Config configures the Playwright provider.
type Config struct {
	Browser     string // chromium (default), firefox, webkit
	Headless    bool
	BaseURL     string
	Width       int    // Viewport width, default 1280
	Height      int    // Viewport height, default 720
	DriverDir   string // Playwright driver directory; empty uses the library default
	BrowsersDir string // Browser download directory; PLAYWRIGHT_BROWSERS_PATH takes precedence
	Install     bool   // Download the driver and browser if missing
}

// browsersPathEnv is read by the Playwright driver to locate browsers.
const browsersPathEnv = "PLAYWRIGHT_BROWSERS_PATH"

// useBrowsersDir points Playwright at dir unless the user already chose
// a location.
func useBrowsersDir(dir string) error {
	if dir == "" || os.Getenv(browsersPathEnv) != "" {
		return nil
	}
	return os.Setenv(browsersPathEnv, dir)
}

// Provider launches one browser and hands out isolated pages, each in its
// own browser context.
type Provider struct {
	cfg     Config
	pw      *playwright.Playwright
	browser playwright.Browser

	mu     sync.Mutex
	closed bool
}

// New starts Playwright and launches the configured browser.
func New(cfg Config) (*Provider, error) {
	if cfg.Browser == "" {
		cfg.Browser = "chromium"
	}
	if cfg.Width == 0 {
		cfg.Width = 1280
	}
	if cfg.Height == 0 {
		cfg.Height = 720
	}

	if err := useBrowsersDir(cfg.BrowsersDir); err != nil {
		return nil, core.ErrDriverFailure.WithMessage("set browsers path").WithCause(err)
	}

	runOpts := &playwright.RunOptions{
		DriverDirectory:     cfg.DriverDir,
		Browsers:            []string{cfg.Browser},
		SkipInstallBrowsers: !cfg.Install,
		Verbose:             false,
	}
	if cfg.Install {
		logger.Info("installing playwright %s (driver %s, browsers %s)", cfg.Browser, cfg.DriverDir, os.Getenv(browsersPathEnv))
		if err := playwright.Install(runOpts); err != nil {
			return nil, core.ErrDriverFailure.WithMessage("install playwright").WithCause(err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, core.ErrDriverFailure.WithMessage("start playwright").WithCause(err)
	}

	var browserType playwright.BrowserType
	switch cfg.Browser {
	case "chromium":
		browserType = pw.Chromium
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown browser %q", cfg.Browser))
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, core.ErrDriverFailure.WithMessage("launch " + cfg.Browser).WithCause(err)
	}

	logger.Info("launched %s %s (headless=%v)", cfg.Browser, browser.Version(), cfg.Headless)
	return &Provider{cfg: cfg, pw: pw, browser: browser}, nil
}

// NewPage implements core.PageProvider.
func (p *Provider) NewPage(ctx context.Context) (core.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, core.ErrDriverFailure.WithMessage("provider is closed")
	}

	bctx, err := p.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: p.cfg.Width, Height: p.cfg.Height},
	})
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(DefaultTimeout.Milliseconds()))

	return &Page{page: page, bctx: bctx, baseURL: p.cfg.BaseURL}, nil
}

// Info implements core.PageProvider.
func (p *Provider) Info() *core.BrowserInfo {
	return &core.BrowserInfo{
		Driver:   "playwright",
		Name:     p.cfg.Browser,
		Version:  p.browser.Version(),
		Headless: p.cfg.Headless,
		BaseURL:  p.cfg.BaseURL,
		Viewport: fmt.Sprintf("%dx%d", p.cfg.Width, p.cfg.Height),
	}
}

// Close shuts the browser and the Playwright driver down.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if err := p.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

// Element is a located Playwright element.
type Element struct {
	query   string
	locator playwright.Locator
}

// Selector implements core.Element.
func (e *Element) Selector() string { return e.query }

// Page is a core.Page backed by a Playwright page in its own context.
type Page struct {
	page    playwright.Page
	bctx    playwright.BrowserContext
	baseURL string

	mu     sync.Mutex
	closed bool
}

// Navigate implements core.Page. It waits for the load event.
func (p *Page) Navigate(ctx context.Context, path string) error {
	target := resolveURL(p.baseURL, path)
	_, err := p.page.Goto(target, playwright.PageGotoOptions{
		Timeout:   timeoutMs(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return core.ErrNavigationTimeout.
			WithMessage(fmt.Sprintf("navigate %s: page did not become ready", target)).
			WithCause(err)
	}
	return core.ErrDriverFailure.WithMessage("navigate " + target).WithCause(err)
}

// FindElement implements core.Page with a single, non-waiting probe.
func (p *Page) FindElement(ctx context.Context, selector string) (core.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locator := p.page.Locator(selector)
	n, err := locator.Count()
	if err != nil {
		return nil, core.ErrDriverFailure.WithMessage("query " + selector).WithCause(err)
	}
	if n == 0 {
		return nil, core.ErrElementNotFound.
			WithMessage(fmt.Sprintf("element not found: %s", selector)).
			WithDetails(map[string]interface{}{"selector": selector})
	}
	return &Element{query: selector, locator: locator.First()}, nil
}

// Type implements core.Page.
func (p *Page) Type(ctx context.Context, el core.Element, text string) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	if err := e.locator.Fill(text, playwright.LocatorFillOptions{Timeout: timeoutMs(ctx)}); err != nil {
		return actionError("type into", e.query, err)
	}
	return nil
}

// Click implements core.Page.
func (p *Page) Click(ctx context.Context, el core.Element) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	if err := e.locator.Click(playwright.LocatorClickOptions{Timeout: timeoutMs(ctx)}); err != nil {
		return actionError("click", e.query, err)
	}
	return nil
}

// ReadText implements core.Page.
func (p *Page) ReadText(ctx context.Context, el core.Element) (string, error) {
	e, err := asElement(el)
	if err != nil {
		return "", err
	}
	text, err := e.locator.TextContent(playwright.LocatorTextContentOptions{Timeout: timeoutMs(ctx)})
	if err != nil {
		return "", actionError("read text of", e.query, err)
	}
	return text, nil
}

// URL implements core.Page.
func (p *Page) URL() string {
	return p.page.URL()
}

// CaptureScreenshot implements core.ArtifactCollector.
func (p *Page) CaptureScreenshot() ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
}

// CaptureContent implements core.ArtifactCollector.
func (p *Page) CaptureContent() ([]byte, error) {
	html, err := p.page.Content()
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

// Close implements core.Page. Closing the context closes the page.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.bctx.Close()
}

func asElement(el core.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, core.ErrDriverFailure.WithMessage(fmt.Sprintf("element %T was not located by this page", el))
	}
	return e, nil
}

func actionError(action, query string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return core.ErrElementNotFound.
			WithMessage(fmt.Sprintf("%s %s: element went away", action, query)).
			WithCause(err)
	}
	return core.ErrDriverFailure.WithMessage(fmt.Sprintf("%s %s", action, query)).WithCause(err)
}

// timeoutMs converts the time left on ctx into a Playwright timeout.
func timeoutMs(ctx context.Context) *float64 {
	d := DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// resolveURL joins a relative path onto base. Absolute URLs pass through.
func resolveURL(base, path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
