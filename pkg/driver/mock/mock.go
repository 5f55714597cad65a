// Package mock provides an in-memory page provider for testing without a browser.
package mock

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/webflow-runner/pkg/core"
)

// DefaultBaseURL is the origin mock pages report in URL().
const DefaultBaseURL = "http://mock.local"

// Node is one element of a mock screen.
type Node struct {
	// Queries that address this node, e.g. "#field-name" or `[data-testid="name"]`.
	Queries []string
	// Tag is used when rendering page content. Defaults to "div".
	Tag string
	// Text is the static text content.
	Text string
	// TextFunc computes the text content from page state; overrides Text.
	TextFunc func(p *Page) string
	// Input nodes report their typed value as text.
	Input bool
	// AppearAfter delays the node's presence, measured from screen load.
	AppearAfter time.Duration
	// OnClick runs when the node is clicked.
	OnClick func(p *Page)
}

// Screen is the document served at one path.
type Screen struct {
	Title string
	Nodes []*Node
	// LoadDelay is how long Navigate takes to reach a ready state.
	LoadDelay time.Duration
	// NeverReady makes Navigate block until its context expires.
	NeverReady bool
}

// App maps paths to screens.
type App map[string]*Screen

// Calls counts page operations. Every method call is counted, including
// ones that fail.
type Calls struct {
	Navigate int
	Find     int
	Type     int
	Click    int
	ReadText int
}

// Total returns the sum of all counted calls.
func (c Calls) Total() int {
	return c.Navigate + c.Find + c.Type + c.Click + c.ReadText
}

// Actions returns the number of calls that act on the page (navigate, type, click).
func (c Calls) Actions() int {
	return c.Navigate + c.Type + c.Click
}

// Element is a handle to a node on a specific screen load.
type Element struct {
	query string
	node  *Node
	load  int
}

// Selector implements core.Element.
func (e *Element) Selector() string { return e.query }

// Page is an in-memory core.Page.
type Page struct {
	app     App
	baseURL string

	mu       sync.Mutex
	path     string
	screen   *Screen
	loadedAt time.Time
	load     int
	values   map[string]string
	store    map[string]string
	calls    Calls
	log      []string
	closed   bool
	onClose  func()
}

// NewPage creates a page for app with no document loaded.
func NewPage(app App, baseURL string) *Page {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Page{
		app:     app,
		baseURL: strings.TrimRight(baseURL, "/"),
		values:  make(map[string]string),
		store:   make(map[string]string),
	}
}

// Navigate implements core.Page.
func (p *Page) Navigate(ctx context.Context, path string) error {
	p.mu.Lock()
	p.calls.Navigate++
	p.log = append(p.log, "navigate "+path)
	closed := p.closed
	screen := p.app[normalizePath(path)]
	p.mu.Unlock()

	if closed {
		return errClosed()
	}

	var delay time.Duration
	if screen != nil {
		delay = screen.LoadDelay
	}
	if screen != nil && screen.NeverReady {
		<-ctx.Done()
		return navigationTimeout(path, ctx.Err())
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return navigationTimeout(path, ctx.Err())
		case <-timer.C:
		}
	}

	p.Go(path)
	return nil
}

// Go switches the page to path immediately, as a link or form submit would.
func (p *Page) Go(path string) {
	path = normalizePath(path)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	p.screen = p.app[path]
	p.loadedAt = time.Now()
	p.load++
	p.values = make(map[string]string)
}

// FindElement implements core.Page.
func (p *Page) FindElement(ctx context.Context, selector string) (core.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.Find++

	if p.closed {
		return nil, errClosed()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.screen == nil {
		return nil, notFound(selector)
	}

	elapsed := time.Since(p.loadedAt)
	for _, n := range p.screen.Nodes {
		if !n.matches(selector) {
			continue
		}
		if elapsed < n.AppearAfter {
			continue
		}
		return &Element{query: selector, node: n, load: p.load}, nil
	}
	return nil, notFound(selector)
}

// Type implements core.Page.
func (p *Page) Type(ctx context.Context, el core.Element, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls.Type++
	p.log = append(p.log, "type "+el.Selector())

	e, err := p.live(el)
	if err != nil {
		return err
	}
	if !e.node.Input {
		return core.ErrDriverFailure.WithMessage(fmt.Sprintf("element %s is not an input", el.Selector()))
	}
	p.values[e.node.key()] = text
	return nil
}

// Click implements core.Page.
func (p *Page) Click(ctx context.Context, el core.Element) error {
	p.mu.Lock()
	p.calls.Click++
	p.log = append(p.log, "click "+el.Selector())
	e, err := p.live(el)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if e.node.OnClick != nil {
		e.node.OnClick(p)
	}
	return nil
}

// ReadText implements core.Page.
func (p *Page) ReadText(ctx context.Context, el core.Element) (string, error) {
	p.mu.Lock()
	p.calls.ReadText++
	e, err := p.live(el)
	p.mu.Unlock()
	if err != nil {
		return "", err
	}
	return p.textOf(e.node), nil
}

// URL implements core.Page.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == "" {
		return "about:blank"
	}
	return p.baseURL + p.path
}

// CaptureScreenshot returns a 1x1 PNG.
func (p *Page) CaptureScreenshot() ([]byte, error) {
	return pngPixel(), nil
}

// CaptureContent renders the current screen as HTML.
func (p *Page) CaptureContent() ([]byte, error) {
	p.mu.Lock()
	screen := p.screen
	p.mu.Unlock()

	var b strings.Builder
	b.WriteString("<html><body>")
	if screen != nil {
		if screen.Title != "" {
			fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(screen.Title))
		}
		for _, n := range screen.Nodes {
			tag := n.Tag
			if tag == "" {
				tag = "div"
			}
			fmt.Fprintf(&b, "<%s>%s</%s>", tag, html.EscapeString(p.textOf(n)), tag)
		}
	}
	b.WriteString("</body></html>")
	return []byte(b.String()), nil
}

// Close implements core.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	onClose := p.onClose
	p.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// Calls returns a snapshot of the call counters.
func (p *Page) Calls() Calls {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Log returns the actions performed, in order.
func (p *Page) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Value returns the text typed into the input addressed by query.
func (p *Page) Value(query string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueLocked(query)
}

// Set stores session data that survives navigation.
func (p *Page) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store[key] = value
}

// Get reads session data.
func (p *Page) Get(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store[key]
}

func (p *Page) valueLocked(query string) string {
	if p.screen == nil {
		return ""
	}
	for _, n := range p.screen.Nodes {
		if n.matches(query) {
			return p.values[n.key()]
		}
	}
	return ""
}

// live checks that el belongs to the current screen load. Caller holds mu.
func (p *Page) live(el core.Element) (*Element, error) {
	if p.closed {
		return nil, errClosed()
	}
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, core.ErrDriverFailure.WithMessage(fmt.Sprintf("foreign element handle %T", el))
	}
	if e.load != p.load {
		return nil, notFound(e.query).WithMessage(fmt.Sprintf("element %s is stale: page navigated", e.query))
	}
	return e, nil
}

func (p *Page) textOf(n *Node) string {
	if n.TextFunc != nil {
		return n.TextFunc(p)
	}
	if n.Input {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.values[n.key()]
	}
	return n.Text
}

func (n *Node) matches(query string) bool {
	for _, q := range n.Queries {
		if q == query {
			return true
		}
	}
	return false
}

func (n *Node) key() string {
	if len(n.Queries) == 0 {
		return ""
	}
	return n.Queries[0]
}

// Provider is an in-memory core.PageProvider.
type Provider struct {
	App     App
	BaseURL string
	// NewPageErr makes NewPage fail.
	NewPageErr error

	mu     sync.Mutex
	pages  []*Page
	closed int
}

// NewProvider creates a provider serving app.
func NewProvider(app App) *Provider {
	return &Provider{App: app, BaseURL: DefaultBaseURL}
}

// NewPage implements core.PageProvider.
func (pr *Provider) NewPage(ctx context.Context) (core.Page, error) {
	if pr.NewPageErr != nil {
		return nil, pr.NewPageErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := NewPage(pr.App, pr.BaseURL)
	p.onClose = func() {
		pr.mu.Lock()
		pr.closed++
		pr.mu.Unlock()
	}

	pr.mu.Lock()
	pr.pages = append(pr.pages, p)
	pr.mu.Unlock()
	return p, nil
}

// Info implements core.PageProvider.
func (pr *Provider) Info() *core.BrowserInfo {
	return &core.BrowserInfo{
		Driver:   "mock",
		Name:     "mock",
		Version:  "1.0",
		Headless: true,
		BaseURL:  pr.BaseURL,
		Viewport: "1280x720",
	}
}

// Close implements core.PageProvider.
func (pr *Provider) Close() error { return nil }

// Pages returns every page handed out so far.
func (pr *Provider) Pages() []*Page {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return append([]*Page(nil), pr.pages...)
}

// Released returns how many pages were closed.
func (pr *Provider) Released() int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.closed
}

// Paths returns the app's paths, sorted.
func (a App) Paths() []string {
	paths := make([]string, 0, len(a))
	for p := range a {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		path = u.Path
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func notFound(selector string) *core.ExecutionError {
	return core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("element not found: %s", selector)).
		WithDetails(map[string]interface{}{"selector": selector})
}

func navigationTimeout(path string, cause error) error {
	return core.ErrNavigationTimeout.
		WithMessage(fmt.Sprintf("navigate %s: page did not become ready", path)).
		WithCause(cause)
}

func errClosed() error {
	return core.ErrDriverFailure.WithMessage("page is closed")
}

func pngPixel() []byte {
	// Minimal valid PNG (1x1 transparent pixel)
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}
}
