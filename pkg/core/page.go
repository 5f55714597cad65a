package core

import (
	"context"
)

// Page is a single browser tab (or test double) owned by one run.
// Implementations: playwright (pkg/driver/browser), in-memory mock (pkg/driver/mock).
// The executor handles flow logic and bounded waits; Page just performs
// individual actions against the document.
type Page interface {
	// Navigate loads path (resolved against the provider's base URL) and
	// blocks until the page is ready or ctx expires. Returns
	// ErrNavigationTimeout if the page never becomes ready.
	Navigate(ctx context.Context, path string) error

	// FindElement probes the current document once for selector.
	// Returns ErrElementNotFound if nothing matches right now.
	FindElement(ctx context.Context, selector string) (Element, error)

	// Type replaces the value of an input element with text.
	Type(ctx context.Context, el Element, text string) error

	// Click clicks the element.
	Click(ctx context.Context, el Element) error

	// ReadText returns the text content of the element.
	ReadText(ctx context.Context, el Element) (string, error)

	// URL returns the current page URL.
	URL() string

	ArtifactCollector

	// Close releases the page. Safe to call more than once.
	Close() error
}

// Element is an opaque handle to a located element.
type Element interface {
	// Selector is the query the element was located with.
	Selector() string
}

// PageProvider hands out pages. Each run acquires its own page and
// releases it when done.
type PageProvider interface {
	NewPage(ctx context.Context) (Page, error)
	Info() *BrowserInfo
	Close() error
}

// BrowserInfo contains browser and engine details
type BrowserInfo struct {
	Driver   string `json:"driver"`             // playwright, mock
	Name     string `json:"name"`               // chromium, firefox, webkit
	Version  string `json:"version,omitempty"`  // Browser version
	Headless bool   `json:"headless"`           // Headless mode
	BaseURL  string `json:"baseUrl,omitempty"`  // Base URL paths are resolved against
	Viewport string `json:"viewport,omitempty"` // e.g. "1280x720"
}
