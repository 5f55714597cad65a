// Package core provides the execution model types for webflow-runner.
package core

// Attachment represents a debug artifact captured during step execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, page
	ContentType string `json:"contentType"` // MIME type: image/png, text/html
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentPage       = "page"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeHTML = "text/html"
	ContentTypeText = "text/plain"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewPageAttachment creates a page source (HTML) attachment
func NewPageAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentPage,
		ContentType: ContentTypeHTML,
		Path:        path,
		Body:        data,
	}
}

// ArtifactConfig controls when artifacts are captured
type ArtifactConfig struct {
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnSuccess bool `yaml:"captureOnSuccess" json:"captureOnSuccess"` // Default: false

	Screenshot  bool `yaml:"screenshot" json:"screenshot"`   // Default: true
	PageContent bool `yaml:"pageContent" json:"pageContent"` // Default: true
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnSuccess: false,
		Screenshot:       true,
		PageContent:      true,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status StepStatus) bool {
	switch status {
	case StatusFailed, StatusErrored:
		return c.CaptureOnFailure
	case StatusPassed:
		return c.CaptureOnSuccess
	default:
		return false
	}
}

// ArtifactCollector captures debug artifacts from a page
type ArtifactCollector interface {
	// CaptureScreenshot takes a screenshot and returns PNG data
	CaptureScreenshot() ([]byte, error)

	// CaptureContent returns the current document HTML
	CaptureContent() ([]byte, error)
}

// NullArtifactCollector is a no-op implementation for testing
type NullArtifactCollector struct{}

// CaptureScreenshot returns nil (no-op)
func (n NullArtifactCollector) CaptureScreenshot() ([]byte, error) { return nil, nil }

// CaptureContent returns nil (no-op)
func (n NullArtifactCollector) CaptureContent() ([]byte, error) { return nil, nil }
