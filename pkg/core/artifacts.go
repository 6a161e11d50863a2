// Package core provides the execution model types for edgeqa-runner.
package core

// Attachment represents a debug artifact produced during step execution
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, response
	ContentType string `json:"contentType"` // MIME type: image/png, application/json, text/plain
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentResponse   = "response"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
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

// NewResponseAttachment creates an HTTP response body attachment
func NewResponseAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentResponse,
		ContentType: ContentTypeJSON,
		Path:        path,
		Body:        data,
	}
}
