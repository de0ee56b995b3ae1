package driven

import "context"

// TextExtractor reads the plain text of a document.
// Unreadable or unsupported files are reported as domain.ErrExtraction.
type TextExtractor interface {
	// Extract returns the full text of the file at path.
	Extract(ctx context.Context, path string) (string, error)
}
