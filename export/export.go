// Package export renders archived sessions to user-facing formats.
package export

import (
	"fmt"
	"io"

	"github.com/inkhorn/scribe/storage"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(session *storage.ChatSession, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json)", format)
	}
}
