package export

import (
	"encoding/json"
	"io"

	"github.com/inkhorn/scribe/storage"
)

// JSONExporter exports sessions as pretty-printed JSON.
type JSONExporter struct{}

// Export writes the session to w in JSON format.
func (e *JSONExporter) Export(session *storage.ChatSession, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(session)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
