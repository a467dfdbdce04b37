package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
	"github.com/inkhorn/scribe/storage"
)

// MarkdownExporter exports sessions as a role-headed transcript.
type MarkdownExporter struct{}

// Export writes the session to w in Markdown format.
func (e *MarkdownExporter) Export(session *storage.ChatSession, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", session.Name)
	_, _ = fmt.Fprintf(w, "**ID:** %s  \n", session.ID)
	_, _ = fmt.Fprintf(w, "**Created:** %s  \n", formatMillis(session.CreatedAt))
	_, _ = fmt.Fprintf(w, "**Modified:** %s  \n", formatMillis(session.ModifiedAt))
	_, _ = fmt.Fprintf(w, "**Turns:** %d\n\n", len(session.Contents))
	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, turn := range session.Contents {
		if err := writeTurn(w, turn); err != nil {
			return err
		}
		if i < len(session.Contents)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}

func writeTurn(w io.Writer, turn history.Turn) error {
	switch {
	case len(turn.ToolResponses) > 0:
		_, _ = fmt.Fprintf(w, "**Tool results:**\n\n")
		for _, resp := range turn.ToolResponses {
			_, _ = fmt.Fprintf(w, "- `%s`: `%s`\n", resp.Name, compactJSON(resp.Response))
		}
		_, _ = fmt.Fprintf(w, "\n")
	case turn.Role == llm.RoleModel:
		_, _ = fmt.Fprintf(w, "**Assistant:**\n\n")
		if turn.Text != "" {
			_, _ = fmt.Fprintf(w, "%s\n\n", escapeMarkdown(turn.Text))
		}
		for _, call := range turn.ToolCalls {
			_, _ = fmt.Fprintf(w, "*Tool call:* `%s` `%s`\n\n", call.Name, compactJSON(call.Args))
		}
	default:
		_, _ = fmt.Fprintf(w, "**User:**\n\n%s\n\n", escapeMarkdown(turn.Text))
	}
	return nil
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

func compactJSON(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// escapeMarkdown escapes emphasis markers outside fenced code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))
	inCodeBlock := false

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "```"):
			inCodeBlock = !inCodeBlock
		case !inCodeBlock:
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}
