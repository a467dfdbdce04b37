// Session archive administration commands.
//
// Information Hiding:
// - Archive backend selection hidden
// - Table and transcript rendering hidden

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/inkhorn/scribe/config"
	"github.com/inkhorn/scribe/export"
	"github.com/inkhorn/scribe/llm"
	"github.com/inkhorn/scribe/storage"
)

// withArchive opens the configured archive, runs fn, and closes it.
func withArchive(opts Options, fn func(*config.Settings, storage.Archive) error) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	archive, closeArchive, err := newArchive(&settings, newLogger(opts.Verbose))
	if err != nil {
		return err
	}
	defer closeArchive()

	return fn(&settings, archive)
}

// ListSessions prints a table of archived sessions, newest first.
func ListSessions(opts Options) error {
	return withArchive(opts, func(_ *config.Settings, archive storage.Archive) error {
		summaries, err := archive.GetAllHistories()
		if err != nil {
			return err
		}
		writeSessionTable(os.Stdout, summaries)
		return nil
	})
}

// ShowSession prints one session as a conversation transcript.
func ShowSession(id string, opts Options) error {
	return withArchive(opts, func(_ *config.Settings, archive storage.Archive) error {
		session, err := archive.GetHistory(id)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("session not found: %s", id)
		}
		writeTranscript(os.Stdout, session)
		return nil
	})
}

// RenameSession gives an archived session a new display name.
func RenameSession(id, newName string, opts Options) error {
	return withArchive(opts, func(_ *config.Settings, archive storage.Archive) error {
		ok, err := archive.RenameHistory(id, newName)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("session not found: %s", id)
		}
		fmt.Printf("Renamed %s to %q\n", id, strings.TrimSpace(newName))
		return nil
	})
}

// DeleteSession removes an archived session.
func DeleteSession(id string, opts Options) error {
	return withArchive(opts, func(_ *config.Settings, archive storage.Archive) error {
		ok, err := archive.DeleteHistory(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("session not found: %s", id)
		}
		fmt.Printf("Deleted %s\n", id)
		return nil
	})
}

// ExportSession writes one session to a file in the given format. An empty
// outPath derives the filename from the session id and format extension.
func ExportSession(id, format, outPath string, opts Options) error {
	return withArchive(opts, func(_ *config.Settings, archive storage.Archive) error {
		session, err := archive.GetHistory(id)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("session not found: %s", id)
		}

		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		if outPath == "" {
			outPath = fmt.Sprintf("%s.%s", session.ID, exporter.Extension())
		}
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := exporter.Export(session, file); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to export session: %w", err)
		}
		if err := file.Close(); err != nil {
			return err
		}

		fmt.Printf("Exported %s to %s\n", id, outPath)
		return nil
	})
}

// CleanupSessions evicts the oldest sessions beyond keep. A negative keep
// uses the configured maxSessions.
func CleanupSessions(keep int, opts Options) error {
	return withArchive(opts, func(settings *config.Settings, archive storage.Archive) error {
		if keep < 0 {
			keep = settings.Archive.MaxSessions
		}

		evicted, err := archive.CleanupOldHistories(keep)
		if err != nil {
			return err
		}
		remaining, err := archive.GetHistoryCount()
		if err != nil {
			return err
		}

		fmt.Printf("Evicted %d session(s), %d remaining\n", evicted, remaining)
		return nil
	})
}

// writeSessionTable renders summaries as an aligned table, relying on the
// archive's newest-first ordering.
func writeSessionTable(w io.Writer, summaries []storage.SessionSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No sessions"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d session(s)", len(summaries))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Created")+"\t"+titleStyle.Render("Modified")+"\t")
	for _, s := range summaries {
		name := s.Name
		if len(name) > 50 {
			name = name[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(s.ID),
			name,
			dateStyle.Render(formatWhen(time.UnixMilli(s.CreatedAt))),
			dateStyle.Render(formatWhen(time.UnixMilli(s.ModifiedAt))))
	}
	_ = tw.Flush()
}

// writeTranscript renders one session as a conversation transcript.
func writeTranscript(w io.Writer, session *storage.ChatSession) {
	fmt.Fprintln(w, headerStyle.Render(session.Name))
	fmt.Fprintln(w, idStyle.Render(session.ID))
	fmt.Fprintf(w, "%s\n\n", dateStyle.Render(fmt.Sprintf("created %s, modified %s",
		formatWhen(time.UnixMilli(session.CreatedAt)),
		formatWhen(time.UnixMilli(session.ModifiedAt)))))

	for _, turn := range session.Contents {
		switch {
		case len(turn.ToolResponses) > 0:
			for _, resp := range turn.ToolResponses {
				fmt.Fprintln(w, toolStyle.Render(fmt.Sprintf("  ← %s %s", resp.Name, marshalArgs(resp.Response))))
			}
		case turn.Role == llm.RoleModel:
			fmt.Fprintln(w, titleStyle.Render("assistant"))
			if turn.Text != "" {
				fmt.Fprintln(w, turn.Text)
			}
			for _, call := range turn.ToolCalls {
				fmt.Fprintln(w, toolStyle.Render(fmt.Sprintf("  → %s %s", call.Name, marshalArgs(call.Args))))
			}
		default:
			fmt.Fprintln(w, promptStyle.Render("you"))
			fmt.Fprintln(w, turn.Text)
		}
		fmt.Fprintln(w)
	}
}

// formatWhen renders a timestamp relative to now: clock time for today,
// weekday within a week, date beyond.
func formatWhen(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}
