// Command execution for CLI commands.
//
// Information Hiding:
// - Chat loop and stream rendering hidden
// - Session persistence cadence hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/inkhorn/scribe/agent"
	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/storage"
	"github.com/inkhorn/scribe/tools"
)

// Options holds CLI execution options.
type Options struct {
	ConfigPath string
	Provider   string
	Verbose    bool
}

// Chat starts an interactive chat session. A non-empty sessionID resumes an
// archived session; otherwise the first completed exchange creates one.
func Chat(ctx context.Context, sessionID string, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	logger := newLogger(opts.Verbose)

	provider, err := newProvider(&settings)
	if err != nil {
		return err
	}

	archive, closeArchive, err := newArchive(&settings, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	manager, err := newManager(&settings, logger)
	if err != nil {
		return err
	}
	manager.DiscoverAll(ctx)
	defer manager.DisconnectAll()

	registry, err := newRegistry(&settings)
	if err != nil {
		return err
	}

	// One scanner serves both the REPL and the approval prompts so
	// buffered input is never split between two readers.
	scanner := bufio.NewScanner(os.Stdin)
	approver := newTerminalApprover(scanner, os.Stdout)

	executor, err := newExecutor(registry, manager, &settings, approver, logger)
	if err != nil {
		return err
	}

	var session *storage.ChatSession
	hist := history.New()
	if sessionID != "" {
		session, err = archive.GetHistory(sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if session == nil {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		hist = history.NewFromTurns(session.Contents)
		fmt.Printf("Resuming %s (%d turns)\n", titleStyle.Render(session.Name), len(session.Contents))
		fmt.Println(idStyle.Render(session.ID))
		fmt.Println()
	}

	a := buildAgent(provider, &settings, hist, executor, registry, manager, logger)

	fmt.Printf("Chat with %s (%s). Type 'exit' or Ctrl-D to quit.\n\n",
		settings.LLM.Provider, settings.LLM.Model)

	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		if err := runExchange(ctx, a, input, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			continue
		}
		fmt.Println()

		created, err := persistTurns(archive, &session, a.History().Turns())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save session: %v\n", err)
		} else if created {
			fmt.Println(idStyle.Render("saved as " + session.ID))
			fmt.Println()
		}
	}

	if settings.Archive.MaxSessions > 0 {
		evicted, err := archive.CleanupOldHistories(settings.Archive.MaxSessions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: session cleanup failed: %v\n", err)
		} else if evicted > 0 {
			fmt.Println(idStyle.Render(fmt.Sprintf("evicted %d old session(s)", evicted)))
		}
	}

	return scanner.Err()
}

// runExchange streams one exchange to out: text fragments as they arrive,
// tool-call batches as marked lines before each execution round.
func runExchange(ctx context.Context, a *agent.Agent, input string, out io.Writer) error {
	inText := false
	var streamErr error

	for chunk, err := range a.Converse(ctx, input) {
		if err != nil {
			streamErr = err
			break
		}
		switch {
		case len(chunk.ToolCalls) > 0:
			if inText {
				fmt.Fprintln(out)
				inText = false
			}
			for _, call := range chunk.ToolCalls {
				fmt.Fprintln(out, toolStyle.Render(fmt.Sprintf("→ %s %s", call.Name, marshalArgs(call.Args))))
			}
		case chunk.Text != "":
			fmt.Fprint(out, chunk.Text)
			inText = true
		}
	}

	if inText {
		fmt.Fprintln(out)
	}
	return streamErr
}

// persistTurns writes the completed exchange through the archive: the first
// successful exchange creates the session, later ones update it. A session
// deleted underneath a live chat is recreated under its old name. Reports
// whether a session was created.
func persistTurns(archive storage.Archive, session **storage.ChatSession, turns []history.Turn) (bool, error) {
	if *session != nil {
		ok, err := archive.UpdateHistory((*session).ID, turns)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
		created, err := archive.CreateHistory((*session).Name, turns)
		if err != nil {
			return false, err
		}
		*session = created
		return true, nil
	}

	created, err := archive.CreateHistory("", turns)
	if err != nil {
		return false, err
	}
	*session = created
	return true, nil
}

// ListTools lists built-in tools and, when tool servers are configured,
// the discovered catalog under qualified names.
func ListTools(ctx context.Context, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	logger := newLogger(opts.Verbose)

	registry, err := newRegistry(&settings)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Built-in tools"))
	fmt.Println()

	metas := registry.List()
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	for _, meta := range metas {
		printToolMetadata(meta, opts.Verbose)
	}

	if settings.MCPConfigPath == "" {
		return nil
	}

	manager, err := newManager(&settings, logger)
	if err != nil {
		return err
	}
	manager.DiscoverAll(ctx)
	defer manager.DisconnectAll()

	discovered := manager.AllTools()
	names := make([]string, 0, len(discovered))
	for name := range discovered {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println(headerStyle.Render("Discovered tools"))
	fmt.Println()
	if len(names) == 0 {
		fmt.Println("  (none - no tool server reachable)")
		return nil
	}
	for _, name := range names {
		fmt.Printf("  %s\n", titleStyle.Render(name))
		if desc := discovered[name].Description; desc != "" {
			fmt.Printf("    %s\n", desc)
		}
		fmt.Println()
	}
	return nil
}

// printToolMetadata prints one tool entry, with parameters when verbose.
func printToolMetadata(meta tools.ToolMetadata, verbose bool) {
	fmt.Printf("  %s\n", titleStyle.Render(meta.Name))
	fmt.Printf("    %s\n", meta.Description)

	if verbose && len(meta.Parameters) > 0 {
		fmt.Println("    Parameters:")
		for _, param := range meta.Parameters {
			req := ""
			if param.Required {
				req = "*"
			}
			fmt.Printf("      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
		}
	}
	fmt.Println()
}

// ListServers lists the configured tool servers without connecting.
func ListServers(opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	manager, err := newManager(&settings, newLogger(opts.Verbose))
	if err != nil {
		return err
	}

	configs := manager.Configs()
	if len(configs) == 0 {
		fmt.Println(headerStyle.Render("No tool servers configured"))
		fmt.Println(idStyle.Render("Set mcpConfig in the config file to register servers."))
		return nil
	}

	ids := make([]string, 0, len(configs))
	for id := range configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println(headerStyle.Render(fmt.Sprintf("%d server(s) configured", len(configs))))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Transport")+"\t"+titleStyle.Render("Target")+"\t")
	for _, id := range ids {
		cfg := configs[id]
		transport := "stdio"
		target := strings.TrimSpace(cfg.Command + " " + strings.Join(cfg.Args, " "))
		if cfg.URL != "" {
			transport = "http"
			target = cfg.URL
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", idStyle.Render(id), transport, target)
	}
	return w.Flush()
}

// ShowServerStats connects every configured server and reports connection
// health and per-server catalog sizes.
func ShowServerStats(ctx context.Context, opts Options) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	manager, err := newManager(&settings, newLogger(opts.Verbose))
	if err != nil {
		return err
	}
	manager.DiscoverAll(ctx)
	defer manager.DisconnectAll()

	stats := manager.ServerStats()
	fmt.Println(headerStyle.Render("Tool servers"))
	fmt.Printf("  Total: %d\n", stats.Total)
	fmt.Printf("  Connected: %d\n", stats.Connected)
	fmt.Printf("  Disconnected: %d\n", stats.Disconnected)
	fmt.Printf("  Transitional: %d\n", stats.Transitional)
	fmt.Println()

	configs := manager.Configs()
	ids := make([]string, 0, len(configs))
	for id := range configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		conn, ok := manager.Connection(id)
		if !ok {
			fmt.Printf("  %s: %s\n", titleStyle.Render(id), "unreachable")
			continue
		}
		fmt.Printf("  %s: %s, %d tool(s), %d prompt(s)\n",
			titleStyle.Render(id), conn.Status(), len(conn.Tools()), len(conn.Prompts()))
	}
	return nil
}
