// Package main provides the scribe CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/inkhorn/scribe/cli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	provider   string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "scribe",
		Short: "Streaming LLM chat with tool calling and persistent sessions",
		Long: `A conversation engine for the terminal.

scribe streams model output as it is generated, lets the model call
built-in tools and tools discovered from MCP servers (with per-tool
approval policies), and archives every conversation so it can be
resumed, renamed, exported, or pruned later.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default ~/.scribe/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(serversCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		ConfigPath: configPath,
		Provider:   provider,
		Verbose:    verbose,
	}
}

func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

The model's reply streams as it is generated. Tool calls appear inline;
tools under the "ask" policy prompt for approval before running. Each
completed exchange is saved to the session archive, so an interrupted
chat loses at most the message in flight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), sessionID, options())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to resume")

	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage archived chat sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsRenameCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	cmd.AddCommand(sessionsExportCmd())
	cmd.AddCommand(sessionsCleanupCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListSessions(options())
		},
	}
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ShowSession(args[0], options())
		},
	}
}

func sessionsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename [id] [name]",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RenameSession(args[0], args[1], options())
		},
	}
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DeleteSession(args[0], options())
		},
	}
}

func sessionsExportCmd() *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a session to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ExportSession(args[0], format, outPath, options())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "Export format (md, json)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default <id>.<ext>)")

	return cmd
}

func sessionsCleanupCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Evict the oldest sessions beyond the retention limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.CleanupSessions(keep, options())
		},
	}

	cmd.Flags().IntVar(&keep, "keep", -1, "Sessions to keep (default: configured maxSessions)")

	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List built-in and discovered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(context.Background(), options())
		},
	}
}

func serversCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Inspect configured tool servers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured servers without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListServers(options())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Connect every server and report health and catalog sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ShowServerStats(context.Background(), options())
		},
	})

	return cmd
}
