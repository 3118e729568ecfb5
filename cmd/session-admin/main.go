// ABOUTME: Admin CLI for inspecting and managing stored agent sessions
// ABOUTME: Operates directly on the configured document store

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-sessions/internal/config"
	"github.com/2389/coven-sessions/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "list":
		err = cmdList(args)
	case "get":
		err = cmdGet(args)
	case "create":
		err = cmdCreate(args)
	case "delete":
		err = cmdDelete(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`session-admin - manage stored agent sessions

Usage:
  session-admin list <app> <user>                    List a user's sessions
  session-admin get <app> <user> <session> [N]       Show a session (last N events)
  session-admin create <app> <user> [session-id]     Create a session
  session-admin delete <app> <user> <session>        Delete a session and its events

Environment:
  SESSIONS_CONFIG     Path to a YAML config file
  SESSIONS_STORE_URI  Store URI (overridden by SESSIONS_CONFIG)

Without either, a SQLite store at ~/.local/share/coven/sessions.db is used.`)
}

// loadConfig resolves configuration from the environment.
// Priority: SESSIONS_CONFIG file > SESSIONS_STORE_URI > default SQLite path.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("SESSIONS_CONFIG"); path != "" {
		return config.Load(path)
	}

	cfg := config.Default()
	// Without a config file, store access logs would drown the
	// command output
	cfg.Logging.Level = "warn"
	if uri := os.Getenv("SESSIONS_STORE_URI"); uri != "" {
		cfg.Store.URI = uri
		return cfg, nil
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	cfg.Store.URI = "sqlite://" + filepath.Join(dataDir, "coven", "sessions.db")
	return cfg, nil
}

func openService() (*session.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(setupLogger(cfg.Logging))
	return session.Open(cfg.Store.URI, session.WithDeletePageSize(cfg.Store.DeletePageSize))
}

// setupLogger builds a logger from the logging configuration.
// Logs go to stderr so they never interleave with command output.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func cmdList(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: session-admin list <app> <user>")
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	sessions, err := svc.List(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION ID\tLAST UPDATE\tSTATE KEYS")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\n",
			s.ID,
			s.LastUpdateTime.Format(time.RFC3339),
			len(s.State),
		)
	}
	return w.Flush()
}

func cmdGet(args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return fmt.Errorf("usage: session-admin get <app> <user> <session> [N]")
	}

	var opts *session.GetOptions
	if len(args) == 4 {
		n, err := strconv.Atoi(args[3])
		if err != nil || n <= 0 {
			return fmt.Errorf("event count must be a positive integer, got %q", args[3])
		}
		opts = &session.GetOptions{NumRecentEvents: n}
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	sess, err := svc.Get(context.Background(), args[0], args[1], args[2], opts)
	if err != nil {
		return err
	}
	if sess == nil {
		color.Yellow("Session not found.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Printf("Session %s\n", sess.ID)
	fmt.Printf("  App:         %s\n", sess.AppName)
	fmt.Printf("  User:        %s\n", sess.UserID)
	fmt.Printf("  Last update: %s\n", sess.LastUpdateTime.Format(time.RFC3339))

	state, err := json.MarshalIndent(sess.State, "  ", "  ")
	if err != nil {
		return fmt.Errorf("rendering state: %w", err)
	}
	bold.Println("State (merged):")
	fmt.Printf("  %s\n", state)

	bold.Printf("Events (%d):\n", len(sess.Events))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range sess.Events {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d delta keys\n",
			e.Timestamp.Format(time.RFC3339),
			e.ID,
			e.Author,
			len(e.StateDelta),
		)
	}
	return w.Flush()
}

func cmdCreate(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: session-admin create <app> <user> [session-id]")
	}

	sessionID := ""
	if len(args) == 3 {
		sessionID = args[2]
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	sess, err := svc.Create(context.Background(), args[0], args[1], nil, sessionID)
	if err != nil {
		return err
	}

	color.Green("Created session %s", sess.ID)
	return nil
}

func cmdDelete(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: session-admin delete <app> <user> <session>")
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Delete(context.Background(), args[0], args[1], args[2]); err != nil {
		return err
	}

	color.Green("Deleted session %s", args[2])
	return nil
}
