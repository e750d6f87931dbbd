// surveyd serves the animation-image human evaluation survey.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ukhalilov/ai-survey-app/pkg/config"
	"github.com/ukhalilov/ai-survey-app/pkg/session"
	"github.com/ukhalilov/ai-survey-app/pkg/store"
	"github.com/ukhalilov/ai-survey-app/pkg/tasks"
	"github.com/ukhalilov/ai-survey-app/pkg/web"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands; it exists so tests can drive the binary
// without os.Exit.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}
	switch args[1] {
	case "server":
		return runServer(stderr)
	case "export":
		return runExport(args[2:], stdout, stderr)
	case "hash-token":
		return runHashToken(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: surveyd <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  server      Run the survey server (default)")
	fmt.Fprintln(w, "  export      Write response CSVs to the export directory and exit")
	fmt.Fprintln(w, "  hash-token  Print a bcrypt hash of a token for ADMIN_TOKEN_HASH")
	fmt.Fprintln(w, "  help        Show this help")
}

func setupLogging(level string) {
	var lv slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lv = slog.LevelDebug
	case "WARN", "WARNING":
		lv = slog.LevelWarn
	case "ERROR":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
}

// bootstrap loads configuration, builds the pools, and opens the store.
func bootstrap() (*config.Config, *tasks.Pool, store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	pool := tasks.NewPool(cfg.Survey.Providers, cfg.Survey.SeedLabels, cfg.Filter())
	if err := pool.Reload(); err != nil {
		return nil, nil, nil, fmt.Errorf("build task pools: %w", err)
	}

	st, err := store.OpenSQLite(cfg.DBPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, pool, st, nil
}

func runServer(stderr io.Writer) int {
	cfg, pool, st, err := bootstrap()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer st.Close()

	a, b, c := pool.Counts()
	slog.Info("task pools ready", "pool_a", a, "pool_b", b, "pool_c", c, "storage", cfg.StorageRoot)

	sessions := session.NewManager(cfg.SessionSecret, pool, st, session.Targets{
		A: cfg.ModuleTarget("A"),
		B: cfg.ModuleTarget("B"),
		C: cfg.ModuleTarget("C"),
	}, nil)
	srv := web.NewServer(cfg, pool, st, sessions).NewHTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("survey server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			return 1
		}
	}
	return 0
}

func runExport(args []string, stdout, stderr io.Writer) int {
	cfg, _, st, err := bootstrap()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer st.Close()

	dir := cfg.ExportDir()
	if len(args) > 0 {
		dir = args[0]
	}
	files, err := st.ExportCSV(context.Background(), dir)
	if err != nil {
		fmt.Fprintf(stderr, "export failed: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "no responses to export")
		return 0
	}
	for _, f := range files {
		fmt.Fprintln(stdout, f)
	}
	return 0
}

func runHashToken(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(stderr, "usage: surveyd hash-token <token>")
		return 2
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(stderr, "hash token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(hash))
	return 0
}
