package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit status: 0 once the
// pass over all dorks completes, 1 on configuration, input or interruption
// errors.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "dorkr: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := newRunCmd(stdout, stderr)
	root.Use = "dorkr"
	root.Short = "Run search dorks and export the result titles and links"
	root.Long = `dorkr issues search-engine queries ("dorks"), extracts result titles and
links from the returned HTML and writes them to CSV and XLSX files.

Without a subcommand dorkr behaves like "dorkr run".`

	root.AddCommand(newRunCmd(stdout, stderr), newHistoryCmd(stdout, stderr))
	return root
}

// newLogger picks a text handler for terminals and JSON otherwise.
// DORKR_LOG_FORMAT=json|text overrides the detection.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	format := strings.ToLower(os.Getenv("DORKR_LOG_FORMAT"))
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "text"
		}
	}

	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
