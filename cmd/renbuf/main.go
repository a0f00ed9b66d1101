package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/renbuf/renbuf/cli"
	"github.com/renbuf/renbuf/internal/logging"
	"github.com/renbuf/renbuf/internal/tui"
	"github.com/renbuf/renbuf/renbuf"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app, err := renbuf.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	conf := app.Config()
	if err := logging.Init(logging.Config{
		Level:      conf.Log.Level,
		Format:     conf.Log.Format,
		OutputPath: conf.Log.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	// The external editor takes over the terminal, so the TUI only runs
	// for modes that leave it free.
	if cfg.NoAnimation || app.NeedsTerminal() {
		runPlain(app)
		return
	}

	model := tui.New(app)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func runPlain(app *renbuf.App) {
	summary, err := app.Execute()
	if err != nil {
		if e, ok := err.(*renbuf.DetailedError); ok {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", e.Stack)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if summary.Message != "" {
		fmt.Println(summary.Message)
	}
	for _, f := range summary.Renamed {
		fmt.Printf("renamed: %s\n", f)
	}
	for _, f := range summary.Failed {
		fmt.Printf("failed: %s\n", f)
	}
	if summary.Skipped > 0 {
		fmt.Printf("unchanged: %d\n", summary.Skipped)
	}
}
