package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Paste       bool
	UseEditor   bool
	Undo        bool
	Redo        bool
	Uniquify    bool
	NoAnimation bool
	ConfigPath  string
	Paths       []string
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	// Define flags
	pflag.BoolVarP(&cfg.Paste, "paste", "p", false, "Read the new name list from stdin (pipe) or the clipboard instead of an editor.")
	pflag.BoolVarP(&cfg.UseEditor, "editor", "E", false, "Stage the list in $EDITOR even when a Neovim instance is reachable.")
	pflag.BoolVar(&cfg.Uniquify, "uniquify", false, "Break destination collisions by appending _1, _2, ... instead of rejecting them.")
	pflag.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the spinner and styled summary.")
	pflag.StringVarP(&cfg.ConfigPath, "config", "c", "", "Path to the config file (default: ~/.config/renbuf/config.yaml).")

	// Mutually exclusive history group
	pflag.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last committed batch.")
	pflag.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone batch.")

	pflag.Usage = func() {
		fmt.Println("Usage: renbuf [flags] <file|dir>...")
		fmt.Println("\nStage the selected files as an editable name list, then rename them")
		fmt.Println("in one transaction when the list is saved.")
		fmt.Println("\nExample: renbuf *.jpg")
		fmt.Println("\nFlags:")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	// Validate mutually exclusive flags
	if cfg.Undo && cfg.Redo {
		return nil, fmt.Errorf("error: --undo and --redo are mutually exclusive")
	}

	cfg.Paths = pflag.Args()
	if !cfg.Undo && !cfg.Redo && len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("error: no files selected")
	}

	return cfg, nil
}
