// Package cmd implements the xmindctl command line.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/xmindctl/internal/config"
	"github.com/agentic-research/xmindctl/internal/errs"
	"github.com/agentic-research/xmindctl/internal/logging"
	"github.com/agentic-research/xmindctl/internal/mindmap"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// app carries the state shared by every command. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
	store  *mindmap.Store

	// fs is the filesystem archives live on. Paths handed to it are
	// absolute.
	fs billy.Filesystem
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "xmindctl",
		Short:         "Read and edit XMind mind maps from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default $"+config.EnvVar+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output")

	root.AddCommand(
		newCreateCmd(a),
		newSheetsCmd(a),
		newTopicsCmd(a),
		newEntriesCmd(a),
		newShowCmd(a),
		newInsertCmd(a),
		newBackgroundCmd(a),
		newQueryCmd(a),
		newFindCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return errs.Wrap(errs.KindInvalidInput, "config", a.configPath, err)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errs.Wrap(errs.KindInvalidInput, "config", a.configPath, err)
	}
	if a.verbose {
		level = slog.LevelDebug
	}

	a.cfg = cfg
	a.logger = logging.New(stderr, level)
	if a.fs == nil {
		a.fs = osfs.New("/")
	}
	a.store = mindmap.NewStore(a.fs, a.logger)
	a.store.Version = Version
	a.store.Resolver.Strict = cfg.Addressing.Strict
	return nil
}

// abs makes a command-line path absolute so it can be opened through fs.
func abs(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := filepath.Abs(path)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, "path", path, err)
	}
	return p, nil
}

// absAll applies abs to every path.
func absAll(paths ...*string) error {
	for _, p := range paths {
		v, err := abs(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Execute runs the root command and exits with the code of the error kind.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// report prints err and returns the exit code for it.
func report(w io.Writer, err error) int {
	kind := errs.KindOf(err)
	fmt.Fprintf(w, "error [%s]: %v\n", kind, err)
	return kind.ExitCode()
}
