// Package cli implements the numdesens command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"numeric-desensitizer/internal/config"
	"numeric-desensitizer/internal/logger"
	"numeric-desensitizer/internal/metrics"
)

// Version info injected via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// resolvedVersion returns Version unless it is "dev" and the build info
// carries a real module version.
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// app carries global flags and the state built from them in PersistentPreRunE.
type app struct {
	cfgFile  string
	logLevel string

	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "numdesens",
		Short: "Mask sensitive numbers in technical documents",
		Long: `numdesens replaces sensitive numeric values in Markdown and other text
documents with placeholders (￥1￥, ￥2￥, ...) while keeping structural numbers
such as section headings, table and figure labels, list markers, dates,
addresses and composite codes intact. A mapping file records every
placeholder so the original document can be restored.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	root.AddCommand(
		newDesensitizeCmd(a),
		newRestoreCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.log = logger.NewWithWriter("CLI", cfg.LogLevel, cmd.ErrOrStderr())
	a.metrics = metrics.New()
	return nil
}

// Execute runs the root command with a context cancelled by SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := notifyContext(context.Background())
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "numdesens %s\n", resolvedVersion())
			fmt.Fprintf(out, "Commit: %s\n", Commit)
			fmt.Fprintf(out, "Built:  %s\n", BuildDate)
			return nil
		},
	}
}

// isDir reports whether path exists and is a directory.
func isDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}
