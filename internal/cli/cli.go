// Package cli implements the tamd command: it loads a YAML scenario, runs it
// against a runtime hosted on an event loop, and prints what happened.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danpasecinic/tamd"
	"github.com/danpasecinic/tamd/internal/config"
	"github.com/danpasecinic/tamd/internal/logging"
	"github.com/danpasecinic/tamd/internal/script"
)

var version = "dev"

// ErrReported is returned by run --fail-on-report when the runtime reported
// at least one problem.
var ErrReported = errors.New("runtime reported problems")

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
}

type options struct {
	configFile   string
	failOnReport bool
}

// NewRootCommand builds the command tree. Each call gets its own viper
// instance so commands can be constructed repeatedly in tests.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	config.Bind(v)

	opts := &options{}

	root := &cobra.Command{
		Use:           "tamd",
		Short:         "Run asynchronous module definition scenarios",
		Long:          `tamd runs a YAML scenario of define, require, and alias steps against an asynchronous module runtime and prints the resolved values, the dependency graph, and every problem the runtime reports.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (yaml)")
	flags.Duration("timeout", tamd.DefaultTimeout, "how long a require waits before reporting missing modules")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	_ = v.BindPFlag(config.KeyTimeout, flags.Lookup("timeout"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))

	root.AddCommand(newRunCommand(v, opts), newValidateCommand(), newVersionCommand())
	return root
}

func newRunCommand(v *viper.Viper, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario",
		Long: `Run a scenario file and print its output.

Examples:
  # Run with defaults
  tamd run scenario.yaml

  # Shorter missing-module window and debug logging
  tamd run scenario.yaml --timeout 200ms --log-level debug

  # Exit non-zero if anything was reported
  tamd run scenario.yaml --fail-on-report`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, opts.configFile)
			if err != nil {
				return err
			}

			s, err := script.Load(args[0])
			if err != nil {
				return err
			}

			return runScenario(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, s, opts.failOnReport)
		},
	}
	cmd.Flags().BoolVar(&opts.failOnReport, "fail-on-report", false, "exit with an error if the runtime reported any problem")
	return cmd
}

func runScenario(ctx context.Context, out, errOut io.Writer, cfg config.Config, s *script.Scenario, failOnReport bool) (err error) {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, errOut)

	timeout := cfg.Timeout
	if s.Timeout > 0 {
		timeout = s.Timeout
	}

	var reported atomic.Int64
	counter := tamd.SinkFunc(func(tamd.Report) { reported.Add(1) })

	rt, err := tamd.New(
		tamd.WithTimeout(timeout),
		tamd.WithLogger(logger),
		tamd.WithSink(tamd.MultiSink(tamd.LogSink(logger), counter)),
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, rt.Close(closeCtx))
	}()

	started := time.Now()
	if err := script.NewRunner(rt, out).Run(ctx, s); err != nil {
		return err
	}

	n := reported.Load()
	logger.Info("scenario finished",
		slog.Int("steps", len(s.Steps)),
		slog.Int("modules", rt.Size()),
		slog.Int("pending", rt.Pending()),
		slog.Int64("reports", n),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)

	if failOnReport && n > 0 {
		return fmt.Errorf("%w: %d", ErrReported, n)
	}
	return nil
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check that a scenario file parses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := script.Load(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps\n", args[0], len(s.Steps))
			return err
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "tamd %s\n", version)
			return err
		},
	}
}
