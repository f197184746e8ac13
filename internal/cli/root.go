// Package cli implements the scrapq command line on top of cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox/service"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/scrapq/pkg/metrics"
)

var version = "dev"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	verbose    bool

	cfg     *config.Config
	metrics *metrics.Metrics
}

// newRootCommand builds the scrapq command tree around a.
func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scrapq",
		Short: "Full-text search over Scrapbox page bundles",
		Long: `scrapq imports a Scrapbox-style JSON bundle into an on-disk index,
answers keyword queries over page titles and bodies, and fetches a page body
by the address printed in search results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ~/"+config.DefaultFile+")")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	})

	root.AddCommand(
		newIndexCmd(a),
		newSearchCmd(a),
		newGetCmd(a),
		newVerifyCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line with os.Args and returns the error of the
// failed command, if any. The metrics textfile is written whether or not the
// command succeeded.
func Execute(ctx context.Context) error {
	a := &app{}
	return a.execute(ctx, newRootCommand(a))
}

func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	var result *multierror.Error
	if err := root.ExecuteContext(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := a.flushMetrics(); err != nil {
		result = multierror.Append(result, err)
	}
	if result == nil {
		return nil
	}
	if len(result.Errors) == 1 {
		return result.Errors[0]
	}
	return result
}

// load reads the configuration and installs logging. It runs once per
// invocation, from the subcommands that need an index.
func (a *app) load(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}
	path := a.configPath
	if path == "" {
		def, err := config.DefaultPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(def); err == nil {
			path = def
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: checking config file %s: %w", apperrors.ErrConfig, def, err)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.metrics = metrics.New()
	slog.Debug("configuration loaded",
		"config", path,
		"index_path", cfg.IndexPath,
	)
	return nil
}

func (a *app) service() *service.Service {
	return service.New(service.Options{
		IndexPath:       a.cfg.IndexPath,
		SegmentMaxDocs:  a.cfg.Indexer.SegmentMaxDocs,
		SegmentMaxBytes: a.cfg.Indexer.SegmentMaxBytes,
		Parallelism:     a.cfg.Search.Parallelism,
		MaxLimit:        a.cfg.Search.MaxLimit,
		Metrics:         a.metrics,
	})
}

func (a *app) flushMetrics() error {
	if a.cfg == nil || a.metrics == nil || a.cfg.Metrics.Textfile == "" {
		return nil
	}
	return a.metrics.WriteTextfile(a.cfg.Metrics.Textfile)
}

// argsExactly wraps cobra.ExactArgs so a wrong argument count is a usage
// error.
func argsExactly(n int) cobra.PositionalArgs {
	return usageArgs(cobra.ExactArgs(n))
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
		}
		return nil
	}
}
