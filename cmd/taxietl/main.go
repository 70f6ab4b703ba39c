package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taxietl/internal/config"
	"taxietl/internal/etlerr"
	"taxietl/internal/logging"
	"taxietl/internal/metrics"
	"taxietl/internal/metrics/datadog"
	"taxietl/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "taxietl/internal/storage/all"
)

const defaultConfigPath = "configs/pipelines/yellow_tripdata.json"

// errInvalidConfig is returned when the linter reports errors.
var errInvalidConfig = errors.New("configuration is invalid")

// options are the flags shared by every subcommand.
type options struct {
	cfgPath string
	envFile string
	verbose bool

	metricsBackend string
	pushGatewayURL string
	datadogAddr    string

	jsonOut bool
}

// main is the entry point for the taxietl binary. The process exit code
// reflects the kind of the first fatal error.
func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	_ = zap.L().Sync()
	os.Exit(etlerr.ExitCode(err))
}

func newRootCmd() *cobra.Command {
	var o options
	var closeLog func()

	root := &cobra.Command{
		Use:           "taxietl",
		Short:         "Load a TLC trip-record Parquet file into a warehouse table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := ""
			if o.verbose {
				level = "debug"
			}
			_, undo, err := logging.New(level)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			closeLog = undo
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if closeLog != nil {
				closeLog()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.cfgPath, "config", defaultConfigPath, "pipeline config JSON path")
	pf.StringVar(&o.envFile, "env-file", "", "dotenv file with TAXIETL_* secrets (default ./.env if present)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logs")

	root.AddCommand(newRunCmd(&o), newValidateCmd(&o), newInspectCmd(&o))
	return root
}

func newRunCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read, normalize and overwrite the destination table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, sec, err := loadPipeline(o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			flush := setupMetrics(o, p.Job)
			defer flush()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			zap.S().Infof("pipeline: job=%s source=%s parser=%s storage=%s table=%s",
				p.Job, p.Source.Kind, p.Parser.Kind, p.Storage.Kind, p.Storage.DB.Table)

			start := time.Now()
			_, err = runStreamed(ctx, p, sec)
			metrics.RecordStep(p.Job, "run", err, time.Since(start))
			if err != nil {
				return err
			}
			zap.S().Infof("completed in %s", time.Since(start).Truncate(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	f.StringVar(&o.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	f.StringVar(&o.datadogAddr, "datadog-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")
	return cmd
}

func newValidateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Lint the pipeline config and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := loadPipeline(o, cmd.ErrOrStderr()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", o.cfgPath)
			return nil
		},
	}
}

// loadPipeline reads the env file and the pipeline, prints lint issues to w,
// and applies secrets. Lint errors stop here.
func loadPipeline(o *options, w io.Writer) (config.Pipeline, config.Secrets, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return config.Pipeline{}, config.Secrets{}, err
	}
	p, err := config.Load(o.cfgPath)
	if err != nil {
		return p, config.Secrets{}, err
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return p, config.Secrets{}, fmt.Errorf("%s: %w", o.cfgPath, errInvalidConfig)
	}

	sec, err := config.LoadSecrets()
	if err != nil {
		return p, sec, err
	}
	zap.S().Debugf("secrets: %s", sec)
	if err := config.ApplySecrets(&p, sec); err != nil {
		return p, sec, err
	}
	return p, sec, nil
}

// setupMetrics installs the metrics backend chosen by flag, then env, and
// returns the function that flushes it at the end of the run. Backend
// failures only disable metrics.
func setupMetrics(o *options, job string) func() {
	backend := pick(o.metricsBackend, os.Getenv("METRICS_BACKEND"), "none")
	if job == "" {
		job = "taxietl"
	}

	switch backend {
	case "pushgateway":
		gwURL := pick(o.pushGatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			zap.S().Warnf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		zap.S().Infof("metrics: url=%v, backend=%v, job_name=%v", gwURL, backend, job)
		metrics.SetBackend(b)
		return flushMetrics

	case "datadog":
		addr := pick(o.datadogAddr, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			GlobalTags: []string{"service:taxietl", "job:" + job},
		})
		if err != nil {
			zap.S().Warnf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		zap.S().Infof("metrics: addr=%v, backend=%v", addr, backend)
		metrics.SetBackend(b)
		return func() {
			flushMetrics()
			if err := b.Close(); err != nil {
				zap.S().Warnf("metrics: close error: %v", err)
			}
		}

	case "none":
		zap.S().Debugf("metrics: disabled")
	default:
		zap.S().Warnf("metrics: unknown backend %q; metrics disabled", backend)
	}
	return func() {}
}

func flushMetrics() {
	if err := metrics.Flush(); err != nil {
		zap.S().Warnf("metrics: flush error: %v", err)
	}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
