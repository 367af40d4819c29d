package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"maskcam/internal/config"
	"maskcam/internal/logging"
	"maskcam/internal/state"
	"maskcam/internal/ui"
	"maskcam/processing/capture"
	"maskcam/processing/session"
)

const Version = "0.1.0"

type options struct {
	configPath string
	endpoint   string
	transport  string
	interval   time.Duration
	logLevel   string
}

func newRootCmd() (*cobra.Command, *options) {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "maskcam",
		Short:         "Live camera preview with remote mask detection",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, *opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", config.DefaultConfigPath, "path to the JSON config file")
	flags.StringVar(&opts.endpoint, "endpoint", "", "detector URL (default from config: "+config.DefaultDetectorURL+")")
	flags.StringVar(&opts.transport, "transport", "", "detector transport: http or ws")
	flags.DurationVar(&opts.interval, "interval", 0, "sampling interval, e.g. 1s")
	flags.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	return cmd, opts
}

// applyFlags lays explicit command line values over cfg. It runs again after
// every config reload so flags keep precedence over the file.
func applyFlags(cmd *cobra.Command, opts options, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("endpoint") {
		cfg.SetDetectorURL(opts.endpoint)
	}
	if flags.Changed("transport") {
		cfg.SetDetectorTransport(opts.transport)
	}
	if flags.Changed("interval") {
		cfg.SetSampleInterval(opts.interval)
	}

	cfg.Normalize()
}

func run(cmd *cobra.Command, opts options) error {
	if err := logging.Init(opts.logLevel); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()

	logger := logging.L()

	cfg, err := config.LoadConfigFile(opts.configPath)
	if err != nil {
		logger.Warnw("config file ignored, using defaults", "path", opts.configPath, "error", err)
	}
	applyFlags(cmd, opts, cfg)

	detector := cfg.GetDetector()
	logger.Infow("starting",
		"version", Version,
		"source", cfg.GetSource(),
		"detector", detector.URL,
		"transport", detector.Transport,
		"interval", cfg.GetSampleInterval(),
	)

	ctx := cmd.Context()

	go func() {
		err := config.Watch(ctx, opts.configPath, cfg, logger, func(c *config.Config) {
			applyFlags(cmd, opts, c)
			logger.Debug("command line overrides reapplied")
		})
		if err != nil {
			logger.Warnw("config watch disabled", "error", err)
		}
	}()

	camera := capture.NewController(cfg, nil, logger)
	sess := session.New(ctx, cfg, camera, state.New(), nil, logger)

	app := ui.CreateApp(ctx, cfg, opts.configPath, camera, sess, logger)
	app.Run()

	return sess.Stop()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, _ := newRootCmd()
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
