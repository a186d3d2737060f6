package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/ibeckermayer/boardjanitor/internal/app"
	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/logging"
	"github.com/ibeckermayer/boardjanitor/internal/notifier"
	"github.com/ibeckermayer/boardjanitor/internal/store"
)

func main() {
	if err := run(os.Args); err != nil {
		logrus.WithError(err).Error("exiting")
		if errors.Is(err, config.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	a := &cli.App{
		Name:  "boardjanitor",
		Usage: "batch spam sweeps and extractive summaries for board posts",
	}

	a.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to config.toml (defaults to the user config dir)",
			EnvVars: []string{"JANITOR_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (overrides log_level and LOG_LEVEL)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "compute verdicts and summaries without writing them",
		},
	}

	a.Commands = []*cli.Command{
		runCmd,
		spamCmd,
		summarizeCmd,
		scheduleCmd,
		importCmd,
		exportCmd,
		configCmd,
	}

	return a.Run(args)
}

// env is the per-invocation setup shared by commands.
type env struct {
	log        *logrus.Logger
	cfg        *config.Config
	configPath string
	backend    store.Backend
}

func (e *env) Close() {
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.log.WithError(err).Warn("Failed to close store")
		}
	}
}

// setup loads .env files and config, validates it and opens the store.
// Invalid configuration is fatal before any store is opened.
func setup(cctx *cli.Context) (*env, error) {
	logger := logging.NewLogger(cctx.String("log-level"))
	config.LoadEnv(logger)

	path := cctx.String("config")
	cfg, err := loadConfig(logger, path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if lvl := cctx.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := store.Open(cctx.Context, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	logger.WithField("driver", cfg.Store.Driver).Debug("Store opened")

	return &env{log: logger, cfg: cfg, configPath: path, backend: backend}, nil
}

// loadConfig reads path, or the default location when path is empty. A
// missing default file means first run: defaults are written out.
func loadConfig(logger *logrus.Logger, path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := config.Load()
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg = config.Default()
	if err := cfg.Save(); err != nil {
		logger.WithError(err).Warn("Could not save default config")
	} else {
		p, _ := config.ConfigPath()
		logger.WithField("path", p).Info("Created default config")
	}
	return cfg, nil
}

func (e *env) newApp(cctx *cli.Context) *app.App {
	opts := []app.Option{app.WithDryRun(cctx.Bool("dry-run"))}
	if e.cfg.Debug.CacheRuns {
		cache, err := store.DefaultRunCache()
		if err != nil {
			e.log.WithError(err).Warn("Run cache unavailable")
		} else {
			opts = append(opts, app.WithRunCache(cache))
		}
	}
	if e.cfg.Notify.Enabled {
		n, err := notifier.NewFromConfig(e.cfg.Notify)
		if err != nil {
			e.log.WithError(err).Warn("Notifications disabled")
		} else {
			opts = append(opts, app.WithNotifier(n))
		}
	}
	return app.New(e.cfg, e.backend, e.log, opts...)
}

// withApp wraps a command action that needs a ready App.
func withApp(fn func(ctx context.Context, e *env, a *app.App, cctx *cli.Context) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cctx.Context, e, e.newApp(cctx), cctx)
	}
}
