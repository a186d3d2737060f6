package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"

	"github.com/ibeckermayer/boardjanitor/internal/app"
	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/scheduler"
	"github.com/ibeckermayer/boardjanitor/internal/store"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the spam sweep, then the summary refresh, once",
	Action: withApp(func(ctx context.Context, e *env, a *app.App, cctx *cli.Context) error {
		return a.RunAll(ctx)
	}),
}

var spamCmd = &cli.Command{
	Name:  "spam",
	Usage: "run the spam sweep once",
	Action: withApp(func(ctx context.Context, e *env, a *app.App, cctx *cli.Context) error {
		_, err := a.RunSpamSweep(ctx)
		return err
	}),
}

var summarizeCmd = &cli.Command{
	Name:  "summarize",
	Usage: "refresh stale summaries once",
	Action: withApp(func(ctx context.Context, e *env, a *app.App, cctx *cli.Context) error {
		_, err := a.RunSummaries(ctx)
		return err
	}),
}

var scheduleCmd = &cli.Command{
	Name:  "schedule",
	Usage: "run both jobs on their cron schedules and serve metrics",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "run-now",
			Usage: "run both jobs once before waiting for the schedule",
		},
	},
	Action: withApp(func(ctx context.Context, e *env, a *app.App, cctx *cli.Context) error {
		sched, err := scheduler.New(e.cfg.Schedule.Timezone, e.log)
		if err != nil {
			return err
		}
		jobs := jobFuncs(a)
		if err := sched.AddSpamJob(e.cfg.Schedule.SpamCron, jobs[scheduler.JobSpam]); err != nil {
			return err
		}
		if err := sched.AddSummaryJob(e.cfg.Schedule.SummaryCron, jobs[scheduler.JobSummary]); err != nil {
			return err
		}

		var srv *http.Server
		if addr := e.cfg.Schedule.MetricsListen; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				e.log.WithField("addr", addr).Info("Serving metrics")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					e.log.WithError(err).Error("Metrics endpoint failed")
				}
			}()
		}

		if cctx.Bool("run-now") {
			_ = sched.RunNow(ctx, scheduler.JobSpam, jobs[scheduler.JobSpam])
			_ = sched.RunNow(ctx, scheduler.JobSummary, jobs[scheduler.JobSummary])
		}

		sched.Start()
		logJobs(e, sched)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigs)

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case sig := <-sigs:
				if sig != syscall.SIGHUP {
					e.log.WithField("signal", sig.String()).Info("Shutting down")
					break loop
				}
				prev := a.Config().Schedule
				if err := a.ReloadConfig(e.configPath); err != nil {
					e.log.WithError(err).Error("Config reload failed, keeping current settings")
					continue
				}
				applySchedule(e, sched, jobs, prev, a.Config().Schedule)
			}
		}

		<-sched.Stop().Done()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
		return nil
	}),
}

var importCmd = &cli.Command{
	Name:      "import",
	Usage:     "upsert posts from a JSON array file into a collection",
	ArgsUsage: "<file.json>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "collection",
			Usage: "target collection (defaults to store.spam_collection)",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return cli.Exit("usage: boardjanitor import <file.json>", 1)
		}
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := os.Open(cctx.Args().First())
		if err != nil {
			return err
		}
		defer f.Close()

		posts, err := store.DecodePosts(f)
		if err != nil {
			return err
		}

		name := collectionFlag(cctx, e.cfg)
		col := e.backend.Collection(name)
		assigned := 0
		for _, p := range posts {
			if p.ID == "" {
				p.ID = uuid.NewString()
				assigned++
			}
			if cctx.Bool("dry-run") {
				continue
			}
			if err := col.SavePost(cctx.Context, p); err != nil {
				return err
			}
		}
		e.log.WithField("collection", name).
			WithField("imported", len(posts)).
			WithField("assigned_ids", assigned).
			Info("Import finished")
		return nil
	},
}

var exportCmd = &cli.Command{
	Name:      "export",
	Usage:     "write a collection as a JSON array to a file or stdout",
	ArgsUsage: "[file.json]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "collection",
			Usage: "source collection (defaults to store.spam_collection)",
		},
	},
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		posts, err := e.backend.Collection(collectionFlag(cctx, e.cfg)).FetchAll(cctx.Context)
		if err != nil {
			return err
		}

		out := os.Stdout
		if cctx.NArg() > 0 {
			f, err := os.Create(cctx.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return store.EncodePosts(out, posts)
	},
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "manage the config file",
	Subcommands: []*cli.Command{
		{
			Name:  "init",
			Usage: "write the default config (refuses to overwrite without --force)",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "force"},
			},
			Action: func(cctx *cli.Context) error {
				path := cctx.String("config")
				if path == "" {
					var err error
					if path, err = config.ConfigPath(); err != nil {
						return err
					}
				}
				if _, err := os.Stat(path); err == nil && !cctx.Bool("force") {
					return cli.Exit(fmt.Sprintf("%s already exists", path), 1)
				}
				if err := config.Default().SaveTo(path); err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			},
		},
		{
			Name:  "check",
			Usage: "load and validate the config, including environment overrides",
			Action: func(cctx *cli.Context) error {
				e, err := setup(cctx)
				if err != nil {
					return err
				}
				defer e.Close()
				fmt.Printf("ok: driver=%s spam=%s summary=%s\n",
					e.cfg.Store.Driver, e.cfg.Store.SpamCollection, e.cfg.Store.SummaryCollection)
				return nil
			},
		},
	},
}

func jobFuncs(a *app.App) map[string]scheduler.Job {
	return map[string]scheduler.Job{
		scheduler.JobSpam: func(ctx context.Context) error {
			_, err := a.RunSpamSweep(ctx)
			return err
		},
		scheduler.JobSummary: func(ctx context.Context) error {
			_, err := a.RunSummaries(ctx)
			return err
		},
	}
}

// applySchedule moves jobs whose cron expression changed on reload. The
// timezone and metrics listener only change on restart.
func applySchedule(e *env, sched *scheduler.Scheduler, jobs map[string]scheduler.Job, prev, next config.ScheduleConfig) {
	if prev.Timezone != next.Timezone {
		e.log.WithField("timezone", next.Timezone).Warn("Timezone change needs a restart")
	}
	changed := false
	for name, specs := range map[string][2]string{
		scheduler.JobSpam:    {prev.SpamCron, next.SpamCron},
		scheduler.JobSummary: {prev.SummaryCron, next.SummaryCron},
	} {
		if specs[0] == specs[1] {
			continue
		}
		if err := sched.Reschedule(name, specs[1], jobs[name]); err != nil {
			e.log.WithError(err).WithField("job", name).Error("Keeping previous schedule")
			continue
		}
		changed = true
	}
	if changed {
		logJobs(e, sched)
	}
}

func logJobs(e *env, sched *scheduler.Scheduler) {
	for _, j := range sched.ListJobs() {
		entry := e.log.WithField("job", j.Name).WithField("next_run", j.NextRun.Format(time.RFC3339))
		if !j.LastRun.IsZero() {
			entry = entry.WithField("last_run", j.LastRun.Format(time.RFC3339))
		}
		entry.Info("Job scheduled")
	}
}

func collectionFlag(cctx *cli.Context, cfg *config.Config) string {
	if name := cctx.String("collection"); name != "" {
		return name
	}
	return cfg.Store.SpamCollection
}
