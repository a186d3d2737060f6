package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/logging"
	"github.com/ibeckermayer/boardjanitor/internal/metrics"
	"github.com/ibeckermayer/boardjanitor/internal/notifier"
	"github.com/ibeckermayer/boardjanitor/internal/report"
	"github.com/ibeckermayer/boardjanitor/internal/spam"
	"github.com/ibeckermayer/boardjanitor/internal/store"
	"github.com/ibeckermayer/boardjanitor/internal/summarizer"
	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// reportMaxPosts caps the per-post listing in cached run reports.
const reportMaxPosts = 200

// App holds the application state.
type App struct {
	mu sync.RWMutex

	// immutable after creation
	backend store.Backend
	log     *logrus.Logger
	cache   *store.RunCache
	notify  *notifier.Notifier
	now     func() time.Time
	dryRun  bool

	// Mutable fields - use getSnapshot() for concurrent access.
	config     *config.Config
	detector   *spam.Detector
	summarizer *summarizer.Summarizer
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config     *config.Config
	detector   *spam.Detector
	summarizer *summarizer.Summarizer
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:     a.config,
		detector:   a.detector,
		summarizer: a.summarizer,
	}
}

// Option configures an App.
type Option func(*App)

// WithDryRun computes verdicts and summaries without writing them back.
func WithDryRun(dryRun bool) Option {
	return func(a *App) { a.dryRun = dryRun }
}

// WithClock overrides the time source for review and summary timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithRunCache sets where run snapshots go when debug.cache_runs is on.
func WithRunCache(c *store.RunCache) Option {
	return func(a *App) { a.cache = c }
}

// WithNotifier mails the sweep report whenever a sweep marks posts.
func WithNotifier(n *notifier.Notifier) Option {
	return func(a *App) { a.notify = n }
}

// New creates a new App instance. The backend stays owned by the caller.
func New(cfg *config.Config, backend store.Backend, logger *logrus.Logger, opts ...Option) *App {
	a := &App{
		backend: backend,
		log:     logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.config = cfg
	a.detector = a.newDetector(cfg)
	a.summarizer = newSummarizer(cfg)
	return a
}

func (a *App) newDetector(cfg *config.Config) *spam.Detector {
	return spam.New(
		spam.WithClock(a.now),
		spam.WithRules(
			spam.BurstRule{Window: cfg.Spam.BurstWindow(), Threshold: cfg.Spam.BurstThreshold},
			spam.DuplicateRule{Threshold: cfg.Spam.DuplicateThreshold},
		),
	)
}

func newSummarizer(cfg *config.Config) *summarizer.Summarizer {
	return summarizer.New(cfg.Summary.ShortSentences, cfg.Summary.LongSentences, cfg.Summary.Workers)
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// SpamOutcome summarizes one spam sweep.
type SpamOutcome struct {
	Total    int
	Marked   int
	DryRun   bool
	Verdicts []spam.Verdict
}

// RunSpamSweep fetches the spam collection, classifies the batch and marks
// flagged posts. Posts are written in fetch order; the first write error
// stops the sweep.
func (a *App) RunSpamSweep(ctx context.Context) (*SpamOutcome, error) {
	s := a.getSnapshot()
	name := s.config.Store.SpamCollection
	log := a.log.WithFields(logging.Fields{"job": "spam", "collection": name})
	col := a.backend.Collection(name)

	posts, err := col.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	metrics.PostsScanned.WithLabelValues("spam").Add(float64(len(posts)))

	res := s.detector.Detect(posts)
	for _, id := range res.Defaulted {
		log.WithField("post", id).Warn("Post has no usable createdAt, evaluating at current time")
	}
	metrics.DefaultedTimestamps.Add(float64(len(res.Defaulted)))

	flagged := res.Flagged(posts)
	out := &SpamOutcome{Total: len(posts), DryRun: a.dryRun, Verdicts: flagged}

	now := a.now()
	for _, v := range flagged {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if a.dryRun {
			log.WithFields(logging.Fields{"post": v.PostID, "reason": v.Reason}).Info("Would mark as spam")
			continue
		}
		if err := col.UpdatePost(ctx, v.PostID, types.SpamPatch(v.Reason, now)); err != nil {
			return out, fmt.Errorf("failed to mark %s: %w", v.PostID, err)
		}
		out.Marked++
		metrics.PostsMarkedSpam.WithLabelValues(string(v.Reason)).Inc()
	}

	log.WithFields(logging.Fields{
		"total":   out.Total,
		"flagged": len(flagged),
		"marked":  out.Marked,
		"dry_run": a.dryRun,
	}).Info("Spam sweep finished")

	if s.config.Debug.CacheRuns || (a.notify != nil && out.Marked > 0) {
		a.reportSpamRun(log, s.config.Debug.CacheRuns, name, posts, res, flagged)
	}
	return out, nil
}

// reportSpamRun caches the verdicts and rendered report when cacheRuns is
// set, and mails the report when a notifier is configured and posts were
// marked. Failures are logged; the sweep itself already succeeded.
func (a *App) reportSpamRun(log *logrus.Entry, cacheRuns bool, name string, posts []types.Post, res spam.Result, flagged []spam.Verdict) {
	if cacheRuns && a.cache != nil {
		if path, err := store.SaveStepOutput(a.cache, store.StepSpamVerdicts, res); err != nil {
			log.WithError(err).Warn("Failed to cache verdicts")
		} else {
			log.WithField("path", path).Debug("Cached verdicts")
		}
	}

	byID := make(map[string]types.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	run := report.SpamRun{
		Collection: name,
		DryRun:     a.dryRun,
		Total:      res.Total,
		Eligible:   res.Eligible,
		Defaulted:  res.Defaulted,
	}
	for _, v := range flagged {
		run.Flagged = append(run.Flagged, report.Flagged{Post: byID[v.PostID], Reason: v.Reason, Rule: v.Rule})
	}

	b, err := report.New(reportMaxPosts)
	if err != nil {
		log.WithError(err).Warn("Failed to create report builder")
		return
	}
	r, err := b.BuildSpam(run, a.now())
	if err != nil {
		log.WithError(err).Warn("Failed to build report")
		return
	}
	if cacheRuns && a.cache != nil {
		a.saveReport(log, store.StepSpamReport, r)
	}
	if a.notify != nil && !a.dryRun && len(flagged) > 0 {
		if err := a.notify.SendReport(r); err != nil {
			log.WithError(err).Warn("Failed to send report")
		} else {
			log.Info("Report sent")
		}
	}
}

// SummaryOutcome summarizes one summary refresh.
type SummaryOutcome struct {
	Processed int
	Updated   int
	DryRun    bool
}

// RunSummaries refreshes short and long summaries for every post whose
// summary is missing or older than its content.
func (a *App) RunSummaries(ctx context.Context) (*SummaryOutcome, error) {
	s := a.getSnapshot()
	name := s.config.Store.SummaryCollection
	log := a.log.WithFields(logging.Fields{"job": "summary", "collection": name})
	col := a.backend.Collection(name)

	posts, err := col.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	metrics.PostsScanned.WithLabelValues("summary").Add(float64(len(posts)))

	stale := summarizer.Stale(posts)
	out := &SummaryOutcome{Processed: len(posts), DryRun: a.dryRun}

	var (
		updated atomic.Int64
		mu      sync.Mutex
		written []summarizer.Summary
	)
	now := a.now()
	sink := func(ctx context.Context, sum summarizer.Summary) error {
		if a.dryRun {
			log.WithField("post", sum.PostID).Debug("Would update summary")
		} else {
			if err := col.UpdatePost(ctx, sum.PostID, sum.Patch(now)); err != nil {
				return err
			}
			updated.Add(1)
			metrics.SummariesUpdated.Inc()
		}
		mu.Lock()
		written = append(written, sum)
		mu.Unlock()
		return nil
	}

	err = s.summarizer.Run(ctx, stale, sink)
	out.Updated = int(updated.Load())
	if err != nil {
		return out, err
	}

	log.WithFields(logging.Fields{"processed": out.Processed, "updated": out.Updated}).Info("Summary refresh finished")

	if s.config.Debug.CacheRuns {
		a.cacheSummaryRun(log, name, out, written)
	}
	return out, nil
}

func (a *App) cacheSummaryRun(log *logrus.Entry, name string, out *SummaryOutcome, written []summarizer.Summary) {
	if a.cache == nil {
		return
	}
	sort.Slice(written, func(i, j int) bool { return written[i].PostID < written[j].PostID })
	if path, err := store.SaveStepOutput(a.cache, store.StepSummaries, written); err != nil {
		log.WithError(err).Warn("Failed to cache summaries")
	} else {
		log.WithField("path", path).Debug("Cached summaries")
	}

	run := report.SummaryRun{
		Collection: name,
		DryRun:     out.DryRun,
		Processed:  out.Processed,
		Updated:    out.Updated,
	}
	for _, sum := range written {
		run.Posts = append(run.Posts, types.Post{ID: sum.PostID, SummaryShort: sum.Short, SummaryLong: sum.Long})
	}

	b, err := report.New(reportMaxPosts)
	if err != nil {
		log.WithError(err).Warn("Failed to create report builder")
		return
	}
	r, err := b.BuildSummary(run, a.now())
	if err != nil {
		log.WithError(err).Warn("Failed to build report")
		return
	}
	a.saveReport(log, store.StepSummaryReport, r)
}

func (a *App) saveReport(log *logrus.Entry, step store.StepName, r *report.Report) {
	path, err := a.cache.SaveTextOutput(step, r.Body, ".md")
	if err != nil {
		log.WithError(err).Warn("Failed to cache report")
		return
	}
	log.WithField("path", path).Info("Report saved")
}

// RunAll runs the spam sweep, then the summary refresh.
func (a *App) RunAll(ctx context.Context) error {
	if _, err := a.RunSpamSweep(ctx); err != nil {
		return err
	}
	_, err := a.RunSummaries(ctx)
	return err
}

// ReloadConfig reloads the configuration from path (or the default
// location when empty) and rebuilds the detector and summarizer. The store
// backend is not reopened.
func (a *App) ReloadConfig(path string) error {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(path)
	}
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	detector := a.newDetector(cfg)
	sum := newSummarizer(cfg)

	a.mu.Lock()
	a.config = cfg
	a.detector = detector
	a.summarizer = sum
	a.mu.Unlock()

	a.log.SetLevel(logging.ParseLevel(cfg.LogLevel))
	a.log.Info("Configuration reloaded")
	return nil
}
