package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/boardjanitor/internal/metrics"
)

// Job names
const (
	JobSpam    = "spam"
	JobSummary = "summary"
)

// jobTimeout bounds a single job run.
const jobTimeout = 30 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	log      *logrus.Entry
	timezone *time.Location

	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	lastRun map[string]time.Time
}

// New creates a new scheduler with the given timezone
func New(timezone string, logger *logrus.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	// Overlapping runs of the same job are skipped.
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:     c,
		log:      logger.WithField("component", "scheduler"),
		jobs:     make(map[string]cron.EntryID),
		lastRun:  make(map[string]time.Time),
		timezone: loc,
	}, nil
}

// AddJob adds a job with a cron schedule
// schedule format: "*/10 * * * *" (every ten minutes)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		s.run(ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"job": name, "schedule": schedule}).Info("Added job")

	return nil
}

// AddSpamJob schedules the spam sweep.
func (s *Scheduler) AddSpamJob(schedule string, job Job) error {
	return s.AddJob(JobSpam, schedule, job)
}

// AddSummaryJob schedules the summary refresh.
func (s *Scheduler) AddSummaryJob(schedule string, job Job) error {
	return s.AddJob(JobSummary, schedule, job)
}

// run executes job with logging and metrics. Cron ticks discard the
// returned error; RunNow hands it to the caller.
func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	log := s.log.WithField("job", name)
	log.Info("Starting job")
	start := time.Now()
	s.mu.Lock()
	s.lastRun[name] = start
	s.mu.Unlock()

	err := job(ctx)
	elapsed := time.Since(start)
	metrics.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobFailures.WithLabelValues(name).Inc()
		log.WithError(err).Error("Job failed")
		return err
	}
	log.WithField("elapsed", elapsed.Round(time.Millisecond)).Info("Job completed")
	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.log.WithField("job", name).Info("Removed job")
	}
}

// Reschedule replaces the schedule of a named job. An invalid schedule
// leaves the current entry in place.
func (s *Scheduler) Reschedule(name, schedule string, job Job) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", name, err)
	}
	s.RemoveJob(name)
	return s.AddJob(name, schedule, job)
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("Stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	return s.run(ctx, name, job)
}

// ListJobs returns info about scheduled jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: s.lastRun[name],
				})
				break
			}
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// JobInfo contains information about a scheduled job. LastRun is the start
// of the most recent run, scheduled or immediate, and survives Reschedule.
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}
