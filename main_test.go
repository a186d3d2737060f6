package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/scheduler"
)

// writeConfig points a jsonfile-backed config at a temp directory.
func writeConfig(t *testing.T, mutate func(*config.Config)) (cfgPath, dataDir string) {
	t.Helper()
	for _, key := range []string{config.EnvStoreDriver, config.EnvSQLitePath, config.EnvJSONDir, config.EnvDatabaseURL, config.EnvLogLevel} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	dataDir = filepath.Join(dir, "collections")
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Store.Driver = config.DriverJSONFile
	cfg.Store.JSONDir = dataDir
	if mutate != nil {
		mutate(cfg)
	}
	cfgPath = filepath.Join(dir, "config.toml")
	require.NoError(t, cfg.SaveTo(cfgPath))
	return cfgPath, dataDir
}

const burstFixture = `[
	{"id": "1", "authorKey": "k", "content": "one", "createdAt": "2024-03-01T12:00:00Z"},
	{"id": "2", "authorKey": "k", "content": "two", "createdAt": "2024-03-01T12:01:00Z"},
	{"id": "3", "authorKey": "k", "content": "three", "createdAt": "2024-03-01T12:02:00Z"},
	{"id": "4", "authorKey": "k", "content": "four", "createdAt": "2024-03-01T12:03:00Z"},
	{"id": "5", "authorKey": "k", "content": "five", "createdAt": "2024-03-01T12:04:00Z"}
]`

func TestSpamCommand(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, nil)
	require.NoError(t, os.MkdirAll(dataDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "anon_posts.json"), []byte(burstFixture), 0600))

	require.NoError(t, run([]string{"boardjanitor", "--config", cfgPath, "spam"}))

	data, err := os.ReadFile(filepath.Join(dataDir, "anon_posts.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"spamReason": "burst_posting"`)
}

func TestSpamCommandDryRun(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, nil)
	require.NoError(t, os.MkdirAll(dataDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "anon_posts.json"), []byte(burstFixture), 0600))

	require.NoError(t, run([]string{"boardjanitor", "--config", cfgPath, "--dry-run", "spam"}))

	data, err := os.ReadFile(filepath.Join(dataDir, "anon_posts.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "spamStatus")
}

func TestInvalidConfigIsFatal(t *testing.T) {
	cfgPath, _ := writeConfig(t, func(c *config.Config) { c.Store.JSONDir = "" })

	err := run([]string{"boardjanitor", "--config", cfgPath, "run"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestImportThenExport(t *testing.T) {
	cfgPath, _ := writeConfig(t, nil)

	in := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(in, []byte(`[{"authorKey": "k", "content": "no id yet"}]`), 0600))
	require.NoError(t, run([]string{"boardjanitor", "--config", cfgPath, "import", "--collection", "posts", in}))

	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, run([]string{"boardjanitor", "--config", cfgPath, "export", "--collection", "posts", out}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content": "no id yet"`)
	assert.NotContains(t, string(data), `"id": ""`)
}

func TestApplyScheduleMovesChangedJobs(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	e := &env{log: logger}

	sched, err := scheduler.New("UTC", logger)
	require.NoError(t, err)
	noop := func(ctx context.Context) error { return nil }
	jobs := map[string]scheduler.Job{scheduler.JobSpam: noop, scheduler.JobSummary: noop}

	prev := config.Default().Schedule
	require.NoError(t, sched.AddSpamJob(prev.SpamCron, noop))
	require.NoError(t, sched.AddSummaryJob(prev.SummaryCron, noop))
	sched.Start()
	defer sched.Stop()

	next := prev
	next.SpamCron = "30 4 * * *"
	next.SummaryCron = "not a schedule"
	applySchedule(e, sched, jobs, prev, next)

	list := sched.ListJobs()
	require.Len(t, list, 2)
	assert.Equal(t, scheduler.JobSpam, list[0].Name)
	assert.Equal(t, 4, list[0].NextRun.Hour())
	assert.Equal(t, 30, list[0].NextRun.Minute())
	// the bad expression leaves the hourly summary job in place
	assert.Equal(t, scheduler.JobSummary, list[1].Name)
	assert.Equal(t, 0, list[1].NextRun.Minute())
}
