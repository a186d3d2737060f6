package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// backends returns every backend available in this environment. Postgres
// only runs when JANITOR_TEST_POSTGRES_URL is set.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	sq, err := NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	js, err := NewJSONFile(filepath.Join(dir, "collections"))
	require.NoError(t, err)

	out := map[string]Backend{
		"memory":   NewMemory(),
		"sqlite":   sq,
		"jsonfile": js,
	}
	if url := os.Getenv("JANITOR_TEST_POSTGRES_URL"); url != "" {
		pg, err := NewPostgres(context.Background(), url)
		require.NoError(t, err)
		_, err = pg.Pool.Exec(context.Background(), "DELETE FROM posts WHERE collection LIKE 'test_%'")
		require.NoError(t, err)
		out["postgres"] = pg
	}
	t.Cleanup(func() {
		for _, b := range out {
			b.Close()
		}
	})
	return out
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			col := b.Collection("test_" + uuid.NewString()[:8])

			require.NoError(t, col.SavePost(ctx, types.Post{ID: "a", AuthorKey: "k1", Content: "first", CreatedAt: created}))
			require.NoError(t, col.SavePost(ctx, types.Post{ID: "b", AuthorKey: "k2", Content: "second"}))

			posts, err := col.FetchAll(ctx)
			require.NoError(t, err)
			require.Len(t, posts, 2)
			assert.Equal(t, "a", posts[0].ID)
			assert.Equal(t, "b", posts[1].ID)
			assert.True(t, posts[0].CreatedAt.Equal(created))
			assert.True(t, posts[1].CreatedAt.IsZero())
			assert.False(t, posts[0].IsSpam())
		})
	}
}

func TestBackendUpdateMerges(t *testing.T) {
	ctx := context.Background()
	reviewed := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			col := b.Collection("test_" + uuid.NewString()[:8])
			require.NoError(t, col.SavePost(ctx, types.Post{ID: "a", AuthorKey: "k1", Content: "hello", SummaryShort: "keep me"}))

			require.NoError(t, col.UpdatePost(ctx, "a", types.SpamPatch(types.ReasonBurstPosting, reviewed)))

			posts, err := col.FetchAll(ctx)
			require.NoError(t, err)
			require.Len(t, posts, 1)
			p := posts[0]
			assert.Equal(t, types.SpamStatusSpam, p.SpamStatus)
			assert.Equal(t, types.ReasonBurstPosting, p.SpamReason)
			assert.True(t, p.SpamReviewedAt.Equal(reviewed))
			assert.Equal(t, "hello", p.Content)
			assert.Equal(t, "keep me", p.SummaryShort)
		})
	}
}

func TestBackendUpdateUnknownID(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			col := b.Collection("test_" + uuid.NewString()[:8])
			err := col.UpdatePost(ctx, "missing", types.SummaryPatch("s", "l", time.Now()))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			suffix := uuid.NewString()[:8]
			anon := b.Collection("test_anon_" + suffix)
			named := b.Collection("test_posts_" + suffix)
			require.NoError(t, anon.SavePost(ctx, types.Post{ID: "x", Content: "anon"}))

			posts, err := named.FetchAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, posts)
		})
	}
}

func TestJSONFileLenientTimestamps(t *testing.T) {
	dir := t.TempDir()
	raw := `[
		{"id": "iso", "authorKey": "k", "content": "a", "createdAt": "2024-03-01T12:00:00Z", "extra": 42},
		{"id": "loose", "authorKey": "k", "content": "b", "createdAt": "2024-03-01 12:00:00"},
		{"id": "seconds", "content": "c", "createdAt": {"_seconds": 1709294400, "_nanoseconds": 0}},
		{"id": "epoch", "content": "d", "createdAt": 1709294400},
		{"id": "bad", "content": "e", "createdAt": "not a date"},
		{"id": "missing"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anon_posts.json"), []byte(raw), 0600))

	js, err := NewJSONFile(dir)
	require.NoError(t, err)
	col := js.Collection("anon_posts")

	posts, err := col.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 6)

	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, p := range posts[:4] {
		assert.True(t, p.CreatedAt.Equal(want), "post %s: got %v", p.ID, p.CreatedAt)
	}
	assert.True(t, posts[4].CreatedAt.IsZero())
	assert.True(t, posts[5].CreatedAt.IsZero())
	assert.Equal(t, "", posts[5].AuthorKey)
	assert.Equal(t, "", posts[5].Content)

	// unknown fields survive a merge
	require.NoError(t, col.UpdatePost(context.Background(), "iso", types.SpamPatch("", want)))
	data, err := os.ReadFile(filepath.Join(dir, "anon_posts.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"extra": 42`)
	assert.Contains(t, string(data), `"spamReason": "rule_match"`)
}

func TestJSONFileNumericScalars(t *testing.T) {
	dir := t.TempDir()
	raw := `[
		{"id": 101, "authorKey": 123, "content": 42, "createdAt": 1709294400},
		null,
		{"id": 102, "authorKey": 456, "content": "hi", "views": 1000000},
		{"id": "flag", "authorKey": true}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anon_posts.json"), []byte(raw), 0600))

	js, err := NewJSONFile(dir)
	require.NoError(t, err)
	col := js.Collection("anon_posts")

	posts, err := col.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, "101", posts[0].ID)
	assert.Equal(t, "123", posts[0].AuthorKey)
	assert.Equal(t, "42", posts[0].Content)
	assert.True(t, posts[0].CreatedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "102", posts[1].ID)
	assert.Equal(t, "456", posts[1].AuthorKey)
	assert.Equal(t, "true", posts[2].AuthorKey)

	// numeric ids are addressable and large numbers keep their literal form
	require.NoError(t, col.UpdatePost(context.Background(), "102", types.SpamPatch(types.ReasonBurstPosting, time.Now())))
	assert.ErrorIs(t, col.UpdatePost(context.Background(), "", types.SpamPatch("", time.Now())), ErrNotFound)

	data, err := os.ReadFile(filepath.Join(dir, "anon_posts.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"views": 1000000`)
	assert.Contains(t, string(data), `"id": 102`)

	posts, err = col.FetchAll(context.Background())
	require.NoError(t, err)
	assert.False(t, posts[0].IsSpam())
	assert.True(t, posts[1].IsSpam())
}

func TestDecodePostsNumericScalars(t *testing.T) {
	posts, err := DecodePosts(strings.NewReader(`[{"id": 7, "authorKey": 9007199254740993}, null]`))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "7", posts[0].ID)
	assert.Equal(t, "9007199254740993", posts[0].AuthorKey)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestRunCacheLatest(t *testing.T) {
	c := NewRunCache(t.TempDir())
	tick := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	_, err := c.LatestStepFile(StepSpamVerdicts)
	assert.Error(t, err)

	_, err = SaveStepOutput(c, StepSpamVerdicts, []string{"a"})
	require.NoError(t, err)
	second, err := SaveStepOutput(c, StepSpamVerdicts, []string{"a", "b"})
	require.NoError(t, err)

	got, path, err := LoadLatestStepOutput[[]string](c, StepSpamVerdicts)
	require.NoError(t, err)
	assert.Equal(t, second, path)
	assert.Equal(t, []string{"a", "b"}, got)

	txt, err := c.SaveTextOutput(StepSpamReport, "report", ".md")
	require.NoError(t, err)
	assert.Equal(t, ".md", filepath.Ext(txt))
}
