package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

var reportTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBuildSpam(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)

	run := SpamRun{
		Collection: "anon_posts",
		Total:      10,
		Eligible:   9,
		Flagged: []Flagged{
			{Post: types.Post{ID: "p1", AuthorKey: "k1", Content: "buy now"}, Reason: types.ReasonBurstPosting, Rule: "burst"},
			{Post: types.Post{ID: "p2", AuthorKey: "k2", Content: "buy now"}, Reason: types.ReasonDuplicateContent, Rule: "duplicate"},
			{Post: types.Post{ID: "p3", AuthorKey: "k1", Content: "buy now"}, Reason: types.ReasonBurstPosting, Rule: "burst"},
		},
		Defaulted: []string{"p9"},
	}

	r, err := b.BuildSpam(run, reportTime)
	require.NoError(t, err)

	assert.Equal(t, "Spam sweep: anon_posts", r.Title)
	assert.Equal(t, []string{"p1", "p2", "p3"}, r.PostIDs)
	assert.Contains(t, r.Body, "Posts fetched: 10")
	assert.Contains(t, r.Body, "Marked as spam: 3")
	assert.Contains(t, r.Body, "burst_posting: 2")
	assert.Contains(t, r.Body, "duplicate_content: 1")
	assert.Contains(t, r.Body, "Missing creation time: 1")
	assert.Contains(t, r.Body, "| p2 | k2 | duplicate | buy now |")
	assert.NotContains(t, r.Body, "| p3 |")
	assert.Contains(t, r.Body, "...and 1 more.")
	assert.NotContains(t, r.Body, "dry run")
}

func TestBuildSpamEmptyDryRun(t *testing.T) {
	b, err := New(0)
	require.NoError(t, err)

	r, err := b.BuildSpam(SpamRun{Collection: "anon_posts", DryRun: true, Total: 4, Eligible: 4}, reportTime)
	require.NoError(t, err)
	assert.Contains(t, r.Body, "dry run")
	assert.Contains(t, r.Body, "Marked as spam: 0")
	assert.NotContains(t, r.Body, "| Post |")
	assert.Empty(t, r.PostIDs)
}

func TestBuildSummary(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)

	run := SummaryRun{
		Collection: "posts",
		Processed:  5,
		Updated:    1,
		Posts:      []types.Post{{ID: "s1", SummaryShort: "First sentence. Second one."}},
	}
	r, err := b.BuildSummary(run, reportTime)
	require.NoError(t, err)
	assert.Contains(t, r.Body, "Posts processed: 5")
	assert.Contains(t, r.Body, "## s1")
	assert.Contains(t, r.Body, "First sentence. Second one.")
	assert.Equal(t, []string{"s1"}, r.PostIDs)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b", excerpt(10, "a\n\n b"))
	long := strings.Repeat("가", 20)
	got := excerpt(10, long)
	assert.Equal(t, strings.Repeat("가", 7)+"...", got)
}
