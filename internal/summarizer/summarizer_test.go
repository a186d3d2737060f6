package summarizer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, "", Summarize("", 3))
	assert.Equal(t, "", Summarize("  \n\t  ", 3))
	assert.Equal(t, "", Summarize("One. Two.", 0))
}

func TestSummarize_ShortCircuitKeepsAllSentences(t *testing.T) {
	text := "First  sentence here.\nSecond one!   Third?"
	assert.Equal(t, "First sentence here. Second one! Third?", Summarize(text, 3))
	assert.Equal(t, "First sentence here. Second one! Third?", Summarize(text, 5))
}

func TestSplitSentences(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: nil},
		{text: "no terminal punctuation", out: []string{"no terminal punctuation"}},
		{text: "One. Two! Three? Four", out: []string{"One.", "Two!", "Three?", "Four"}},
		{text: "Wait... what?! Ok.", out: []string{"Wait...", "what?!", "Ok."}},
		{text: "version 1.2 is out. yes", out: []string{"version 1.2 is out.", "yes"}},
		{text: "오늘은 맑음。 내일은 비！ 모레는？ 몰라", out: []string{"오늘은 맑음。", "내일은 비！", "모레는？", "몰라"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, SplitSentences(fix.text), "text %q", fix.text)
	}
}

func TestTokenize(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Go is a fun language, I think!", out: []string{"go", "is", "fun", "language", "think"}},
		{text: "서울 날씨 ㅋㅋ 좋다", out: []string{"서울", "날씨", "ㅋㅋ", "좋다"}},
		{text: "e-mail me@x.io", out: []string{"mail", "me", "io"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, Tokenize(fix.text), "text %q", fix.text)
	}
}

func TestSummarize_PreservesNarrativeOrder(t *testing.T) {
	text := "Cats cats cats. " +
		"Dogs bark loudly. " +
		"Cats love cats. " +
		"Birds sing quietly. " +
		"Cats and cats."

	got := Summarize(text, 3)
	assert.Equal(t, "Cats cats cats. Cats love cats. Cats and cats.", got)
}

func TestSummarize_TiesFavourEarlierSentences(t *testing.T) {
	text := "Alpha beta. Gamma delta. Epsilon zeta. Eta theta."
	assert.Equal(t, "Alpha beta. Gamma delta.", Summarize(text, 2))
}

func TestSummarize_SentenceWithoutTokens(t *testing.T) {
	text := "!! ?? Real words here. Real words again. I a."
	assert.NotPanics(t, func() {
		got := Summarize(text, 2)
		assert.Equal(t, "Real words here. Real words again.", got)
	})
}

func TestNeedsSummary(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	fixtures := []struct {
		name string
		post types.Post
		want bool
	}{
		{name: "empty content", post: types.Post{Content: "   "}, want: false},
		{name: "no summary yet", post: types.Post{Content: "text"}, want: true},
		{name: "only short summary", post: types.Post{Content: "text", SummaryShort: "s"}, want: true},
		{
			name: "updated after summary",
			post: types.Post{Content: "text", SummaryShort: "s", SummaryLong: "l", UpdatedAt: t0.Add(time.Second), SummaryUpdatedAt: t0},
			want: true,
		},
		{
			name: "updated at same time",
			post: types.Post{Content: "text", SummaryShort: "s", SummaryLong: "l", UpdatedAt: t0, SummaryUpdatedAt: t0},
			want: false,
		},
		{
			name: "updated before summary",
			post: types.Post{Content: "text", SummaryShort: "s", SummaryLong: "l", UpdatedAt: t0, SummaryUpdatedAt: t0.Add(time.Hour)},
			want: false,
		},
		{
			name: "no update time",
			post: types.Post{Content: "text", SummaryShort: "s", SummaryLong: "l", SummaryUpdatedAt: t0},
			want: false,
		},
	}

	for _, fix := range fixtures {
		t.Run(fix.name, func(t *testing.T) {
			assert.Equal(t, fix.want, NeedsSummary(fix.post))
		})
	}
}

func TestSummarizer_ShortAndLong(t *testing.T) {
	text := "S1 one. S2 two. S3 three. S4 four. S5 five. S6 six. S7 seven. S8 eight. S9 nine."
	s := New(3, 7, 1)
	sum := s.Summarize(types.Post{ID: "p1", Content: text})

	assert.Equal(t, "p1", sum.PostID)
	assert.Len(t, SplitSentences(sum.Short), 3)
	assert.Len(t, SplitSentences(sum.Long), 7)
}

func TestSummarizer_RunFansOut(t *testing.T) {
	posts := []types.Post{
		{ID: "a", Content: "Alpha."},
		{ID: "b", Content: "Beta."},
		{ID: "c", Content: "Gamma."},
	}

	var mu sync.Mutex
	var got []string
	err := New(0, 0, 2).Run(context.Background(), posts, func(ctx context.Context, sum Summary) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, sum.PostID+"="+sum.Short)
		return nil
	})
	require.NoError(t, err)

	sort.Strings(got)
	assert.Equal(t, []string{"a=Alpha.", "b=Beta.", "c=Gamma."}, got)
}

func TestSummarizer_RunStopsOnSinkError(t *testing.T) {
	posts := []types.Post{{ID: "a", Content: "Alpha."}}
	boom := errors.New("boom")

	err := New(0, 0, 1).Run(context.Background(), posts, func(ctx context.Context, sum Summary) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSummarizer_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New(0, 0, 1).Run(ctx, []types.Post{{ID: "a", Content: "Alpha."}}, func(ctx context.Context, sum Summary) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
