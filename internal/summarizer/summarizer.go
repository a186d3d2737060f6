package summarizer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

const (
	DefaultShortSentences = 3
	DefaultLongSentences  = 7
	DefaultWorkers        = 4
)

// Summary is the pair of summaries computed for one post.
type Summary struct {
	PostID string `json:"post_id"`
	Short  string `json:"short"`
	Long   string `json:"long"`
}

// Summarizer produces short and long summaries and fans work out over posts.
type Summarizer struct {
	short   int
	long    int
	workers int
}

// New creates a summarizer. Non-positive arguments fall back to defaults.
func New(short, long, workers int) *Summarizer {
	if short <= 0 {
		short = DefaultShortSentences
	}
	if long <= 0 {
		long = DefaultLongSentences
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Summarizer{short: short, long: long, workers: workers}
}

// Summarize computes both summaries for a single post.
func (s *Summarizer) Summarize(p types.Post) Summary {
	return Summary{
		PostID: p.ID,
		Short:  Summarize(p.Content, s.short),
		Long:   Summarize(p.Content, s.long),
	}
}

// SinkFunc receives each computed summary. It is called from worker
// goroutines and must be safe for concurrent use.
type SinkFunc func(ctx context.Context, sum Summary) error

// Run summarizes posts concurrently and hands each result to sink. It stops
// at the first sink error or when ctx is cancelled; summaries already handed
// to sink stay handed off.
func (s *Summarizer) Run(ctx context.Context, posts []types.Post, sink SinkFunc) error {
	if len(posts) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, p := range posts {
		if gctx.Err() != nil {
			break
		}
		p := p // per-iteration copy; go 1.21 loop semantics
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := sink(gctx, s.Summarize(p)); err != nil {
				return fmt.Errorf("failed to store summary for %s: %w", p.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Patch converts a summary into the partial update written to the store.
func (sum Summary) Patch(now time.Time) types.PostPatch {
	return types.SummaryPatch(sum.Short, sum.Long, now)
}
