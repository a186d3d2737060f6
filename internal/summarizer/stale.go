package summarizer

import (
	"strings"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// NeedsSummary reports whether a post should be (re)summarized: it has
// content, and either a summary is missing or the content changed after the
// last summarization.
func NeedsSummary(p types.Post) bool {
	if strings.TrimSpace(p.Content) == "" {
		return false
	}
	if p.SummaryShort == "" || p.SummaryLong == "" {
		return true
	}
	if p.UpdatedAt.IsZero() || p.SummaryUpdatedAt.IsZero() {
		return false
	}
	return p.UpdatedAt.After(p.SummaryUpdatedAt)
}

// Stale filters posts down to those that need summarizing.
func Stale(posts []types.Post) []types.Post {
	var out []types.Post
	for _, p := range posts {
		if NeedsSummary(p) {
			out = append(out, p)
		}
	}
	return out
}
