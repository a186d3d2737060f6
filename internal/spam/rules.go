package spam

import (
	"sort"
	"time"

	"github.com/ibeckermayer/boardjanitor/internal/textnorm"
	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// Candidate is an eligible post with its detection timestamp resolved.
// Index is the post's position in the input batch.
type Candidate struct {
	Index int
	Post  types.Post
	At    time.Time
}

// Rule flags posts in a batch of eligible candidates. Rules never see posts
// that are already marked spam.
type Rule interface {
	Name() string
	Reason() types.SpamReason
	Flag(cands []Candidate) []string
}

// sortByTime orders candidates ascending by timestamp, keeping input order
// for equal timestamps.
func sortByTime(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].At.Before(cands[j].At)
	})
}

// BurstRule flags authors that post Threshold or more times inside a
// trailing Window. The first Threshold-1 posts of each window are kept.
type BurstRule struct {
	Window    time.Duration
	Threshold int
}

func (r BurstRule) Name() string             { return "burst" }
func (r BurstRule) Reason() types.SpamReason { return types.ReasonBurstPosting }

// Flag re-evaluates the window ending at every post rather than advancing a
// single pointer, so overlapping windows may flag the same post repeatedly.
// The result is a set.
func (r BurstRule) Flag(cands []Candidate) []string {
	if r.Threshold <= 0 {
		return nil
	}

	byAuthor := make(map[string][]Candidate)
	var authors []string
	for _, c := range cands {
		if _, ok := byAuthor[c.Post.AuthorKey]; !ok {
			authors = append(authors, c.Post.AuthorKey)
		}
		byAuthor[c.Post.AuthorKey] = append(byAuthor[c.Post.AuthorKey], c)
	}

	seen := make(map[string]bool)
	var flagged []string
	for _, author := range authors {
		arr := byAuthor[author]
		if len(arr) < r.Threshold {
			continue
		}
		sortByTime(arr)

		for _, cur := range arr {
			start := cur.At.Add(-r.Window)
			// window is arr[lo:hi], inclusive on both timestamp bounds
			lo := sort.Search(len(arr), func(i int) bool { return !arr[i].At.Before(start) })
			hi := sort.Search(len(arr), func(i int) bool { return arr[i].At.After(cur.At) })
			if hi-lo < r.Threshold {
				continue
			}
			for _, c := range arr[lo+r.Threshold-1 : hi] {
				if !seen[c.Post.ID] {
					seen[c.Post.ID] = true
					flagged = append(flagged, c.Post.ID)
				}
			}
		}
	}
	return flagged
}

// DuplicateRule flags posts whose normalized content appears Threshold or
// more times across the whole batch. The earliest Threshold-1 copies are
// treated as originals.
type DuplicateRule struct {
	Threshold int
}

func (r DuplicateRule) Name() string             { return "duplicate" }
func (r DuplicateRule) Reason() types.SpamReason { return types.ReasonDuplicateContent }

func (r DuplicateRule) Flag(cands []Candidate) []string {
	if r.Threshold <= 0 {
		return nil
	}

	groups := make(map[string][]Candidate)
	var keys []string
	for _, c := range cands {
		key := textnorm.Normalize(c.Post.Content)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], c)
	}

	var flagged []string
	for _, key := range keys {
		arr := groups[key]
		if len(arr) < r.Threshold {
			continue
		}
		sortByTime(arr)
		for _, c := range arr[r.Threshold-1:] {
			flagged = append(flagged, c.Post.ID)
		}
	}
	return flagged
}
