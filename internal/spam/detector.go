// Package spam classifies a batch of board posts with ordered,
// rate- and duplication-based rules.
package spam

import (
	"time"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

const (
	DefaultBurstWindow        = 10 * time.Minute
	DefaultBurstThreshold     = 5
	DefaultDuplicateThreshold = 3
)

// Verdict is the outcome for a single flagged post.
type Verdict struct {
	PostID string           `json:"post_id"`
	Reason types.SpamReason `json:"reason"`
	Rule   string           `json:"rule"`
}

// Result holds the verdicts of one detection pass.
type Result struct {
	// Verdicts is keyed by post ID and only contains flagged posts.
	Verdicts map[string]Verdict `json:"verdicts"`
	// Total is the number of posts handed in, including already-marked ones.
	Total int `json:"total"`
	// Eligible is the number of posts that went through rule matching.
	Eligible int `json:"eligible"`
	// Defaulted lists posts whose missing creation time was replaced by Now.
	Defaulted []string `json:"defaulted,omitempty"`
}

// Detector runs its rules in order. A post flagged by an earlier rule keeps
// that rule's reason.
type Detector struct {
	rules []Rule
	now   func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source used for posts without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithRules replaces the default rule pipeline.
func WithRules(rules ...Rule) Option {
	return func(d *Detector) { d.rules = rules }
}

// New creates a detector with the burst rule followed by the duplicate rule.
func New(opts ...Option) *Detector {
	d := &Detector{
		rules: []Rule{
			BurstRule{Window: DefaultBurstWindow, Threshold: DefaultBurstThreshold},
			DuplicateRule{Threshold: DefaultDuplicateThreshold},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Rules returns the rule pipeline in evaluation order.
func (d *Detector) Rules() []Rule {
	return d.rules
}

// Detect evaluates every rule over the eligible posts. It performs no writes.
func (d *Detector) Detect(posts []types.Post) Result {
	now := d.now().UTC()
	res := Result{
		Verdicts: make(map[string]Verdict),
		Total:    len(posts),
	}

	cands := make([]Candidate, 0, len(posts))
	for i, p := range posts {
		if p.IsSpam() {
			continue
		}
		at := p.CreatedAt
		if at.IsZero() {
			// unknown recency anchors the post at the end of every window
			at = now
			res.Defaulted = append(res.Defaulted, p.ID)
		}
		cands = append(cands, Candidate{Index: i, Post: p, At: at.UTC()})
	}
	res.Eligible = len(cands)

	for _, rule := range d.rules {
		// rules sort their own partitions; give each a private copy
		batch := make([]Candidate, len(cands))
		copy(batch, cands)

		for _, id := range rule.Flag(batch) {
			if _, ok := res.Verdicts[id]; ok {
				continue
			}
			res.Verdicts[id] = Verdict{PostID: id, Reason: rule.Reason(), Rule: rule.Name()}
		}
	}

	return res
}

// Flagged returns the verdicts in input order, which is the order the
// driver writes them back in.
func (r Result) Flagged(posts []types.Post) []Verdict {
	out := make([]Verdict, 0, len(r.Verdicts))
	for _, p := range posts {
		if v, ok := r.Verdicts[p.ID]; ok {
			out = append(out, v)
		}
	}
	return out
}
