package types

import "time"

// SpamStatus is the moderation state of a post. The zero value means the
// post has not been flagged.
type SpamStatus string

const (
	SpamStatusUnset SpamStatus = ""
	SpamStatusSpam  SpamStatus = "spam"
)

// SpamReason explains why a post was flagged.
type SpamReason string

const (
	ReasonBurstPosting     SpamReason = "burst_posting"
	ReasonDuplicateContent SpamReason = "duplicate_content"
	// ReasonRuleMatch is written when a verdict carries no specific reason.
	ReasonRuleMatch SpamReason = "rule_match"
)

// Post represents a user-submitted board post.
// Zero time values mean the field was absent in the store.
type Post struct {
	ID               string     `json:"id"`
	AuthorKey        string     `json:"authorKey"`
	Content          string     `json:"content"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	SpamStatus       SpamStatus `json:"spamStatus,omitempty"`
	SpamReason       SpamReason `json:"spamReason,omitempty"`
	SpamReviewedAt   time.Time  `json:"spamReviewedAt"`
	SummaryShort     string     `json:"summaryShort,omitempty"`
	SummaryLong      string     `json:"summaryLong,omitempty"`
	SummaryUpdatedAt time.Time  `json:"summaryUpdatedAt"`
}

// IsSpam reports whether the post was already flagged. Flagged posts are
// never re-evaluated or un-flagged.
func (p Post) IsSpam() bool {
	return p.SpamStatus == SpamStatusSpam
}

// PostPatch is a partial update. Nil fields are left untouched.
type PostPatch struct {
	SpamStatus       *SpamStatus `json:"spamStatus,omitempty"`
	SpamReason       *SpamReason `json:"spamReason,omitempty"`
	SpamReviewedAt   *time.Time  `json:"spamReviewedAt,omitempty"`
	SummaryShort     *string     `json:"summaryShort,omitempty"`
	SummaryLong      *string     `json:"summaryLong,omitempty"`
	SummaryUpdatedAt *time.Time  `json:"summaryUpdatedAt,omitempty"`
}

// SpamPatch builds the update written for a flagged post.
func SpamPatch(reason SpamReason, now time.Time) PostPatch {
	if reason == "" {
		reason = ReasonRuleMatch
	}
	status := SpamStatusSpam
	reviewed := now.UTC()
	return PostPatch{
		SpamStatus:     &status,
		SpamReason:     &reason,
		SpamReviewedAt: &reviewed,
	}
}

// SummaryPatch builds the update written after summarizing a post.
func SummaryPatch(short, long string, now time.Time) PostPatch {
	updated := now.UTC()
	return PostPatch{
		SummaryShort:     &short,
		SummaryLong:      &long,
		SummaryUpdatedAt: &updated,
	}
}

// IsEmpty reports whether the patch would change nothing.
func (pp PostPatch) IsEmpty() bool {
	return pp.SpamStatus == nil && pp.SpamReason == nil && pp.SpamReviewedAt == nil &&
		pp.SummaryShort == nil && pp.SummaryLong == nil && pp.SummaryUpdatedAt == nil
}

// Apply merges the patch into p.
func (pp PostPatch) Apply(p *Post) {
	if pp.SpamStatus != nil {
		p.SpamStatus = *pp.SpamStatus
	}
	if pp.SpamReason != nil {
		p.SpamReason = *pp.SpamReason
	}
	if pp.SpamReviewedAt != nil {
		p.SpamReviewedAt = *pp.SpamReviewedAt
	}
	if pp.SummaryShort != nil {
		p.SummaryShort = *pp.SummaryShort
	}
	if pp.SummaryLong != nil {
		p.SummaryLong = *pp.SummaryLong
	}
	if pp.SummaryUpdatedAt != nil {
		p.SummaryUpdatedAt = *pp.SummaryUpdatedAt
	}
}
