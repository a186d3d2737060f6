package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// Builder renders markdown reports for completed job runs.
type Builder struct {
	maxPosts int
	spam     *template.Template
	summary  *template.Template
}

// New creates a new report builder. maxPosts caps the per-post listing;
// counts always cover the whole run.
func New(maxPosts int) (*Builder, error) {
	funcs := template.FuncMap{"excerpt": excerpt}

	spamTmpl, err := template.New("spam").Funcs(funcs).Parse(spamTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	summaryTmpl, err := template.New("summary").Funcs(funcs).Parse(summaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		maxPosts: maxPosts,
		spam:     spamTmpl,
		summary:  summaryTmpl,
	}, nil
}

// Report is a rendered run report.
type Report struct {
	Title     string
	Body      string
	PostIDs   []string
	CreatedAt time.Time
}

// Flagged pairs a post with the rule that flagged it.
type Flagged struct {
	Post   types.Post
	Reason types.SpamReason
	Rule   string
}

// SpamRun describes one spam sweep.
type SpamRun struct {
	Collection string
	DryRun     bool
	Total      int
	Eligible   int
	Flagged    []Flagged
	Defaulted  []string
}

// SummaryRun describes one summary refresh.
type SummaryRun struct {
	Collection string
	DryRun     bool
	Processed  int
	Updated    int
	Posts      []types.Post
}

type reasonCount struct {
	Reason types.SpamReason
	Count  int
}

type spamData struct {
	Title     string
	Date      string
	Run       SpamRun
	ByReason  []reasonCount
	Listed    []Flagged
	Truncated int
}

type summaryData struct {
	Title     string
	Date      string
	Run       SummaryRun
	Listed    []types.Post
	Truncated int
}

// BuildSpam renders the report for a spam sweep.
func (b *Builder) BuildSpam(run SpamRun, now time.Time) (*Report, error) {
	counts := make(map[types.SpamReason]int)
	for _, f := range run.Flagged {
		counts[f.Reason]++
	}
	byReason := make([]reasonCount, 0, len(counts))
	for reason, n := range counts {
		byReason = append(byReason, reasonCount{Reason: reason, Count: n})
	}
	sort.Slice(byReason, func(i, j int) bool { return byReason[i].Reason < byReason[j].Reason })

	listed := run.Flagged
	if b.maxPosts > 0 && len(listed) > b.maxPosts {
		listed = listed[:b.maxPosts]
	}

	data := spamData{
		Title:     fmt.Sprintf("Spam sweep: %s", run.Collection),
		Date:      now.UTC().Format(time.RFC1123),
		Run:       run,
		ByReason:  byReason,
		Listed:    listed,
		Truncated: len(run.Flagged) - len(listed),
	}

	var buf bytes.Buffer
	if err := b.spam.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	ids := make([]string, len(run.Flagged))
	for i, f := range run.Flagged {
		ids[i] = f.Post.ID
	}

	return &Report{
		Title:     data.Title,
		Body:      buf.String(),
		PostIDs:   ids,
		CreatedAt: now,
	}, nil
}

// BuildSummary renders the report for a summary refresh.
func (b *Builder) BuildSummary(run SummaryRun, now time.Time) (*Report, error) {
	listed := run.Posts
	if b.maxPosts > 0 && len(listed) > b.maxPosts {
		listed = listed[:b.maxPosts]
	}

	data := summaryData{
		Title:     fmt.Sprintf("Summary refresh: %s", run.Collection),
		Date:      now.UTC().Format(time.RFC1123),
		Run:       run,
		Listed:    listed,
		Truncated: len(run.Posts) - len(listed),
	}

	var buf bytes.Buffer
	if err := b.summary.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	ids := make([]string, len(run.Posts))
	for i, p := range run.Posts {
		ids[i] = p.ID
	}

	return &Report{
		Title:     data.Title,
		Body:      buf.String(),
		PostIDs:   ids,
		CreatedAt: now,
	}, nil
}

// excerpt flattens whitespace and cuts s to maxLen runes.
func excerpt(maxLen int, s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

const spamTemplate = `# {{.Title}}

_{{.Date}}{{if .Run.DryRun}} (dry run, nothing written){{end}}_

- Posts fetched: {{.Run.Total}}
- Evaluated: {{.Run.Eligible}}
- Marked as spam: {{len .Run.Flagged}}
{{- range .ByReason}}
  - {{.Reason}}: {{.Count}}
{{- end}}
{{- if .Run.Defaulted}}
- Missing creation time: {{len .Run.Defaulted}}
{{- end}}
{{if .Listed}}
| Post | Author | Rule | Content |
|------|--------|------|---------|
{{- range .Listed}}
| {{.Post.ID}} | {{.Post.AuthorKey}} | {{.Rule}} | {{excerpt 80 .Post.Content}} |
{{- end}}
{{- if .Truncated}}

...and {{.Truncated}} more.
{{- end}}
{{end}}`

const summaryTemplate = `# {{.Title}}

_{{.Date}}{{if .Run.DryRun}} (dry run, nothing written){{end}}_

- Posts processed: {{.Run.Processed}}
- Summaries updated: {{.Run.Updated}}
{{range .Listed}}
## {{.ID}}

{{excerpt 200 .SummaryShort}}
{{end}}
{{- if .Truncated}}
...and {{.Truncated}} more.
{{end}}`
