// Package summarizer builds extractive summaries of post content by scoring
// sentences on average term frequency.
package summarizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	// a run of terminal punctuation (ASCII, full-width and CJK) followed by whitespace
	sentenceBoundary = regexp.MustCompile(`[.!?。！？．｡]+\s+`)
	// anything that is not ASCII alphanumeric, a Hangul syllable, Hangul
	// compatibility jamo, or whitespace
	nonTokenChars = regexp.MustCompile(`[^a-z0-9가-힣ㄱ-ㅎㅏ-ㅣ\s]`)
)

// Summarize returns up to n sentences of text, chosen by score and rendered
// in their original order.
func Summarize(text string, n int) string {
	clean := collapse(text)
	if clean == "" || n <= 0 {
		return ""
	}

	sentences := SplitSentences(clean)
	if len(sentences) <= n {
		return strings.Join(sentences, " ")
	}

	freq := make(map[string]int)
	for _, tok := range Tokenize(clean) {
		freq[tok]++
	}

	type scored struct {
		idx   int
		text  string
		score float64
	}

	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		words := Tokenize(s)
		sum := 0
		for _, w := range words {
			sum += freq[w]
		}
		ranked[i] = scored{idx: i, text: s, score: float64(sum) / float64(max(1, len(words)))}
	}

	// stable, so earlier sentences win ties
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	top := ranked[:n]
	sort.Slice(top, func(i, j int) bool {
		return top[i].idx < top[j].idx
	})

	out := make([]string, len(top))
	for i, s := range top {
		out[i] = s.text
	}
	return strings.Join(out, " ")
}

// SplitSentences splits whitespace-collapsed text at terminal punctuation
// followed by whitespace. Punctuation stays with its sentence on purpose:
// summaries quote sentences verbatim, so it is not split off.
func SplitSentences(clean string) []string {
	var sentences []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(clean, -1) {
		// the match ends in whitespace, which add trims
		add(clean[start:loc[1]])
		start = loc[1]
	}
	add(clean[start:])
	return sentences
}

// Tokenize lower-cases text and returns its word-like tokens longer than one
// rune.
func Tokenize(text string) []string {
	fields := strings.Fields(nonTokenChars.ReplaceAllString(strings.ToLower(text), " "))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
