// Package extract pulls a numeric score and a short summary out of
// free-form generated analysis text. It is heuristic by design: generated
// text does not follow a schema, so extraction never fails — unparseable
// input falls back to a neutral score and a leading-text summary.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// NeutralScore is used when no score can be found in the text.
	NeutralScore = 5.0

	maxSummaryLen = 600
)

// Extraction is the result of running the heuristics over analysis text.
type Extraction struct {
	Score   float64
	Summary string
}

// scorePattern matches "Score: 7.5", "score 8/10", "SCORE = 6", etc.
// The first capture group is the numeric value.
var scorePattern = regexp.MustCompile(`(?im)^\s*(?:overall\s+)?(?:score|rating)\s*[:=]?\s*(\d+(?:\.\d+)?)\s*(?:/\s*10)?\s*$`)

// inlineScorePattern is the fallback for scores embedded mid-sentence,
// e.g. "we assign a score of 7.5 out of 10".
var inlineScorePattern = regexp.MustCompile(`(?i)(?:score|rating)\s+of\s+(\d+(?:\.\d+)?)`)

// summaryPattern matches an explicit "Summary:" label and captures the rest
// of that paragraph.
var summaryPattern = regexp.MustCompile(`(?is)summary\s*[:：]\s*(.+?)(?:\n\s*\n|$)`)

// Extract runs the score and summary heuristics over text.
func Extract(text string) Extraction {
	return Extraction{
		Score:   extractScore(text),
		Summary: extractSummary(text),
	}
}

func extractScore(text string) float64 {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		m = inlineScorePattern.FindStringSubmatch(text)
	}
	if m == nil {
		return NeutralScore
	}

	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return NeutralScore
	}

	// Scores are on a 0-10 scale; clamp rather than reject so a model that
	// answers "15/10" still yields something usable.
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

func extractSummary(text string) string {
	if m := summaryPattern.FindStringSubmatch(text); m != nil {
		return truncate(collapseWhitespace(m[1]))
	}

	// Fall back to the first non-empty paragraph that isn't a heading.
	for _, para := range strings.Split(text, "\n\n") {
		para = collapseWhitespace(para)
		if para == "" {
			continue
		}
		if strings.HasPrefix(para, "#") {
			continue
		}
		return truncate(para)
	}

	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts at a word boundary so summaries never end mid-word.
func truncate(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	cut := strings.LastIndex(s[:maxSummaryLen], " ")
	if cut <= 0 {
		cut = maxSummaryLen
	}
	return s[:cut] + "…"
}
