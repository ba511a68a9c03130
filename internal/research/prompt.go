package research

import (
	"fmt"
	"strings"

	"github.com/aristath/lookout/internal/collectors"
	"github.com/aristath/lookout/internal/domain"
)

// buildAnalysisPrompt renders a collected record plus the security's identity
// into one natural-language analysis request. The closing instruction pins
// the output format the extractor looks for.
func buildAnalysisPrompt(identity domain.SecurityIdentity, record *collectors.Record) string {
	var sb strings.Builder

	name := identity.Name
	if name == "" {
		name = identity.Symbol
	}
	fmt.Fprintf(&sb, "You are an equity research analyst. Analyze %s (%s)", name, identity.Symbol)
	if identity.Exchange != "" {
		fmt.Fprintf(&sb, ", listed on %s", identity.Exchange)
	}
	fmt.Fprintf(&sb, ", focusing on: %s.\n\n", record.Dimension.Description())

	sb.WriteString("Data:\n")
	sb.WriteString(record.Render())

	sb.WriteString("\nWrite a concise analysis of this data. ")
	sb.WriteString("End with two lines:\n")
	sb.WriteString("Score: <0-10>\n")
	sb.WriteString("Summary: <one or two sentences>\n")

	return sb.String()
}

// buildSynthesisPrompt renders the successful dimension summaries into the
// overall synthesis request. Outcomes are included in report order; failed
// dimensions are simply absent. An empty input still produces a valid
// prompt, a degraded report beats no report.
func buildSynthesisPrompt(identity domain.SecurityIdentity, outcomes []TaskOutcome) string {
	var sb strings.Builder

	name := identity.Name
	if name == "" {
		name = identity.Symbol
	}
	fmt.Fprintf(&sb, "You are an equity research analyst. Based on the dimension analyses below, write an overall investment assessment of %s (%s).\n\n", name, identity.Symbol)

	included := 0
	for _, outcome := range outcomes {
		if !outcome.OK() {
			continue
		}
		fmt.Fprintf(&sb, "%s (score %.1f): %s\n\n",
			outcome.Dimension.Description(), outcome.Result.Score, outcome.Result.Summary)
		included++
	}
	if included == 0 {
		sb.WriteString("No dimension analyses are available for this security.\n\n")
	}

	sb.WriteString("Weigh the dimensions against each other. End with two lines:\n")
	sb.WriteString("Score: <0-10>\n")
	sb.WriteString("Summary: <one or two sentences>\n")

	return sb.String()
}
