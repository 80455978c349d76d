package composer

import (
	"fmt"
	"strings"

	"github.com/openrelief/newstracker/internal/memory"
	"github.com/openrelief/newstracker/internal/news"
)

const (
	markerDirect    = "DIRECT ANSWER:"
	markerCommunity = "COMMUNITY INFO:"
)

// primarySystem asks the model for the two labelled sections the parser
// expects. The markers are plain text so any model that echoes them works.
const primarySystem = `You are a local disaster and community-news assistant.
Answer the user's question about their area using the community reports and
news headlines provided. Be concise and factual; say so when the provided
material does not cover the question.

Structure your reply in exactly two sections:
DIRECT ANSWER: a direct answer to the question.
COMMUNITY INFO: a short digest of the relevant community reports.`

// secondarySystem is the simplified instruction for the fallback provider.
const secondarySystem = `You are a local disaster and community-news assistant.
Answer the user's question briefly using the reports provided.`

func buildPrimaryPrompt(query, location string, matches []memory.ScoredRecord, headlines []news.Headline) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\nLocation: %s\n", query, location)

	b.WriteString("\nCommunity reports (most relevant first):\n")
	if len(matches) == 0 {
		b.WriteString("(none found)\n")
	}
	for _, m := range matches {
		fmt.Fprintf(&b, "- [%s, %s] %s\n",
			m.Record.OriginalCreatedAt.Format("2006-01-02"),
			orUnknown(m.Record.Location),
			m.Record.ProcessedContent)
	}

	if formatted := news.Format(headlines); formatted != "" {
		b.WriteString("\nRecent news headlines:\n")
		b.WriteString(formatted)
	}

	return b.String()
}

// buildSecondaryPrompt keeps only the question and the report texts, since
// the fallback provider is called when the primary already struggled.
func buildSecondaryPrompt(query, location string, matches []memory.ScoredRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question about %s: %s\n", location, query)
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s\n", m.Record.ProcessedContent)
	}
	return b.String()
}

// staticAnswer builds the terminal fallback from the retrieved material
// alone. Pure templating, cannot fail.
func staticAnswer(location string, matches []memory.ScoredRecord, headlines []news.Headline) (direct, community string) {
	var b strings.Builder
	switch len(matches) {
	case 0:
		fmt.Fprintf(&b, "No recent community reports were found for %q.", location)
	case 1:
		fmt.Fprintf(&b, "Found 1 recent community report for %q.", location)
	default:
		fmt.Fprintf(&b, "Found %d recent community reports for %q.", len(matches), location)
	}
	b.WriteString(" The assistant is temporarily unavailable; the raw material is listed below.")
	if formatted := news.Format(headlines); formatted != "" {
		b.WriteString("\n\nRecent headlines:\n")
		b.WriteString(formatted)
	}
	direct = b.String()

	var c strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&c, "- [%s] %s\n",
			m.Record.OriginalCreatedAt.Format("2006-01-02"),
			snippet(m.Record.ProcessedContent, 160))
	}
	community = strings.TrimRight(c.String(), "\n")
	return direct, community
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown location"
	}
	return s
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], " ") + "..."
}
