package retriever

import (
	"fmt"
	"strings"

	"brdagent/internal/brd"
)

// generalTopics probe project-wide context that no single requirement
// names directly. Each is anchored to the document's executive summary
// so the probes stay on the project's subject matter.
var generalTopics = []string{
	"project architecture overview and main components",
	"technology stack, frameworks, and key dependencies",
	"setup, configuration, and deployment instructions",
}

// maxSummaryExcerpt bounds how much of the executive summary each
// general query carries.
const maxSummaryExcerpt = 200

// summaryExcerpt returns a trimmed slice of the executive summary,
// falling back to the document title, cut at a word boundary.
func summaryExcerpt(doc *brd.ParsedBRD) string {
	if doc == nil {
		return ""
	}
	s := strings.TrimSpace(doc.ExecutiveSummary)
	if s == "" {
		s = strings.TrimSpace(doc.DocumentInfo.Title)
	}
	if len(s) > maxSummaryExcerpt {
		cut := strings.LastIndex(s[:maxSummaryExcerpt], " ")
		if cut <= 0 {
			cut = maxSummaryExcerpt
		}
		s = s[:cut]
	}
	return s
}

// Query is a retrieval probe with a provenance tag naming the part of
// the document it was derived from.
type Query struct {
	Text   string
	Source string
}

// BuildQueries expands a parsed requirements document into targeted
// queries: one per business objective, one per functional requirement,
// plus general probes derived from the executive summary. Objectives
// come first, then requirements, then general queries, and the list is
// cut at maxQueries.
func BuildQueries(doc *brd.ParsedBRD, maxQueries int) []Query {
	var queries []Query

	if doc != nil {
		for _, obj := range doc.Objectives {
			text := strings.TrimSpace(obj.Objective)
			if text == "" {
				continue
			}
			queries = append(queries, Query{
				Text:   text,
				Source: fmt.Sprintf("objective:%s", obj.ID),
			})
		}
		for _, req := range doc.Requirements.Functional {
			text := strings.TrimSpace(req.Description)
			if text == "" {
				continue
			}
			queries = append(queries, Query{
				Text:   text,
				Source: fmt.Sprintf("requirement:%s", req.ID),
			})
		}
	}

	excerpt := summaryExcerpt(doc)
	for _, topic := range generalTopics {
		text := topic
		if excerpt != "" {
			text = topic + " for: " + excerpt
		}
		queries = append(queries, Query{Text: text, Source: "general"})
	}

	if maxQueries > 0 && len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries
}
