package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lifeforge/docchat/internal/ragclient"
)

// FormatFooter renders the answer's metadata trailer as a compact block
// shown under the answer. Returns "" when there is nothing to show.
func (s *Styles) FormatFooter(meta *ragclient.Metadata) string {
	if meta == nil {
		return ""
	}

	var parts []string
	if meta.Confidence > 0 {
		parts = append(parts, fmt.Sprintf("confidence %.0f%%", meta.Confidence*100))
	}
	if meta.TopSimilarity > 0 {
		parts = append(parts, fmt.Sprintf("similarity %.2f", meta.TopSimilarity))
	}
	if meta.LatencyMs > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", meta.LatencyMs/1000))
	}
	if meta.AgentType != "" {
		parts = append(parts, "agent "+meta.AgentType)
	}

	var lines []string
	if len(parts) > 0 {
		lines = append(lines, s.Muted.Render(strings.Join(parts, " · ")))
	}
	if src := formatSources(meta); src != "" {
		lines = append(lines, s.Muted.Render(src))
	}
	if meta.IsHallucination {
		lines = append(lines, s.Warning.Render(WarnIcon+" answer may not be grounded in the document"))
	}

	return strings.Join(lines, "\n")
}

// FormatAnalytics renders the backend's post-hoc log record for the last
// exchange.
func (s *Styles) FormatAnalytics(rec *ragclient.LogRecord) string {
	if rec == nil {
		return ""
	}
	if rec.Rejected {
		return s.Warning.Render(WarnIcon + " answer was flagged by the backend's quality check")
	}
	return s.Muted.Render(fmt.Sprintf("answer-source similarity %.2f", rec.AnswerSourceSimilarity))
}

func formatSources(meta *ragclient.Metadata) string {
	pages := meta.SourcePages
	if len(pages) == 0 {
		seen := make(map[int]bool)
		for _, src := range meta.Sources {
			if !seen[src.Page] {
				seen[src.Page] = true
				pages = append(pages, src.Page)
			}
		}
	}
	if len(pages) == 0 {
		return ""
	}

	strs := make([]string, len(pages))
	for i, p := range pages {
		strs[i] = strconv.Itoa(p)
	}
	out := "pages " + strings.Join(strs, ", ")
	if len(pages) == 1 {
		out = "page " + strs[0]
	}

	var kinds []string
	if meta.NumTextChunks > 0 {
		kinds = append(kinds, fmt.Sprintf("%d text", meta.NumTextChunks))
	}
	if meta.NumImages > 0 {
		kinds = append(kinds, fmt.Sprintf("%d image", meta.NumImages))
	}
	if len(kinds) > 0 {
		out += " (" + strings.Join(kinds, ", ") + ")"
	}
	return "sources: " + out
}
