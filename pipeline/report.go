package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/yliasolom/graph-search/news"
)

const summaryPromptTemplate = `Write a concise news briefing for the topic %q based on the analyses below. Cover the main themes, the overall sentiment, and the most important developments.

Analyses:
%s

Briefing:`

// composeReport derives the structural report fields from the successful
// analyses, preserving article fetch order. SummaryText is filled in by the
// caller.
func composeReport(articles []news.Article, analyses map[string]AnalysisResult, errors []StageError) *Report {
	report := &Report{
		SentimentCounts: map[string]int{},
		GeneratedAt:     time.Now(),
	}

	seenThemes := make(map[string]bool)
	type ranked struct {
		id         string
		importance int
		order      int
	}
	var ranking []ranked

	for i, article := range articles {
		analysis, ok := analyses[article.ID]
		if !ok {
			report.SkippedIDs = append(report.SkippedIDs, article.ID)
			continue
		}

		report.SourceCount++
		report.SentimentCounts[analysis.Sentiment]++

		theme := strings.ToLower(analysis.Topic)
		if theme != "" && !seenThemes[theme] {
			seenThemes[theme] = true
			report.Themes = append(report.Themes, analysis.Topic)
		}

		ranking = append(ranking, ranked{id: article.ID, importance: analysis.ImportanceScore, order: i})
	}

	// Importance descending, fetch order among equals.
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].importance != ranking[j].importance {
			return ranking[i].importance > ranking[j].importance
		}
		return ranking[i].order < ranking[j].order
	})
	for _, r := range ranking {
		report.TopArticleIDs = append(report.TopArticleIDs, r.id)
	}

	return report
}

// summaryPrompt serializes analyses in fetch order for the summary call.
func summaryPrompt(query string, articles []news.Article, analyses map[string]AnalysisResult) string {
	var b strings.Builder
	for _, article := range articles {
		analysis, ok := analyses[article.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s, importance %d/10): %s. Key facts: %s\n",
			article.Title, analysis.Sentiment, analysis.ImportanceScore,
			analysis.Topic, strings.Join(analysis.KeyFacts, "; "))
	}
	return fmt.Sprintf(summaryPromptTemplate, query, b.String())
}

// localSummary composes a provider-free summary from the report structure,
// used for zero-outcome runs and as the fallback when the summary call fails.
func localSummary(query string, report *Report) string {
	if report.SourceCount == 0 {
		if len(report.SkippedIDs) > 0 {
			return fmt.Sprintf("No articles about %q could be analyzed; %d fetched articles failed analysis.",
				query, len(report.SkippedIDs))
		}
		return fmt.Sprintf("No articles were found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyzed %d articles about %q.", report.SourceCount, query)
	if len(report.Themes) > 0 {
		fmt.Fprintf(&b, " Main themes: %s.", strings.Join(report.Themes, ", "))
	}
	fmt.Fprintf(&b, " Sentiment: %d positive, %d negative, %d neutral.",
		report.SentimentCounts[SentimentPositive],
		report.SentimentCounts[SentimentNegative],
		report.SentimentCounts[SentimentNeutral])
	if len(report.SkippedIDs) > 0 {
		fmt.Fprintf(&b, " %d articles were skipped.", len(report.SkippedIDs))
	}
	return b.String()
}

// RenderMarkdown renders the report as a markdown document.
func RenderMarkdown(query string, report *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# News briefing: %s\n\n", query)
	fmt.Fprintf(&b, "_Generated %s from %d sources._\n\n",
		report.GeneratedAt.Format(time.RFC3339), report.SourceCount)
	b.WriteString(report.SummaryText)
	b.WriteString("\n")

	if len(report.Themes) > 0 {
		b.WriteString("\n## Themes\n\n")
		for _, theme := range report.Themes {
			fmt.Fprintf(&b, "- %s\n", theme)
		}
	}

	if len(report.SentimentCounts) > 0 {
		b.WriteString("\n## Sentiment\n\n")
		for _, sentiment := range []string{SentimentPositive, SentimentNegative, SentimentNeutral} {
			if count := report.SentimentCounts[sentiment]; count > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", sentiment, count)
			}
		}
	}

	if len(report.SkippedIDs) > 0 {
		fmt.Fprintf(&b, "\n_%d articles could not be analyzed._\n", len(report.SkippedIDs))
	}

	return b.String()
}

// RenderHTML renders the report as sanitized HTML.
func RenderHTML(query string, report *Report) string {
	md := RenderMarkdown(query, report)

	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	unsafe := markdown.ToHTML([]byte(md), p, renderer)

	return string(bluemonday.UGCPolicy().SanitizeBytes(unsafe))
}

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	reportDimStyle   = lipgloss.NewStyle().Faint(true)
	reportThemeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// RenderTerminal renders the report with terminal styling.
func RenderTerminal(query string, report *Report) string {
	var b strings.Builder

	b.WriteString(reportTitleStyle.Render("News briefing: "+query) + "\n")
	b.WriteString(reportDimStyle.Render(fmt.Sprintf("%d sources, generated %s",
		report.SourceCount, report.GeneratedAt.Format("2006-01-02 15:04"))) + "\n\n")
	b.WriteString(report.SummaryText + "\n")

	if len(report.Themes) > 0 {
		b.WriteString("\n" + reportThemeStyle.Render("Themes:") + "\n")
		for _, theme := range report.Themes {
			b.WriteString("  • " + theme + "\n")
		}
	}

	if len(report.SkippedIDs) > 0 {
		b.WriteString("\n" + reportDimStyle.Render(
			fmt.Sprintf("%d articles could not be analyzed", len(report.SkippedIDs))) + "\n")
	}

	return b.String()
}
