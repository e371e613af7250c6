package dashboard

import (
	"fmt"
	"strings"

	"github.com/jasperwreed/unip/internal/models"
)

const defaultBarWidth = 30

// Bar draws a horizontal bar of width cells filled to fraction.
func Bar(fraction float64, width int) string {
	if width <= 0 {
		width = defaultBarWidth
	}
	fraction = max(0, min(1, fraction))
	filled := int(fraction*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// RenderOverview prints the headline figures.
func RenderOverview(s Stats, width int) string {
	if s.Empty() {
		return "No analysis results yet.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total texts analyzed   %d\n", s.TotalTexts)
	fmt.Fprintf(&b, "Keywords extracted     %d\n", len(s.AllKeywords))
	fmt.Fprintf(&b, "Avg confidence         %s\n", pct(s.AverageConfidence))
	fmt.Fprintf(&b, "Topics found           %d\n", len(s.Topics))
	b.WriteString("\n")
	b.WriteString(RenderSentiment(s, width))
	return b.String()
}

// RenderSentiment prints the sentiment distribution and confidence trend.
func RenderSentiment(s Stats, width int) string {
	var b strings.Builder
	b.WriteString("Sentiment distribution\n")
	if len(s.Sentiment) == 0 {
		b.WriteString("  (no sentiment results)\n")
		return b.String()
	}
	for _, sl := range s.Sentiment {
		fmt.Fprintf(&b, "  %-9s %s %3d  %5.1f%%\n", Title(sl.Label), Bar(sl.Percent/100, width), sl.Count, sl.Percent)
	}

	if len(s.Trend) > 1 {
		b.WriteString("\nConfidence trend\n")
		for _, p := range s.Trend {
			if !p.HasScore {
				fmt.Fprintf(&b, "  #%-3d %s     -\n", p.Index, Bar(0, width))
				continue
			}
			fmt.Fprintf(&b, "  #%-3d %s %5.1f%%\n", p.Index, Bar(p.Confidence, width), p.Confidence*100)
		}
	}
	return b.String()
}

// RenderKeywords prints the top keywords and every topic.
func RenderKeywords(s Stats, width int) string {
	var b strings.Builder
	b.WriteString("Top keywords\n")
	if len(s.TopKeywords) == 0 {
		b.WriteString("  (no keywords)\n")
	}
	for _, kw := range s.TopKeywords {
		fmt.Fprintf(&b, "  %-18s %s %5.1f%%\n", truncate(kw.Keyword, 18), Bar(kw.Score, width), kw.Score*100)
	}

	if len(s.Topics) > 0 {
		b.WriteString("\nTopics\n")
		for _, t := range s.Topics {
			fmt.Fprintf(&b, "  #%d  %s  (%s)\n", t.TopicID, strings.Join(t.Keywords, ", "), pct(t.Score))
		}
	}
	return b.String()
}

// RenderInsights prints the narrative summary and per-text summaries.
func RenderInsights(s Stats) string {
	if s.Empty() {
		return "No analysis results yet.\n"
	}
	var b strings.Builder
	dominant := Title(s.DominantSentiment)
	if dominant == "" {
		dominant = "Balanced"
	}
	fmt.Fprintf(&b, "Overall sentiment is %s across all analyzed texts.\n", dominant)
	fmt.Fprintf(&b, "Average confidence score is %s.\n", pct(s.AverageConfidence))
	fmt.Fprintf(&b, "Extracted %d keywords with relevance scoring.\n", len(s.AllKeywords))

	if len(s.Summaries) > 0 {
		b.WriteString("\nSummaries\n")
		for _, item := range s.Summaries {
			label := fmt.Sprintf("Text %d", item.Index)
			if item.SourceFile != "" {
				label = item.SourceFile
			}
			fmt.Fprintf(&b, "  %s: %s\n", label, item.Summary.String())
			if item.Summary.Kind == models.SummaryStructured {
				for _, kp := range item.Summary.KeyPoints {
					fmt.Fprintf(&b, "    - %s\n", kp)
				}
			}
		}
	}
	return b.String()
}

// RenderResult prints one result in full, the way `history show` lists it.
func RenderResult(i int, r models.AnalysisResult) string {
	var b strings.Builder
	title := fmt.Sprintf("Text %d", i+1)
	if r.SourceFile != "" {
		title += " (" + r.SourceFile + ")"
	}
	b.WriteString(title + "\n")
	fmt.Fprintf(&b, "  %s\n", truncate(r.Text, 200))
	if r.Sentiment != nil {
		fmt.Fprintf(&b, "  Sentiment: %s (%s)\n", Title(r.Sentiment.Label), pct(r.Sentiment.Score))
	}
	if len(r.Keywords) > 0 {
		words := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			words[j] = kw.Keyword
		}
		fmt.Fprintf(&b, "  Keywords: %s\n", strings.Join(words, ", "))
	}
	if r.Summary != nil {
		fmt.Fprintf(&b, "  Summary: %s\n", r.Summary.String())
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
