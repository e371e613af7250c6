// Package dashboard aggregates a set of analysis results into the figures
// shown on the results screen and renders them as plain text.
package dashboard

import (
	"strings"

	"github.com/jasperwreed/unip/internal/models"
)

// TopKeywordCount is how many keywords the overview lists.
const TopKeywordCount = 10

type SentimentSlice struct {
	Label   string
	Count   int
	Percent float64
}

type TrendPoint struct {
	Index      int
	Confidence float64
	HasScore   bool
}

type SummaryItem struct {
	Index      int
	SourceFile string
	Summary    *models.Summary
}

// Stats holds every figure the dashboard tabs display.
type Stats struct {
	TotalTexts        int
	Sentiment         []SentimentSlice
	DominantSentiment string
	AverageConfidence float64
	TopKeywords       []models.Keyword
	AllKeywords       []models.Keyword
	Trend             []TrendPoint
	Topics            []models.Topic
	Summaries         []SummaryItem
}

// Summarize computes dashboard figures. Percentages are taken over all
// results, including those without a sentiment. Keywords keep server order.
func Summarize(results []models.AnalysisResult) Stats {
	st := Stats{TotalTexts: len(results)}

	counts := map[string]int{}
	var order []string
	var scoreSum float64
	scored := 0

	for i, r := range results {
		point := TrendPoint{Index: i + 1}
		if r.Sentiment != nil {
			label := strings.ToLower(r.Sentiment.Label)
			if _, ok := counts[label]; !ok {
				order = append(order, label)
			}
			counts[label]++
			scoreSum += r.Sentiment.Score
			scored++
			point.Confidence = r.Sentiment.Score
			point.HasScore = true
		}
		st.Trend = append(st.Trend, point)

		st.AllKeywords = append(st.AllKeywords, r.Keywords...)
		st.Topics = append(st.Topics, r.Topics...)
		if r.Summary != nil {
			st.Summaries = append(st.Summaries, SummaryItem{Index: i + 1, SourceFile: r.SourceFile, Summary: r.Summary})
		}
	}

	best := 0
	for _, label := range order {
		n := counts[label]
		st.Sentiment = append(st.Sentiment, SentimentSlice{
			Label:   label,
			Count:   n,
			Percent: float64(n) / float64(len(results)) * 100,
		})
		// first seen wins a tie
		if n > best {
			best = n
			st.DominantSentiment = label
		}
	}

	if scored > 0 {
		st.AverageConfidence = scoreSum / float64(scored)
	}

	top := min(len(st.AllKeywords), TopKeywordCount)
	st.TopKeywords = st.AllKeywords[:top:top]
	return st
}

// Empty reports whether there is anything to show.
func (s Stats) Empty() bool {
	return s.TotalTexts == 0
}

// Title capitalizes a sentiment label for display.
func Title(label string) string {
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
