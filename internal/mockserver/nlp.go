package mockserver

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/jasperwreed/unip/internal/models"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}']+`)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)

var positiveWords = set("good", "great", "excellent", "amazing", "love", "wonderful", "fantastic",
	"best", "happy", "awesome", "nice", "recommend", "perfect", "fast", "reliable", "friendly", "enjoy")

var negativeWords = set("bad", "terrible", "awful", "hate", "worst", "poor", "slow", "broken",
	"disappointing", "sad", "angry", "useless", "horrible", "bug", "crash", "expensive", "refund")

var stopWords = set("the", "a", "an", "and", "or", "but", "is", "are", "was", "were", "be", "been",
	"to", "of", "in", "on", "for", "with", "it", "this", "that", "as", "at", "by", "from", "i",
	"we", "you", "they", "he", "she", "my", "our", "your", "its", "so", "very", "not", "no",
	"have", "has", "had", "do", "does", "did", "will", "would", "can", "could", "just", "than",
	"then", "there", "their", "them", "what", "which", "who", "all", "any", "also", "into", "out")

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// analyze runs the requested heuristic tasks over one text. It is
// deterministic so tests can assert on labels.
func analyze(text string, tasks []string) models.AnalysisResult {
	r := models.AnalysisResult{Text: text}
	words := tokenize(text)
	for _, task := range tasks {
		switch task {
		case models.TaskSentiment:
			r.Sentiment = sentiment(words)
		case models.TaskKeywords:
			r.Keywords = keywords(words, 10)
		case models.TaskTopics:
			r.Topics = topics(words)
		case models.TaskSummary:
			r.Summary = summarize(text)
		}
	}
	return r
}

func sentiment(words []string) *models.Sentiment {
	pos, neg := 0, 0
	for _, w := range words {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	total := pos + neg
	switch {
	case pos > neg:
		return &models.Sentiment{Label: models.SentimentPositive, Score: round(0.5 + 0.5*float64(pos-neg)/float64(total))}
	case neg > pos:
		return &models.Sentiment{Label: models.SentimentNegative, Score: round(0.5 + 0.5*float64(neg-pos)/float64(total))}
	default:
		return &models.Sentiment{Label: models.SentimentNeutral, Score: 0.5}
	}
}

func keywords(words []string, limit int) []models.Keyword {
	freq := make(map[string]int)
	maxFreq := 0
	for _, w := range words {
		if len(w) < 3 || stopWords[w] {
			continue
		}
		freq[w]++
		if freq[w] > maxFreq {
			maxFreq = freq[w]
		}
	}

	out := make([]models.Keyword, 0, len(freq))
	for w, n := range freq {
		out = append(out, models.Keyword{Keyword: w, Score: round(float64(n) / float64(maxFreq))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// topics groups the top keywords into chunks of three.
func topics(words []string) []models.Topic {
	kws := keywords(words, 9)
	var out []models.Topic
	for i := 0; i < len(kws); i += 3 {
		end := min(i+3, len(kws))
		t := models.Topic{TopicID: len(out)}
		var score float64
		for _, k := range kws[i:end] {
			t.Keywords = append(t.Keywords, k.Keyword)
			score += k.Score
		}
		t.Score = round(score / float64(end-i))
		out = append(out, t)
	}
	return out
}

func summarize(text string) *models.Summary {
	sentences := sentenceRe.FindAllString(text, -1)
	var points []string
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			points = append(points, s)
		}
	}
	if len(points) <= 1 {
		return models.PlainSummary(strings.TrimSpace(text))
	}

	n := min(2, len(points))
	summary := strings.Join(points[:n], " ")
	return &models.Summary{
		Kind:             models.SummaryStructured,
		Text:             summary,
		KeyPoints:        points[:min(3, len(points))],
		CompressionRatio: round(float64(len(summary)) / float64(len(text))),
	}
}

func round(f float64) float64 {
	return math.Round(f*1000) / 1000
}
