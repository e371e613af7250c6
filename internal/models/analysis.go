package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NLP task names understood by the analysis service, in the order the
// progress display walks through them.
const (
	TaskSentiment = "sentiment"
	TaskKeywords  = "keywords"
	TaskTopics    = "topics"
	TaskSummary   = "summary"
)

// AllTasks is the default task list.
var AllTasks = []string{TaskSentiment, TaskKeywords, TaskTopics, TaskSummary}

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

type AnalysisResult struct {
	Text       string     `json:"text"`
	Sentiment  *Sentiment `json:"sentiment,omitempty"`
	Keywords   []Keyword  `json:"keywords,omitempty"`
	Topics     []Topic    `json:"topics,omitempty"`
	Summary    *Summary   `json:"summary,omitempty"`
	SourceFile string     `json:"source_file,omitempty"`
}

type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Keyword struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
}

type Topic struct {
	TopicID  int      `json:"topic_id"`
	Keywords []string `json:"keywords"`
	Score    float64  `json:"score"`
}

// SummaryKind tells which of the two wire shapes a Summary came from.
type SummaryKind int

const (
	SummaryPlain SummaryKind = iota
	SummaryStructured
)

// Summary is either a plain string or a structured object on the wire. The
// shape is resolved once when the response is decoded.
type Summary struct {
	Kind             SummaryKind
	Text             string
	KeyPoints        []string
	CompressionRatio float64
}

type structuredSummary struct {
	Summary          string   `json:"summary"`
	KeyPoints        []string `json:"key_points,omitempty"`
	CompressionRatio float64  `json:"compression_ratio,omitempty"`
}

func PlainSummary(text string) *Summary {
	return &Summary{Kind: SummaryPlain, Text: text}
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Summary{}
		return nil
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = Summary{Kind: SummaryPlain, Text: text}
		return nil
	case '{':
		var st structuredSummary
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		*s = Summary{
			Kind:             SummaryStructured,
			Text:             st.Summary,
			KeyPoints:        st.KeyPoints,
			CompressionRatio: st.CompressionRatio,
		}
		return nil
	default:
		return fmt.Errorf("summary: unexpected JSON %s", string(data))
	}
}

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Kind == SummaryStructured {
		return json.Marshal(structuredSummary{
			Summary:          s.Text,
			KeyPoints:        s.KeyPoints,
			CompressionRatio: s.CompressionRatio,
		})
	}
	return json.Marshal(s.Text)
}

func (s *Summary) String() string {
	if s == nil {
		return ""
	}
	return s.Text
}
