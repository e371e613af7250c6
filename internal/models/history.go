package models

import "time"

// HistoryEntry is one completed analysis run. Entries are never mutated after
// they are handed to the history store.
type HistoryEntry struct {
	ID             string           `json:"id"`
	Timestamp      string           `json:"timestamp"`
	Results        []AnalysisResult `json:"results"`
	TextCount      int              `json:"textCount"`
	FileCount      int              `json:"fileCount,omitempty"`
	FileNames      []string         `json:"fileNames,omitempty"`
	ProcessingInfo *ProcessingInfo  `json:"processingInfo,omitempty"`
	Timing         *Timing          `json:"timing,omitempty"`
}

type ProcessingInfo struct {
	Mode     string   `json:"mode"`
	Warnings []string `json:"warnings,omitempty"`
}

type Timing struct {
	FrontendMs int64              `json:"frontendMs"`
	Backend    map[string]float64 `json:"backend,omitempty"`
}

// CreatedAt parses the entry timestamp; the zero time is returned when the
// stored value is not RFC3339.
func (e HistoryEntry) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

type HistoryStats struct {
	TotalEntries       int            `json:"total_entries"`
	TotalTexts         int            `json:"total_texts"`
	TotalFiles         int            `json:"total_files"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
	ModeBreakdown      map[string]int `json:"mode_breakdown"`
}
