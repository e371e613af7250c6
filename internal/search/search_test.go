package search

import (
	"strings"
	"testing"

	"github.com/jasperwreed/unip/internal/models"
)

type staticSource []models.HistoryEntry

func (s staticSource) Newest() []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(s))
	for i := range s {
		out[len(s)-1-i] = s[i]
	}
	return out
}

func result(text, label string, keywords ...string) models.AnalysisResult {
	r := models.AnalysisResult{Text: text}
	if label != "" {
		r.Sentiment = &models.Sentiment{Label: label, Score: 0.9}
	}
	for _, kw := range keywords {
		r.Keywords = append(r.Keywords, models.Keyword{Keyword: kw, Score: 0.5})
	}
	return r
}

func fixture() staticSource {
	return staticSource{
		{
			ID:      "a",
			Results: []models.AnalysisResult{result("The battery life is excellent", "positive", "battery", "life")},
		},
		{
			ID:        "b",
			FileCount: 1,
			FileNames: []string{"complaints.txt"},
			Results:   []models.AnalysisResult{result("Shipping was slow and the battery died", "negative", "shipping")},
		},
		{
			ID:      "c",
			Results: []models.AnalysisResult{result("Nothing special to report", "neutral")},
		},
	}
}

func TestNewSearcher(t *testing.T) {
	searcher := NewSearcher(fixture())
	if searcher == nil {
		t.Fatal("NewSearcher() returned nil")
	}
}

func TestSearcher_EmptyHistory(t *testing.T) {
	searcher := NewSearcher(staticSource{})

	results, err := searcher.Search("anything", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() in empty history returned %d results, want 0", len(results))
	}
}

func TestSearcher_Search(t *testing.T) {
	searcher := NewSearcher(fixture())

	tests := []struct {
		name    string
		query   string
		limit   int
		wantIDs []string
	}{
		{
			name:    "single term in two entries",
			query:   "battery",
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "case insensitive",
			query:   "SHIPPING",
			wantIDs: []string{"b"},
		},
		{
			name:    "every term must match",
			query:   "battery slow",
			wantIDs: []string{"b"},
		},
		{
			name:    "file name",
			query:   "complaints",
			wantIDs: []string{"b"},
		},
		{
			name:    "no match",
			query:   "refund",
			wantIDs: nil,
		},
		{
			name:    "empty query lists newest first",
			query:   "",
			wantIDs: []string{"c", "b", "a"},
		},
		{
			name:    "limit",
			query:   "",
			limit:   1,
			wantIDs: []string{"c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := searcher.Search(tt.query, tt.limit)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			var got []string
			for _, r := range results {
				got = append(got, r.Entry.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.wantIDs)
			}
		})
	}
}

func TestSearcher_ScoreOrdersResults(t *testing.T) {
	searcher := NewSearcher(fixture())

	// "battery" is both text and keyword in a, text only in b.
	results, err := searcher.Search("battery", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Entry.ID != "a" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores = %d, %d", results[0].Score, results[1].Score)
	}
	if !strings.Contains(results[1].Snippet, "battery died") {
		t.Errorf("snippet = %q", results[1].Snippet)
	}
}

func TestSearcher_SearchWithFilters(t *testing.T) {
	searcher := NewSearcher(fixture())

	results, err := searcher.SearchWithFilters("battery", 10, Filters{Sentiment: "Negative"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Entry.ID != "b" {
		t.Errorf("sentiment filter = %+v", results)
	}

	results, err = searcher.SearchWithFilters("", 10, Filters{Files: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Entry.ID != "b" {
		t.Errorf("files filter = %+v", results)
	}
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("word ", 30) + "needle " + strings.Repeat("tail ", 30)
	got := snippet(long, "needle")
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") || !strings.Contains(got, "needle") {
		t.Errorf("snippet = %q", got)
	}

	if got := snippet("short text", "short"); got != "short text" {
		t.Errorf("snippet = %q", got)
	}
}
