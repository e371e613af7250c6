// Package search finds past analyses by the words in their texts, keywords,
// topics, summaries and file names.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jasperwreed/unip/internal/models"
)

// Source is the part of the history store the searcher reads.
type Source interface {
	Newest() []models.HistoryEntry
}

// Result is one matching entry. Score counts the matched fields; Snippet is
// taken from the first matching text.
type Result struct {
	Entry   models.HistoryEntry
	Score   int
	Snippet string
}

type Filters struct {
	// Sentiment keeps entries with at least one result of this label.
	Sentiment string
	// Files keeps file analyses only.
	Files bool
}

type Searcher struct {
	source Source
}

func NewSearcher(source Source) *Searcher {
	return &Searcher{source: source}
}

func (s *Searcher) Search(query string, limit int) ([]Result, error) {
	return s.SearchWithFilters(query, limit, Filters{})
}

// SearchWithFilters returns the best matches first; ties keep newest first.
// An empty query matches every entry that passes the filters.
func (s *Searcher) SearchWithFilters(query string, limit int, filters Filters) ([]Result, error) {
	terms := strings.Fields(strings.ToLower(query))

	var results []Result
	for _, e := range s.source.Newest() {
		if !filters.match(e) {
			continue
		}
		score, snippet := scoreEntry(e, terms)
		if len(terms) > 0 && score == 0 {
			continue
		}
		results = append(results, Result{Entry: e, Score: score, Snippet: snippet})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (f Filters) match(e models.HistoryEntry) bool {
	if f.Files && e.FileCount == 0 {
		return false
	}
	if f.Sentiment == "" {
		return true
	}
	for _, r := range e.Results {
		if r.Sentiment != nil && strings.EqualFold(r.Sentiment.Label, f.Sentiment) {
			return true
		}
	}
	return false
}

// scoreEntry requires every term to appear somewhere in the entry.
func scoreEntry(e models.HistoryEntry, terms []string) (int, string) {
	if len(terms) == 0 {
		if len(e.Results) > 0 {
			return 0, snippet(e.Results[0].Text, "")
		}
		return 0, ""
	}

	fields := entryFields(e)
	score := 0
	first := ""
	for _, term := range terms {
		hit := false
		for _, f := range fields {
			if strings.Contains(f.value, term) {
				score++
				hit = true
				if first == "" && f.text != "" {
					first = snippet(f.text, term)
				}
			}
		}
		if !hit {
			return 0, ""
		}
	}
	if first == "" && len(e.Results) > 0 {
		first = snippet(e.Results[0].Text, "")
	}
	return score, first
}

type field struct {
	value string
	// text is set for result texts, which snippets are cut from.
	text string
}

func entryFields(e models.HistoryEntry) []field {
	var fields []field
	for _, name := range e.FileNames {
		fields = append(fields, field{value: strings.ToLower(name)})
	}
	for _, r := range e.Results {
		fields = append(fields, field{value: strings.ToLower(r.Text), text: r.Text})
		for _, kw := range r.Keywords {
			fields = append(fields, field{value: strings.ToLower(kw.Keyword)})
		}
		for _, t := range r.Topics {
			fields = append(fields, field{value: strings.ToLower(strings.Join(t.Keywords, " "))})
		}
		if r.Summary != nil {
			fields = append(fields, field{value: strings.ToLower(r.Summary.String())})
		}
	}
	return fields
}

const snippetRadius = 40

// snippet cuts text around the first occurrence of term.
func snippet(text, term string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if term == "" {
		if len(runes) > 2*snippetRadius {
			return string(runes[:2*snippetRadius]) + "..."
		}
		return text
	}

	lower := strings.ToLower(text)
	idx := strings.Index(lower, term)
	if idx < 0 {
		return snippet(text, "")
	}
	pos := utf8.RuneCountInString(lower[:idx])
	start := max(0, pos-snippetRadius)
	end := min(len(runes), pos+len([]rune(term))+snippetRadius)

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
