package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jasperwreed/unip/internal/client"
	"github.com/jasperwreed/unip/internal/models"
)

type memHistory struct {
	entries []models.HistoryEntry
}

func (h *memHistory) Newest() []models.HistoryEntry {
	out := make([]models.HistoryEntry, len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}

func (h *memHistory) Remove(id string) bool {
	for i, e := range h.entries {
		if e.ID == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (h *memHistory) Clear() { h.entries = nil }

func sampleEntry(id string, texts int) models.HistoryEntry {
	return models.HistoryEntry{
		ID:        id,
		Timestamp: "2026-03-01T10:00:00Z",
		TextCount: texts,
		Results: []models.AnalysisResult{{
			Text:      "Great product",
			Sentiment: &models.Sentiment{Label: "positive", Score: 0.9},
			Keywords:  []models.Keyword{{Keyword: "product", Score: 0.8}},
		}},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(m tea.Model) tea.Model {
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestBrowserListsNewestFirst(t *testing.T) {
	h := &memHistory{entries: []models.HistoryEntry{sampleEntry("a", 1), sampleEntry("b", 3)}}
	m := newBrowserModel(h, NewStyles(ThemeDark))

	items := m.list.Items()
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	first := items[0].(listItem)
	if first.entry.ID != "b" || first.Title() != "Analysis #2" {
		t.Errorf("first item = %s %s", first.entry.ID, first.Title())
	}
	if !strings.Contains(first.Description(), "3 texts") {
		t.Errorf("description = %q", first.Description())
	}
	if got := items[1].(listItem).Description(); !strings.Contains(got, "1 text") || strings.Contains(got, "texts") {
		t.Errorf("singular description = %q", got)
	}
}

func TestBrowserDeleteNeedsConfirmation(t *testing.T) {
	h := &memHistory{entries: []models.HistoryEntry{sampleEntry("a", 1), sampleEntry("b", 1)}}
	var m tea.Model = newBrowserModel(h, NewStyles(ThemeDark))
	m = sized(m)

	m, _ = m.Update(key("d"))
	m, _ = m.Update(key("n"))
	if len(h.entries) != 2 {
		t.Fatal("entry deleted without confirmation")
	}

	m, _ = m.Update(key("d"))
	m, _ = m.Update(key("y"))
	if len(h.entries) != 1 || h.entries[0].ID != "a" {
		t.Errorf("entries after delete = %+v", h.entries)
	}
	if got := len(m.(browserModel).list.Items()); got != 1 {
		t.Errorf("list items = %d", got)
	}
}

func TestBrowserClearNeedsConfirmation(t *testing.T) {
	h := &memHistory{entries: []models.HistoryEntry{sampleEntry("a", 1)}}
	var m tea.Model = newBrowserModel(h, NewStyles(ThemeLight))
	m = sized(m)

	m, _ = m.Update(key("C"))
	if m.(browserModel).mode != modeConfirm {
		t.Fatal("clear did not ask for confirmation")
	}
	m, _ = m.Update(key("y"))
	if len(h.entries) != 0 {
		t.Errorf("history not cleared")
	}
	if !strings.Contains(m.View(), "History cleared") {
		t.Error("status not shown")
	}
}

func TestBrowserSelectAndTabs(t *testing.T) {
	h := &memHistory{entries: []models.HistoryEntry{sampleEntry("a", 1)}}
	var m tea.Model = newBrowserModel(h, NewStyles(ThemeDark))
	m = sized(m)

	m, _ = m.Update(key("enter"))
	bm := m.(browserModel)
	if bm.selected == nil || bm.selected.ID != "a" {
		t.Fatalf("selected = %+v", bm.selected)
	}
	if !strings.Contains(bm.dash.View(80), "Total texts analyzed") {
		t.Error("overview tab not rendered")
	}

	m, _ = m.Update(key("4"))
	if got := m.(browserModel).dash.View(80); !strings.Contains(got, "Overall sentiment is Positive") {
		t.Errorf("insights tab = %q", got)
	}
}

func TestBrowserCommands(t *testing.T) {
	h := &memHistory{entries: []models.HistoryEntry{sampleEntry("a", 1)}}
	m := newBrowserModel(h, NewStyles(ThemeDark))
	var exported, theme string
	m.export = func(e models.HistoryEntry, path string) error { exported = e.ID + ":" + path; return nil }
	m.setTheme = func(th string) error { theme = th; return nil }

	m.executeCommand("export out.json")
	if m.status != "No analysis selected" {
		t.Errorf("status = %q", m.status)
	}

	m.selectCurrent()
	m.executeCommand("export out.json")
	if exported != "a:out.json" {
		t.Errorf("exported = %q", exported)
	}

	m.executeCommand("theme light")
	if theme != ThemeLight {
		t.Errorf("theme = %q", theme)
	}
	m.executeCommand("theme purple")
	if !strings.HasPrefix(m.status, "Usage") {
		t.Errorf("status = %q", m.status)
	}
	m.executeCommand("bogus")
	if !strings.Contains(m.status, "Unknown command") {
		t.Errorf("status = %q", m.status)
	}
}

func TestAnalyzeModelFlow(t *testing.T) {
	entry := sampleEntry("x", 1)
	m := newAnalyzeModel(context.Background(), func(ctx context.Context) (*models.HistoryEntry, error) {
		return &entry, nil
	}, AnalyzeOptions{RevealDelay: time.Millisecond})

	var tm tea.Model = m
	tm, _ = tm.Update(progressMsg(models.ProgressState{
		Stage:          models.StageProcessing,
		Percent:        60,
		Message:        "Extracting keywords...",
		CompletedTasks: []string{models.TaskSentiment},
		CurrentTask:    models.TaskKeywords,
		Loading:        true,
	}))
	view := tm.View()
	if !strings.Contains(view, "Processing") || !strings.Contains(view, "Extracting keywords...") {
		t.Errorf("progress view = %q", view)
	}

	// the submit command produces the result message
	msg := m.run()()
	tm, cmd := tm.Update(msg)
	if cmd == nil {
		t.Fatal("no reveal scheduled after success")
	}
	if tm.(analyzeModel).reveal {
		t.Error("dashboard revealed before the delay")
	}
	tm, _ = tm.Update(revealMsg{})
	if !strings.Contains(tm.View(), "Overview") {
		t.Errorf("dashboard view = %q", tm.View())
	}

	tm, _ = tm.Update(key("tab"))
	if tm.(analyzeModel).dash.active != tabSentiment {
		t.Error("tab key did not switch tabs")
	}
}

func TestAnalyzeModelError(t *testing.T) {
	apiErr := client.ValidationError(errors.New("Please enter some text to analyze."))
	var tm tea.Model = newAnalyzeModel(context.Background(), nil, AnalyzeOptions{})
	tm, cmd := tm.Update(resultMsg{err: apiErr})
	if cmd != nil {
		t.Error("reveal scheduled after failure")
	}
	if !strings.Contains(tm.View(), "Please enter some text to analyze.") {
		t.Errorf("error view = %q", tm.View())
	}
	tm, cmd = tm.Update(key("esc"))
	if cmd != nil {
		t.Error("esc should dismiss the banner, not quit")
	}
	view := tm.View()
	if strings.Contains(view, "Please enter some text to analyze.") || !strings.Contains(view, "q: quit") {
		t.Errorf("view after dismiss = %q", view)
	}
	fm := tm.(analyzeModel)
	if !fm.finished || fm.err == nil {
		t.Error("dismissing the banner must keep the failure")
	}
	if _, cmd = tm.Update(key("q")); cmd == nil {
		t.Error("q did not quit after dismiss")
	}
}
