package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jasperwreed/unip/internal/dashboard"
	"github.com/jasperwreed/unip/internal/models"
)

type tab int

const (
	tabOverview tab = iota
	tabSentiment
	tabKeywords
	tabInsights
)

var tabNames = []string{"Overview", "Sentiment", "Keywords", "Insights"}

// dashboardView renders the result tabs for one entry.
type dashboardView struct {
	styles Styles
	stats  dashboard.Stats
	entry  *models.HistoryEntry
	active tab
}

func newDashboardView(styles Styles) dashboardView {
	return dashboardView{styles: styles}
}

func (d *dashboardView) SetEntry(e *models.HistoryEntry) {
	d.entry = e
	if e == nil {
		d.stats = dashboard.Stats{}
		return
	}
	d.stats = dashboard.Summarize(e.Results)
}

// HandleKey switches tabs and reports whether the key was used.
func (d *dashboardView) HandleKey(key string) bool {
	switch key {
	case "1", "2", "3", "4":
		d.active = tab(key[0] - '1')
	case "tab":
		d.active = (d.active + 1) % tab(len(tabNames))
	case "shift+tab":
		d.active = (d.active + tab(len(tabNames)) - 1) % tab(len(tabNames))
	default:
		return false
	}
	return true
}

func (d dashboardView) tabBar() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if tab(i) == d.active {
			parts[i] = d.styles.TabActive.Render(label)
		} else {
			parts[i] = d.styles.TabInactive.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// View renders the active tab at width columns.
func (d dashboardView) View(width int) string {
	if d.entry == nil {
		return d.styles.Subtle.Render("Select an analysis to view")
	}
	barWidth := max(10, min(40, width-35))

	var b strings.Builder
	b.WriteString(d.tabBar())
	b.WriteString("\n\n")

	switch d.active {
	case tabOverview:
		b.WriteString(d.header())
		b.WriteString(dashboard.RenderOverview(d.stats, barWidth))
	case tabSentiment:
		b.WriteString(d.colorSentiment(dashboard.RenderSentiment(d.stats, barWidth)))
	case tabKeywords:
		b.WriteString(dashboard.RenderKeywords(d.stats, barWidth))
	case tabInsights:
		b.WriteString(dashboard.RenderInsights(d.stats))
		b.WriteString("\n")
		for i, r := range d.entry.Results {
			b.WriteString(dashboard.RenderResult(i, r))
		}
	}
	return b.String()
}

func (d dashboardView) header() string {
	e := d.entry
	var b strings.Builder
	b.WriteString(d.styles.Title.Render(entryTitle(*e)))
	b.WriteString("\n")
	b.WriteString(d.styles.Subtle.Render(formatTimestamp(*e)))
	b.WriteString("\n")
	if e.FileCount > 0 {
		fmt.Fprintf(&b, "Files: %s\n", strings.Join(e.FileNames, ", "))
	}
	if e.ProcessingInfo != nil && e.ProcessingInfo.Mode != "" {
		fmt.Fprintf(&b, "Mode: %s\n", e.ProcessingInfo.Mode)
	}
	if e.Timing != nil {
		fmt.Fprintf(&b, "Time: %d ms", e.Timing.FrontendMs)
		if total, ok := e.Timing.Backend["total"]; ok {
			fmt.Fprintf(&b, " (server %.0f ms)", total)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (d dashboardView) colorSentiment(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		for label, style := range d.styles.Sentiment {
			if strings.HasPrefix(trimmed, label) {
				lines[i] = style.Render(line)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

func entryTitle(e models.HistoryEntry) string {
	if e.FileCount > 0 {
		return fmt.Sprintf("Analysis of %d file(s)", e.FileCount)
	}
	return fmt.Sprintf("Analysis of %d text(s)", e.TextCount)
}

func formatTimestamp(e models.HistoryEntry) string {
	t := e.CreatedAt()
	if t.IsZero() {
		return e.Timestamp
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
