package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jasperwreed/unip/internal/models"
)

// HistorySource is the part of the history store the browser edits.
type HistorySource interface {
	Newest() []models.HistoryEntry
	Remove(id string) bool
	Clear()
}

// Exporter writes one entry to a file.
type Exporter func(entry models.HistoryEntry, path string) error

// ThemeSetter persists a theme choice.
type ThemeSetter func(theme string) error

type Browser struct {
	history  HistorySource
	theme    string
	export   Exporter
	setTheme ThemeSetter
}

func NewBrowser(history HistorySource, theme string) *Browser {
	return &Browser{history: history, theme: theme}
}

func (b *Browser) WithExporter(fn Exporter) *Browser {
	b.export = fn
	return b
}

func (b *Browser) WithThemeSetter(fn ThemeSetter) *Browser {
	b.setTheme = fn
	return b
}

func (b *Browser) Run() error {
	m := newBrowserModel(b.history, NewStyles(b.theme))
	m.export = b.export
	m.setTheme = b.setTheme
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

type listItem struct {
	entry  models.HistoryEntry
	number int
}

func (i listItem) FilterValue() string {
	var b strings.Builder
	b.WriteString(i.Title())
	for _, f := range i.entry.FileNames {
		b.WriteString(" " + f)
	}
	return b.String()
}

func (i listItem) Title() string {
	return fmt.Sprintf("Analysis #%d", i.number)
}

func (i listItem) Description() string {
	n := i.entry.TextCount
	if n == 0 {
		n = len(i.entry.Results)
	}
	unit := "text"
	if n != 1 {
		unit = "texts"
	}
	return fmt.Sprintf("%s | %d %s", formatTimestamp(i.entry), n, unit)
}

type commandMode int

const (
	modeNormal commandMode = iota
	modeCommand
	modeSearch
	modeConfirm
)

type confirmAction int

const (
	confirmDelete confirmAction = iota + 1
	confirmClear
)

type browserModel struct {
	history      HistorySource
	styles       Styles
	export       Exporter
	setTheme     ThemeSetter
	list         list.Model
	viewport     viewport.Model
	commandInput textinput.Model
	dash         dashboardView
	selected     *models.HistoryEntry
	width        int
	height       int
	ready        bool
	mode         commandMode
	confirm      confirmAction
	status       string
}

func newBrowserModel(history HistorySource, styles Styles) browserModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New(nil, delegate, 0, 0)
	l.Title = "History"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = styles.Title

	vp := viewport.New(0, 0)

	cmdInput := textinput.New()
	cmdInput.Prompt = ":"
	cmdInput.CharLimit = 256
	cmdInput.Width = 50

	m := browserModel{
		history:      history,
		styles:       styles,
		list:         l,
		viewport:     vp,
		commandInput: cmdInput,
		dash:         newDashboardView(styles),
	}
	m.refreshList()
	return m
}

func (m browserModel) Init() tea.Cmd {
	return nil
}

func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		listWidth := m.width / 3
		m.list.SetSize(listWidth, m.height-3)

		m.viewport.Width = m.width - listWidth - 4
		m.viewport.Height = m.height - 5
		m.commandInput.Width = m.width - 4
		m.updateViewport()

	case tea.KeyMsg:
		key := msg.String()
		switch m.mode {
		case modeConfirm:
			switch key {
			case "y", "Y":
				m.applyConfirm()
			default:
				m.status = "Cancelled"
			}
			m.mode = modeNormal
			m.confirm = 0
			return m, nil

		case modeCommand:
			switch key {
			case "enter":
				m.executeCommand(m.commandInput.Value())
				m.mode = modeNormal
				m.commandInput.Blur()
				m.commandInput.SetValue("")
				return m, nil
			case "esc":
				m.mode = modeNormal
				m.commandInput.Blur()
				m.commandInput.SetValue("")
				m.status = ""
				return m, nil
			}

		case modeSearch:
			if key == "esc" || key == "enter" {
				m.mode = modeNormal
			}

		case modeNormal:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch key {
			case "q", "ctrl+c":
				return m, tea.Quit

			case "enter":
				m.selectCurrent()
				return m, nil

			case "d":
				if item, ok := m.list.SelectedItem().(listItem); ok {
					m.mode = modeConfirm
					m.confirm = confirmDelete
					m.status = fmt.Sprintf("Delete %s? (y/N)", item.Title())
				}
				return m, nil

			case "C":
				if len(m.list.Items()) > 0 {
					m.mode = modeConfirm
					m.confirm = confirmClear
					m.status = "Clear all history? This cannot be undone. (y/N)"
				}
				return m, nil

			case ":":
				m.mode = modeCommand
				m.commandInput.Focus()
				m.commandInput.SetValue("")
				return m, textinput.Blink

			case "/":
				m.mode = modeSearch

			case "?":
				m.showHelp()
				return m, nil

			default:
				if m.dash.HandleKey(key) {
					m.updateViewport()
					return m, nil
				}
			}
		}
	}

	switch m.mode {
	case modeCommand:
		m.commandInput, cmd = m.commandInput.Update(msg)
		cmds = append(cmds, cmd)
	default:
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *browserModel) selectCurrent() {
	item, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return
	}
	e := item.entry
	m.selected = &e
	m.dash.SetEntry(m.selected)
	m.updateViewport()
}

func (m *browserModel) applyConfirm() {
	switch m.confirm {
	case confirmDelete:
		item, ok := m.list.SelectedItem().(listItem)
		if !ok {
			return
		}
		if m.history.Remove(item.entry.ID) {
			m.status = fmt.Sprintf("Deleted %s", item.Title())
		} else {
			m.status = "Entry already gone"
		}
		if m.selected != nil && m.selected.ID == item.entry.ID {
			m.selected = nil
			m.dash.SetEntry(nil)
		}
	case confirmClear:
		m.history.Clear()
		m.selected = nil
		m.dash.SetEntry(nil)
		m.status = "History cleared"
	}
	m.refreshList()
	m.updateViewport()
}

func (m *browserModel) executeCommand(cmdStr string) {
	parts := strings.Fields(cmdStr)
	if len(parts) == 0 {
		return
	}
	command, args := parts[0], parts[1:]

	switch command {
	case "export":
		if len(args) == 0 {
			m.status = "Usage: :export <filename>"
			return
		}
		if m.selected == nil {
			m.status = "No analysis selected"
			return
		}
		if m.export == nil {
			m.status = "Export not available"
			return
		}
		if err := m.export(*m.selected, args[0]); err != nil {
			m.status = fmt.Sprintf("Export failed: %v", err)
			return
		}
		m.status = fmt.Sprintf("Exported to %s", args[0])

	case "theme":
		if len(args) == 0 || (args[0] != ThemeDark && args[0] != ThemeLight) {
			m.status = "Usage: :theme dark|light"
			return
		}
		if m.setTheme != nil {
			if err := m.setTheme(args[0]); err != nil {
				m.status = fmt.Sprintf("Saving theme failed: %v", err)
				return
			}
		}
		m.styles = NewStyles(args[0])
		m.dash.styles = m.styles
		m.list.Styles.Title = m.styles.Title
		m.status = fmt.Sprintf("Theme set to %s", args[0])
		m.updateViewport()

	case "delete":
		if _, ok := m.list.SelectedItem().(listItem); ok {
			m.mode = modeConfirm
			m.confirm = confirmDelete
			m.status = "Delete selected analysis? (y/N)"
		}

	case "help", "h":
		m.showHelp()

	default:
		m.status = fmt.Sprintf("Unknown command: %s", command)
	}
}

func (m *browserModel) showHelp() {
	help := `
Commands (press : to enter command mode):

  :export <file>  - Export selected analysis as JSON
  :theme <name>   - Switch between dark and light
  :delete         - Delete selected analysis
  :help           - Show this help

Keys:
  j/k or ↑/↓     - Navigate list
  enter          - View analysis
  1-4 / tab      - Switch dashboard tab
  d              - Delete selected (asks first)
  C              - Clear all history (asks first)
  /              - Filter list
  ?              - Show help
  q              - Quit
`
	m.viewport.SetContent(help)
	m.viewport.GotoTop()
}

func (m *browserModel) refreshList() {
	entries := m.history.Newest()
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = listItem{entry: e, number: len(entries) - i}
	}
	m.list.SetItems(items)
	m.list.Title = fmt.Sprintf("History (%d)", len(entries))
}

func (m *browserModel) updateViewport() {
	if len(m.list.Items()) == 0 && m.selected == nil {
		m.viewport.SetContent("No analysis history yet. Run `unip analyze` to get started.")
		return
	}
	m.viewport.SetContent(m.dash.View(m.viewport.Width))
	m.viewport.GotoTop()
}

func (m browserModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	listView := m.styles.Pane.
		Width(m.width/3 - 2).
		Height(m.height - 3).
		Render(m.list.View())

	contentView := m.styles.Pane.
		Width(m.width - m.width/3 - 2).
		Height(m.height - 3).
		Render(m.viewport.View())

	var bottomBar string
	switch m.mode {
	case modeCommand:
		bottomBar = m.commandInput.View()
	case modeSearch:
		bottomBar = m.styles.Help.Render("  Filter mode - type to filter • ESC: exit")
	default:
		if m.status != "" {
			bottomBar = m.styles.Help.Render("  " + m.status)
		} else {
			bottomBar = m.styles.Help.Render("  j/k: navigate • enter: view • 1-4: tabs • d: delete • C: clear • :: command • ?: help • q: quit")
		}
	}

	topBar := lipgloss.JoinHorizontal(
		lipgloss.Left,
		m.styles.Title.Render("UNIP"),
		m.styles.Subtle.Render("  analysis history"),
	)

	return topBar + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, listView, contentView) +
		"\n" + bottomBar
}
