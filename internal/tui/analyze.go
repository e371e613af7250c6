package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jasperwreed/unip/internal/analysis"
	"github.com/jasperwreed/unip/internal/client"
	"github.com/jasperwreed/unip/internal/models"
)

// Subscriber publishes progress updates.
type Subscriber interface {
	Subscribe(l analysis.Listener) (unsubscribe func())
}

// SubmitFunc runs one submission to completion.
type SubmitFunc func(ctx context.Context) (*models.HistoryEntry, error)

type AnalyzeOptions struct {
	Theme       string
	Tasks       []string
	RevealDelay time.Duration
}

type progressMsg models.ProgressState

type resultMsg struct {
	entry *models.HistoryEntry
	err   error
}

type revealMsg struct{}

type analyzeModel struct {
	ctx         context.Context
	cancel      context.CancelFunc
	submit      SubmitFunc
	styles      Styles
	spinner     spinner.Model
	progress    progress.Model
	tasks       []string
	revealDelay time.Duration

	state     models.ProgressState
	entry     *models.HistoryEntry
	err       error
	dismissed bool
	finished  bool
	reveal    bool
	dash      dashboardView
	width     int
}

func newAnalyzeModel(ctx context.Context, submit SubmitFunc, opts AnalyzeOptions) analyzeModel {
	styles := NewStyles(opts.Theme)
	ctx, cancel := context.WithCancel(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Title

	tasks := opts.Tasks
	if len(tasks) == 0 {
		tasks = models.AllTasks
	}

	return analyzeModel{
		ctx:         ctx,
		cancel:      cancel,
		submit:      submit,
		styles:      styles,
		spinner:     sp,
		progress:    progress.New(progress.WithGradient(styles.ProgressFrom, styles.ProgressTo), progress.WithWidth(40)),
		tasks:       tasks,
		revealDelay: opts.RevealDelay,
		state:       models.ProgressState{Stage: models.StageIdle},
		dash:        newDashboardView(styles),
		width:       80,
	}
}

func (m analyzeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run())
}

func (m analyzeModel) run() tea.Cmd {
	return func() tea.Msg {
		entry, err := m.submit(m.ctx)
		return resultMsg{entry: entry, err: err}
	}
}

func (m analyzeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(20, min(60, msg.Width-10))

	case progressMsg:
		m.state = models.ProgressState(msg)

	case resultMsg:
		m.finished = true
		m.entry = msg.entry
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.dash.SetEntry(msg.entry)
		return m, tea.Tick(m.revealDelay, func(time.Time) tea.Msg { return revealMsg{} })

	case revealMsg:
		m.reveal = true

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "q", "enter":
			if m.finished {
				return m, tea.Quit
			}
		case "esc":
			if m.err != nil {
				m.dismissed = true
			}
		default:
			if m.reveal {
				m.dash.HandleKey(key)
			}
		}
	}
	return m, nil
}

func (m analyzeModel) View() string {
	if m.reveal && m.entry != nil {
		return m.dash.View(m.width) + "\n" +
			m.styles.Help.Render("1-4/tab: switch tab • q: quit") + "\n"
	}

	var b strings.Builder
	stage := m.state.Stage

	if m.err != nil && !m.dismissed {
		msg := m.err.Error()
		if apiErr := client.Normalize(m.err); apiErr != nil {
			msg = apiErr.Message
		}
		b.WriteString(m.styles.Error.Render("Error: " + msg))
		b.WriteString("\n")
		b.WriteString(m.styles.Help.Render("esc: dismiss"))
		b.WriteString("\n")
		return b.String()
	}

	icon := m.spinner.View()
	switch {
	case m.finished && m.err != nil:
		icon = m.styles.Error.Render("✗")
	case m.finished:
		icon = m.styles.Success.Render("✓")
	}
	fmt.Fprintf(&b, "%s %s  %s\n", icon, m.styles.Title.Render(stage.Label()), m.state.Message)
	fmt.Fprintf(&b, "%s\n\n", m.progress.ViewAs(float64(m.state.Percent)/100))

	for _, task := range m.tasks {
		switch {
		case m.state.TaskDone(task):
			fmt.Fprintf(&b, "  %s %s\n", m.styles.Success.Render("✓"), task)
		case task == m.state.CurrentTask:
			fmt.Fprintf(&b, "  %s %s\n", m.styles.Title.Render("▸"), task)
		default:
			fmt.Fprintf(&b, "  %s %s\n", m.styles.Subtle.Render("·"), m.styles.Subtle.Render(task))
		}
	}
	b.WriteString("\n")
	if m.finished {
		b.WriteString(m.styles.Help.Render("q: quit"))
	} else {
		b.WriteString(m.styles.Help.Render("ctrl+c: cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// RunAnalyze shows live progress for submit and then the result dashboard.
// It returns what submit returned.
func RunAnalyze(ctx context.Context, sub Subscriber, submit SubmitFunc, opts AnalyzeOptions) (*models.HistoryEntry, error) {
	m := newAnalyzeModel(ctx, submit, opts)
	defer m.cancel()

	p := tea.NewProgram(m)
	unsubscribe := sub.Subscribe(func(s models.ProgressState) {
		p.Send(progressMsg(s))
	})
	defer unsubscribe()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	fm := final.(analyzeModel)
	if !fm.finished {
		return nil, context.Canceled
	}
	return fm.entry, fm.err
}
