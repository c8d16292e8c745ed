package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/OSchengdu/swissK-agent/internal/session"
	"github.com/OSchengdu/swissK-agent/internal/task"
)

const (
	title         = " swissk "
	emptyBody     = "No messages yet."
	shortcutsHelp = "Input | Ctrl+T=Mode | Ctrl+S=Session | Ctrl+R=History | Ctrl+Q=Quit"
	sessionHelp   = "Enter new session name (Enter to confirm, Esc to cancel)"
)

// pollMsg triggers a non-blocking check for a worker result.
type pollMsg struct{}

// Options configures the chat model.
type Options struct {
	PollInterval time.Duration
	// HistoryLimit bounds how many stored exchanges are loaded on session switch.
	HistoryLimit int
	Styles       *Styles
}

// Model is the bubbletea model for the interactive chat.
type Model struct {
	ctrl    *session.Controller
	input   textinput.Model
	rename  textinput.Model
	spinner spinner.Model
	styles  Styles

	pollEvery    time.Duration
	historyLimit int

	showHistory bool
	renaming    bool
	notice      string
	width       int
	quitting    bool
}

// New builds a chat model over ctrl.
func New(ctrl *session.Controller, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}

	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "Ask something, or quote:N"
	in.Focus()

	rn := textinput.New()
	rn.Prompt = "Session: "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctrl:         ctrl,
		input:        in,
		rename:       rn,
		spinner:      sp,
		styles:       styles,
		pollEvery:    opts.PollInterval,
		historyLimit: opts.HistoryLimit,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.poll())
}

func (m Model) poll() tea.Cmd {
	return tea.Tick(m.pollEvery, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-8, 10)
		return m, nil

	case pollMsg:
		if _, ok := m.ctrl.Poll(context.Background()); ok {
			m.notice = ""
		}
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.renaming {
			return m.updateRename(msg)
		}
		return m.updateChat(msg)
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		m.quitting = true
		return m, tea.Quit
	case "ctrl+t":
		m.ctrl.CycleMode()
		return m, nil
	case "ctrl+r":
		m.showHistory = !m.showHistory
		return m, nil
	case "ctrl+s":
		m.renaming = true
		m.rename.Reset()
		m.input.Blur()
		return m, m.rename.Focus()
	case "esc":
		m.input.Reset()
		m.notice = ""
		return m, nil
	case "enter":
		m.submit()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() {
	value := m.input.Value()
	if strings.HasPrefix(value, session.QuotePrefix) {
		quoted, ok := m.ctrl.ExpandQuote(value)
		if !ok {
			m.notice = "nothing to quote at " + strings.TrimPrefix(value, session.QuotePrefix)
			return
		}
		m.input.SetValue(quoted)
		m.input.CursorEnd()
		m.notice = ""
		return
	}

	err := m.ctrl.Submit(value)
	switch {
	case err == nil:
		m.input.Reset()
		m.notice = ""
	case errors.Is(err, session.ErrBlank):
	default:
		m.notice = err.Error()
	}
}

func (m Model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.renaming = false
		m.rename.Blur()
		return m, m.input.Focus()
	case "enter":
		name := m.ctrl.SetSession(m.rename.Value())
		m.renaming = false
		m.rename.Blur()
		if err := m.ctrl.Load(context.Background(), m.historyLimit); err != nil {
			m.notice = fmt.Sprintf("session %s: %v", name, err)
		} else {
			m.notice = ""
		}
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.renaming {
		return m.frame(m.styles.Body).Render(sessionHelp+"\n"+m.rename.View()) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.frame(m.styles.Body).Render(m.body()))
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(m.styles.Notice.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Muted.Render(shortcutsHelp))
	b.WriteString("\n")
	b.WriteString(m.frame(m.styles.Input).Render(m.input.View()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) frame(s lipgloss.Style) lipgloss.Style {
	if m.width > 4 {
		return s.Width(m.width - 2)
	}
	return s
}

func (m Model) header() string {
	parts := []string{
		m.styles.Title.Render(title),
		m.styles.Mode.Render("Mode: " + m.ctrl.Mode().String()),
		m.styles.Session.Render("Session: " + m.ctrl.Name()),
	}
	h := strings.Join(parts, " | ")
	if m.ctrl.RagLoaded() {
		h += m.styles.Muted.Render(" [rag]")
	}
	if m.ctrl.Waiting() {
		h += " " + m.spinner.View() + m.styles.Thinking.Render("[thinking...]")
	}
	return h
}

func (m Model) body() string {
	msgs := m.ctrl.History()
	if m.showHistory {
		if len(msgs) == 0 {
			return "History Stack\n" + emptyBody
		}
		var b strings.Builder
		b.WriteString("History Stack")
		for i := len(msgs) - 1; i >= 0; i-- {
			fmt.Fprintf(&b, "\n%d: %s → %s", len(msgs)-i, msgs[i].Input, m.renderOutput(msgs[i].Output))
		}
		return b.String()
	}

	last, ok := m.ctrl.Last()
	if !ok {
		return emptyBody
	}
	return "> " + last.Input + "\n" + m.renderOutput(last.Output)
}

func (m Model) renderOutput(out string) string {
	if task.IsFailure(out) {
		return m.styles.Failure.Render(out)
	}
	return out
}
