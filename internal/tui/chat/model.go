package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lifeforge/docchat/internal/session"
	"github.com/lifeforge/docchat/internal/ui"
)

// snapshotMsg carries a controller state change into the update loop.
type snapshotMsg session.Snapshot

// NewUpdateChannel returns a snapshot channel plus an OnUpdate callback
// that never blocks the controller: when the channel is full the oldest
// snapshot is dropped, so the latest state always gets through.
func NewUpdateChannel() (chan session.Snapshot, func(session.Snapshot)) {
	ch := make(chan session.Snapshot, 64)
	push := func(s session.Snapshot) {
		for {
			select {
			case ch <- s:
				return
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	}
	return ch, push
}

// Model is the interactive chat TUI. It owns no session state itself;
// everything visible comes from controller snapshots.
type Model struct {
	ctrl    *session.Controller
	updates <-chan session.Snapshot
	snap    session.Snapshot

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   *ui.Styles

	width  int
	height int
	ready  bool
}

// New creates a chat model bound to a controller and its update channel.
func New(ctrl *session.Controller, updates <-chan session.Snapshot) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about the document..."
	ta.Prompt = "> "
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctrl:    ctrl,
		updates: updates,
		snap:    ctrl.Snapshot(),
		input:   ta,
		spinner: sp,
		styles:  ui.DefaultStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForSnapshot(m.updates))
}

// waitForSnapshot reads the next controller update and delivers it as a
// message.
func waitForSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-updates)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 2)
		vpHeight := msg.Height - m.input.Height() - 3
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.ctrl.Stop()
			return m, tea.Quit
		case "esc":
			if m.snap.Streaming() {
				m.ctrl.Stop()
				return m, nil
			}
			return m, nil
		case "ctrl+k":
			m.ctrl.Stop()
			m.ctrl.Ledger().Clear()
			m.ctrl.Reset()
			m.refreshViewport()
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if err := m.ctrl.Start(context.Background(), text); err != nil {
				return m, nil
			}
			m.input.Reset()
			return m, m.spinner.Tick
		}

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, waitForSnapshot(m.updates)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Streaming() {
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
}

// renderConversation lays out the completed ledger turns followed by the
// session currently on screen, if it is not a ledger turn yet.
func (m Model) renderConversation() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	turns := m.ctrl.Ledger().Turns()
	for i, turn := range turns {
		b.WriteString(m.styles.Question.Render("> " + turn.Question))
		b.WriteString("\n")
		b.WriteString(ui.RenderMarkdown(turn.Answer, width))
		if footer := m.styles.FormatFooter(turn.Metadata); footer != "" {
			b.WriteString("\n")
			b.WriteString(footer)
		}
		// Backend analytics only exist for the newest exchange.
		if i == len(turns)-1 && m.snap.State == session.StateCompleted {
			if extra := m.styles.FormatAnalytics(m.snap.Analytics); extra != "" {
				b.WriteString("\n")
				b.WriteString(extra)
			}
		}
		b.WriteString("\n\n")
	}

	switch m.snap.State {
	case session.StateStreaming:
		b.WriteString(m.styles.Question.Render("> " + m.snap.Question))
		b.WriteString("\n")
		if m.snap.Display == "" {
			b.WriteString(m.spinner.View() + " Thinking...")
		} else {
			b.WriteString(ui.RenderMarkdown(m.snap.Display, width))
		}
	case session.StateAborted:
		b.WriteString(m.styles.Question.Render("> " + m.snap.Question))
		b.WriteString("\n")
		if m.snap.Display != "" {
			b.WriteString(ui.RenderMarkdown(m.snap.Display, width))
			b.WriteString("\n")
		}
		b.WriteString(m.styles.Muted.Render("(stopped)"))
	case session.StateFailed:
		b.WriteString(m.styles.Question.Render("> " + m.snap.Question))
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render(m.snap.ErrText))
	}

	return b.String()
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	help := m.styles.Muted.Render("enter send · esc stop · ctrl+k clear · ctrl+c quit")
	return m.viewport.View() + "\n" + m.input.View() + "\n" + help
}
