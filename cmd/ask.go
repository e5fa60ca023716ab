package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lifeforge/docchat/internal/session"
	"github.com/lifeforge/docchat/internal/tui/chat"
	"github.com/lifeforge/docchat/internal/ui"
)

var askText bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer",
	Long: `Ask a one-shot question about the ingested document and stream the
grounded answer.

Examples:
  docchat ask "What is the main conclusion?"
  docchat ask "Which figure shows the revenue trend?"
  docchat ask "Summarize chapter 2" --agentic
  docchat ask "List the key findings" --text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Output plain text instead of rendered markdown")
	rootCmd.AddCommand(askCmd)
}

// errQueryFailed is what the command returns on transport failure. Cobra
// prefixes "Error:" when printing it, so the text carries no prefix of its
// own and nothing else echoes the failure.
var errQueryFailed = errors.New("failed to get a response from the server")

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	store := openStore(cfg)
	defer store.Close()

	updates, push := chat.NewUpdateChannel()
	ctrl := session.NewController(client, &session.Ledger{}, store, session.Config{
		Throttle: cfg.Throttle(),
		OnUpdate: push,
	})
	// Runs before the store closes, so the completed turn's write lands.
	defer ctrl.Wait()

	if err := ctrl.Start(context.Background(), question); err != nil {
		return err
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if !askText && isTTY {
		return askWithBubbleTea(updates)
	}
	return askPlainText(os.Stdout, updates)
}

// askPlainText prints the answer incrementally: each update appends the
// suffix the previous one did not have. The fixed failure text is never
// echoed here; the command's returned error reports it exactly once.
func askPlainText(w io.Writer, updates <-chan session.Snapshot) error {
	styles := ui.DefaultStyles()
	var printed string
	for snap := range updates {
		if snap.Display != printed && snap.Display != session.FailedDisplay {
			if strings.HasPrefix(snap.Display, printed) {
				fmt.Fprint(w, snap.Display[len(printed):])
			} else {
				// Display was replaced rather than extended.
				fmt.Fprint(w, "\n"+snap.Display)
			}
			printed = snap.Display
		}

		switch snap.State {
		case session.StateCompleted:
			fmt.Fprintln(w)
			if footer := styles.FormatFooter(snap.Metadata); footer != "" {
				fmt.Fprintln(os.Stderr, footer)
			}
			return nil
		case session.StateAborted:
			fmt.Fprintln(w)
			return nil
		case session.StateFailed:
			if printed != "" {
				fmt.Fprintln(w)
			}
			return errQueryFailed
		}
	}
	return nil
}

// askModel streams the answer through bubbletea so partial markdown can be
// re-rendered in place.
type askModel struct {
	spinner   spinner.Model
	updates   <-chan session.Snapshot
	snap      session.Snapshot
	styles    *ui.Styles
	done      bool
	failed    bool
	finalView string
}

type askSnapshotMsg session.Snapshot

func newAskModel(updates <-chan session.Snapshot) askModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return askModel{
		spinner: s,
		updates: updates,
		styles:  ui.DefaultStyles(),
	}
}

func (m askModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForAskSnapshot(m.updates))
}

func waitForAskSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return askSnapshotMsg(<-updates)
	}
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case askSnapshotMsg:
		m.snap = session.Snapshot(msg)
		switch m.snap.State {
		case session.StateCompleted:
			m.done = true
			m.finalView = ui.RenderMarkdown(m.snap.Display, 0) + "\n"
			if footer := m.styles.FormatFooter(m.snap.Metadata); footer != "" {
				m.finalView += footer + "\n"
			}
			return m, tea.Quit
		case session.StateAborted:
			m.done = true
			m.finalView = ui.RenderMarkdown(m.snap.Display, 0) + "\n"
			return m, tea.Quit
		case session.StateFailed:
			// The command's returned error reports the failure.
			m.done = true
			m.failed = true
			m.finalView = ""
			return m, tea.Quit
		}
		return m, waitForAskSnapshot(m.updates)
	}

	return m, nil
}

func (m askModel) View() string {
	if m.done {
		return m.finalView
	}
	if m.snap.Display == "" {
		return m.spinner.View() + " Thinking..."
	}
	return ui.RenderMarkdown(m.snap.Display, 0)
}

// askWithBubbleTea uses bubbletea for proper terminal handling
func askWithBubbleTea(updates <-chan session.Snapshot) error {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		// Fallback to simple streaming if no TTY
		return askPlainText(os.Stdout, updates)
	}
	defer tty.Close()

	model := newAskModel(updates)
	p := tea.NewProgram(model, tea.WithInput(tty), tea.WithOutput(os.Stdout))

	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(askModel); ok && m.failed {
		return errQueryFailed
	}
	return nil
}
