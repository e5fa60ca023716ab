package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across all TUI components
var (
	Green  = lipgloss.Color("10") // success, high confidence
	Red    = lipgloss.Color("9")  // error, hallucination warning
	Yellow = lipgloss.Color("11") // caution, low confidence
	Grey   = lipgloss.Color("8")  // muted text, metadata
	Blue   = lipgloss.Color("4")  // headers, borders
	White  = lipgloss.Color("15") // header text
)

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	WarnIcon    = "⚠"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Muted    lipgloss.Style
	Question lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,

		Title: r.NewStyle().
			Bold(true).
			Foreground(White),

		Subtitle: r.NewStyle().
			Foreground(Grey),

		Success: r.NewStyle().
			Foreground(Green),

		Error: r.NewStyle().
			Foreground(Red),

		Warning: r.NewStyle().
			Foreground(Yellow),

		Muted: r.NewStyle().
			Foreground(Grey),

		Question: r.NewStyle().
			Bold(true).
			Foreground(Blue),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// Truncate shortens a string to maxLen with ellipsis
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
