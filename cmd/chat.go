package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lifeforge/docchat/internal/session"
	"github.com/lifeforge/docchat/internal/tui/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive TUI chat session against the document backend.
Follow-up questions carry the conversation so far as context.

Examples:
  docchat chat
  docchat chat --agentic

Keyboard shortcuts:
  Enter   - Send question
  Esc     - Stop the in-flight answer
  Ctrl+K  - Clear conversation
  Ctrl+C  - Quit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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
		Throttle:  cfg.Throttle(),
		OnUpdate:  push,
		FetchLogs: true,
	})
	// Runs before the store closes, so pending history writes land.
	defer ctrl.Wait()

	model := chat.New(ctrl, updates)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
