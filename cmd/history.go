package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lifeforge/docchat/internal/ui"
)

var (
	historyLimit int
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past exchanges",
	Long: `Show question/answer exchanges persisted from earlier sessions,
newest first.

Examples:
  docchat history
  docchat history --limit 5
  docchat history --clear`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of exchanges to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete all persisted history")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in the configuration")
	}

	store := openStore(cfg)
	defer store.Close()
	ctx := context.Background()
	styles := ui.DefaultStyles()

	if historyClear {
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Println(styles.FormatResult(true, "history cleared"))
		return nil
	}

	turns, err := store.List(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(turns) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	for _, turn := range turns {
		fmt.Println(styles.Subtitle.Render(turn.CreatedAt.Format("2006-01-02 15:04")))
		fmt.Println(styles.Question.Render("> " + turn.Question))
		fmt.Println(ui.Truncate(strings.ReplaceAll(turn.Answer, "\n", " "), 200))
		if footer := styles.FormatFooter(turn.Metadata); footer != "" {
			fmt.Println(footer)
		}
		fmt.Println()
	}
	return nil
}
