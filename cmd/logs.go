package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lifeforge/docchat/internal/ui"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the backend's recent query log",
	Long: `Show the analytics records the backend keeps for recent queries:
confidence, similarity scores and quality flags.

Examples:
  docchat logs
  docchat logs --limit 50`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "Maximum number of records to show")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()

	records, err := client.RecentLogs(context.Background(), logsLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch logs: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No query logs yet.")
		return nil
	}

	for _, rec := range records {
		fmt.Println(styles.Question.Render("> " + ui.Truncate(rec.Question, 80)))
		line := fmt.Sprintf("confidence %.0f%% · similarity %.2f · %.1fs",
			rec.Confidence*100, rec.TopSimilarity, rec.LatencyMs/1000)
		if rec.Rejected {
			line += " · " + styles.Error.Render("rejected")
		} else if rec.IsHallucination {
			line += " · " + styles.Warning.Render("ungrounded")
		}
		fmt.Println(styles.Muted.Render(line))
		fmt.Println(ui.Truncate(strings.ReplaceAll(rec.Answer, "\n", " "), 160))
		fmt.Println()
	}
	return nil
}
