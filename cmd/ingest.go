package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifeforge/docchat/internal/ui"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Upload a PDF document to the backend",
	Long: `Upload a PDF so the backend can index it for question answering.
Ingestion replaces the previously indexed document.

Examples:
  docchat ingest report.pdf
  docchat ingest report.pdf --agentic`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()

	fmt.Printf("Uploading %s...\n", args[0])
	msg, err := client.Ingest(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if msg == "" {
		msg = "document ingested"
	}
	fmt.Println(styles.FormatResult(true, msg))
	return nil
}
