package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeforge/docchat/internal/ui"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the backend is reachable",
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()

	start := time.Now()
	if err := client.Ping(context.Background()); err != nil {
		fmt.Println(styles.FormatResult(false, cfg.Backend.URL+" is unreachable"))
		return err
	}
	fmt.Println(styles.FormatResult(true, fmt.Sprintf("%s responded in %s",
		cfg.Backend.URL, time.Since(start).Round(time.Millisecond))))
	return nil
}
