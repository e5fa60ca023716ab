package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifeforge/docchat/internal/config"
	"github.com/lifeforge/docchat/internal/ui"
)

var configInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or initialize configuration",
	Long: `View the effective configuration and where it is loaded from.

Examples:
  docchat config          # show current settings
  docchat config --init   # write a config file with current settings`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write the current settings to the config file")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()

	if configInit {
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		path, _ := config.GetConfigPath()
		fmt.Println(styles.FormatResult(true, "wrote "+path))
		return nil
	}

	path, _ := config.GetConfigPath()
	source := path
	if !config.Exists() {
		source = "defaults (no config file)"
	}

	fmt.Println(styles.Title.Render("docchat configuration"))
	fmt.Println(styles.Subtitle.Render("source: " + source))
	fmt.Println()
	fmt.Printf("backend url:      %s\n", cfg.Backend.URL)
	fmt.Printf("timeout:          %s\n", cfg.Timeout())
	fmt.Printf("agentic pipeline: %t\n", cfg.Backend.Agentic)
	fmt.Printf("render throttle:  %s\n", cfg.Throttle())
	fmt.Printf("history:          enabled=%t max_count=%d max_age_days=%d\n",
		cfg.History.Enabled, cfg.History.MaxCount, cfg.History.MaxAgeDays)
	return nil
}
