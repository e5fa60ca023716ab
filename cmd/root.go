package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifeforge/docchat/internal/config"
	"github.com/lifeforge/docchat/internal/ragclient"
	"github.com/lifeforge/docchat/internal/session"
)

var (
	flagBackend string
	flagAgentic bool
	flagTimeout int
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with an ingested document over a RAG backend",
	Long: `docchat streams grounded answers about ingested PDF documents from a
retrieval-augmented backend.

Examples:
  docchat ingest report.pdf             # upload a document
  docchat ask "What is the conclusion?" # one-shot question
  docchat chat                          # interactive session
  docchat ask "Summarize page 3" --agentic

  docchat history                       # past exchanges
  docchat config                        # view configuration`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagAgentic, "agentic", false, "Use the agentic query pipeline")
	rootCmd.PersistentFlags().IntVar(&flagTimeout, "timeout", 0, "Request timeout in seconds (overrides config)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(flagBackend, flagAgentic, flagTimeout)
	return cfg, nil
}

func newClient(cfg *config.Config) (*ragclient.Client, error) {
	client, err := ragclient.New(cfg.Backend.URL, cfg.Timeout(), cfg.Backend.Agentic)
	if err != nil {
		return nil, fmt.Errorf("invalid backend configuration: %w", err)
	}
	return client, nil
}

// openStore returns the history store, falling back to a no-op store when
// persistence is disabled or the database cannot be opened.
func openStore(cfg *config.Config) session.Store {
	if !cfg.History.Enabled {
		return &session.NoopStore{}
	}
	store, err := session.NewSQLiteStore(session.StoreConfig{
		MaxCount:   cfg.History.MaxCount,
		MaxAgeDays: cfg.History.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history disabled: %v\n", err)
		return &session.NoopStore{}
	}
	return store
}
