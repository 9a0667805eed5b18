package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "Entity extraction and resolution over historical text corpora",
	Long:  "Chunks source documents, extracts entity mentions via NER, merges them into a crash-resumable registry, then disambiguates each discovered entity against the decided pool with LLM judgment vetted by hard validation rules.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
