package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "audit-engine",
	Short: "Semantic content compliance and corpus audit engine",
	Long:  "Scores documents against a declarative rule set, detects cross-page overlap and anchor abuse, aggregates entity authority signals, and emits a prioritized remediation roadmap.",
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
