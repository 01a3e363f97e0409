package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hoa-dossier/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hoa-dossier",
	Short: "HOA property dossier enrichment pipeline",
	Long:  "Resolves property addresses, gathers evidence about the governing homeowners association from public records and search providers, and synthesizes a scored dossier verdict.",
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
