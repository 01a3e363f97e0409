package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/hoa-dossier/internal/model"
	"github.com/sells-group/hoa-dossier/internal/pipeline"
)

var enrichName string

var enrichCmd = &cobra.Command{
	Use:   "enrich \"<address>\"",
	Short: "Resolve an address and build its HOA dossier synchronously",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		address := strings.Join(args, " ")
		entity, decision, err := env.Pipeline.Enrich(cmd.Context(), pipeline.Request{
			Address: address,
			Name:    enrichName,
		})
		if err != nil {
			return err
		}

		printDossier(entity, decision)
		return nil
	},
}

func printDossier(entity *model.Entity, decision model.EnrichmentDecision) {
	fmt.Printf("%s (%s)\n", entity.Name, entity.ID)
	fmt.Printf("  decision:     %s\n", decision)
	fmt.Printf("  completeness: %d%%\n", entity.Completeness)
	if v := entity.Verdict; v != nil {
		fmt.Printf("  score:        %.1f/10", v.OverallScore)
		if v.Fallback {
			fmt.Print(" (fallback verdict, provider unavailable)")
		}
		fmt.Println()
		fmt.Printf("  summary:      %s\n", v.Summary)
		for _, flag := range v.Flags.Red {
			fmt.Printf("  red:          %s\n", flag)
		}
		for _, flag := range v.Flags.Yellow {
			fmt.Printf("  yellow:       %s\n", flag)
		}
		for _, flag := range v.Flags.Green {
			fmt.Printf("  green:        %s\n", flag)
		}
	}
	if enrichJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(entity)
	}
}

var enrichJSON bool

func init() {
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "association name hint")
	enrichCmd.Flags().BoolVar(&enrichJSON, "json", false, "print the full entity as JSON")
	rootCmd.AddCommand(enrichCmd)
}
