package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the status of a background enrichment task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		task, err := env.Store.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("task %s\n", task.ID)
		fmt.Printf("  entity:   %s\n", task.EntityID)
		fmt.Printf("  decision: %s\n", task.Decision)
		fmt.Printf("  status:   %s\n", task.Status)
		if task.Error != "" {
			fmt.Printf("  error:    %s\n", task.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
