package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// finishCmd represents the finish command
var finishCmd = &cobra.Command{
	Use:   "finish <correlation-id>",
	Short: "Complete a pending transition with field values",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		valuesJSON, _ := cmd.Flags().GetString("values")
		values := make(map[string]any)
		if valuesJSON != "" {
			if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
				fmt.Printf("Invalid --values JSON: %v\n", err)
				os.Exit(1)
			}
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		logger := newLogger(cfg)

		engine, cleanup, err := buildEngine(cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing engine: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		outcome, err := engine.FinishTransition(context.Background(), args[0], values)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Work item %d moved to %s.\n", outcome.WorkItemID, outcome.TargetState)
	},
}

func init() {
	rootCmd.AddCommand(finishCmd)

	finishCmd.Flags().String("values", "", "JSON object mapping field reference names to values")
}
