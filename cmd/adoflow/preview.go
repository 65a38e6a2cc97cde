package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// previewCmd represents the preview command
var previewCmd = &cobra.Command{
	Use:   "preview <work-item-id>",
	Short: "Show the next workflow state without changing anything",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			fmt.Printf("Invalid work item id: %s\n", args[0])
			os.Exit(1)
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

		p, err := engine.PreviewTransition(context.Background(), id)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if !p.Available {
			fmt.Printf("Work item %d (%s) has no next state.\n", p.WorkItemID, p.CurrentState)
			return
		}
		fmt.Printf("Work item %d: %s -> %s\n", p.WorkItemID, p.CurrentState, p.TargetState)
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}
