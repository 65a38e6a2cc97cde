package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/spf13/cobra"
)

// advanceCmd represents the advance command
var advanceCmd = &cobra.Command{
	Use:   "advance <work-item-id>",
	Short: "Advance a work item to its next workflow state",
	Long: `Starts a transition for the given work item. When the target state needs
no extra fields the transition completes immediately. Otherwise the required
field prompts and a correlation id are printed; complete the transition with
'adoflow finish' or abandon it with 'adoflow cancel'.

Field values can be supplied up front with --values to finish in one step.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			fmt.Printf("Invalid work item id: %s\n", args[0])
			os.Exit(1)
		}
		valuesJSON, _ := cmd.Flags().GetString("values")

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

		ctx := context.Background()
		result, err := engine.BeginTransition(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNoTransitionAvailable) {
				fmt.Printf("Work item %d has no next state; nothing to do.\n", id)
				return
			}
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if result.Status == domain.StatusCompleted {
			fmt.Printf("Work item %d moved to %s.\n", id, result.TargetState)
			return
		}

		if valuesJSON != "" {
			values := make(map[string]any)
			if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
				fmt.Printf("Invalid --values JSON: %v\n", err)
				os.Exit(1)
			}
			outcome, err := engine.FinishTransition(ctx, result.CorrelationID, values)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Work item %d moved to %s.\n", outcome.WorkItemID, outcome.TargetState)
			return
		}

		fmt.Printf("Work item %d needs fields before moving to %s.\n\n", id, result.TargetState)
		for _, p := range result.Prompts {
			line := fmt.Sprintf("  %s (%s", p.Label, p.Kind)
			if p.Required {
				line += ", required"
			}
			line += ")"
			fmt.Println(line)
			if len(p.AllowedValues) > 0 {
				fmt.Printf("    allowed: %v\n", p.AllowedValues)
			}
		}
		fmt.Printf("\nFinish with:\n  adoflow finish %s --values '{...}'\n", result.CorrelationID)
	},
}

func init() {
	rootCmd.AddCommand(advanceCmd)

	advanceCmd.Flags().String("values", "", "JSON object of field values to finish in one step")
}
