package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var planJSON bool

var planCmd = &cobra.Command{
	Use:   "plan <matter-file>",
	Short: "Build a workflow plan for a matter",
	Long: `Build an execution plan for a legal matter without running it.

The matter file is YAML or JSON with at least a summary and a list of
parties. Documents, objectives, and metadata refine which agents are
scheduled. The resulting plan lists the steps in execution order and
can be run later with 'themis run --plan-id'.

Examples:
  themis plan matter.yaml
  themis plan matter.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanCmd,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the full plan as JSON")
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	matter, err := loadMatter(args[0])
	if err != nil {
		return err
	}

	cfg := loadConfigOrExit()
	service, err := buildService(cfg)
	if err != nil {
		return err
	}

	plan, err := service.Plan(context.Background(), matter)
	if err != nil {
		return err
	}

	if planJSON {
		encoded, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("Plan %s\n\n", color.New(color.Bold).Sprint(plan.PlanID))
	for i, step := range plan.Steps {
		line := fmt.Sprintf("%d. %s (%s phase)", i+1, step.Agent, step.Phase)
		for _, support := range step.SupportingAgents {
			line += fmt.Sprintf(" + %s (%s)", support.Agent, support.Role)
		}
		fmt.Println(line)
	}
	if len(plan.Connectors) > 0 {
		fmt.Printf("\nConnectors: ")
		for i, conn := range plan.Connectors {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Print(conn.Name)
		}
		fmt.Println()
	}
	fmt.Fprintf(os.Stdout, "\nRun it with:\n  themis run --plan-id %s\n", plan.PlanID)
	return nil
}
