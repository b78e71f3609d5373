package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/themis-legal/themis/internal/orchestrator"
	"github.com/themis-legal/themis/pkg/models"
)

var (
	runPlanID string
	runJSON   bool
	runQuiet  bool
)

var runCmd = &cobra.Command{
	Use:   "run [matter-file]",
	Short: "Execute a workflow for a matter",
	Long: `Execute the full agent workflow for a matter.

Pass a matter file to plan and execute in one shot, or --plan-id to
execute a previously created plan. Progress is streamed to the
terminal as each agent starts and finishes.

Examples:
  themis run matter.yaml
  themis run --plan-id 6f1c...
  themis run matter.yaml --json > record.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecute,
}

func init() {
	runCmd.Flags().StringVar(&runPlanID, "plan-id", "", "Execute an existing plan by ID")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the execution record as JSON")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress per-step progress output")
}

func runExecute(cmd *cobra.Command, args []string) error {
	var matter models.Matter
	if len(args) > 0 {
		loaded, err := loadMatter(args[0])
		if err != nil {
			return err
		}
		matter = loaded
	}
	if matter == nil && runPlanID == "" {
		return fmt.Errorf("either a matter file or --plan-id is required")
	}

	cfg := loadConfigOrExit()
	service, err := buildService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink := progressSink()
	if runQuiet {
		sink = nil
	}

	record, err := service.ExecuteStream(ctx, matter, runPlanID, sink)
	if err != nil {
		return err
	}

	return printRecord(record)
}

// progressSink renders execution events as they arrive.
func progressSink() orchestrator.EventSink {
	return func(ev orchestrator.Event) {
		switch ev.Stage {
		case orchestrator.StagePlanCreated:
			fmt.Printf("Plan %s (%d steps)\n", ev.PlanID, ev.TotalSteps)
		case orchestrator.StageAgentStarted:
			fmt.Printf("  [%d/%d] %s (%s) ...\n", ev.Step, ev.TotalSteps, ev.Agent, ev.Phase)
		case orchestrator.StageAgentCompleted:
			printStatus("✓", fmt.Sprintf("%s finished", ev.Agent), color.FgGreen)
		case orchestrator.StageAgentFailed:
			printStatus("✗", fmt.Sprintf("%s failed: %s", ev.Agent, ev.Error), color.FgRed)
		case orchestrator.StageExecutionComplete:
			c := color.New(statusColor(models.Status(ev.Status)))
			fmt.Printf("Execution %s (%d artifacts)\n", c.Sprint(ev.Status), ev.ArtifactsCount)
		}
	}
}

func printRecord(record *models.ExecutionRecord) error {
	if runJSON {
		encoded, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Println()
	c := color.New(statusColor(record.Status))
	fmt.Printf("Plan %s: %s\n", record.PlanID, c.Sprint(record.Status))
	for _, step := range record.Steps {
		sc := color.New(statusColor(step.Status))
		line := fmt.Sprintf("  %s: %s", step.Agent, sc.Sprint(step.Status))
		if step.Error != "" {
			line += " (" + step.Error + ")"
		}
		fmt.Println(line)
	}
	if record.Status == models.StatusAttentionRequired {
		fmt.Println("\nAttention required:")
		for _, step := range record.Steps {
			for _, signal := range step.MissingSignals {
				printStatus("⚠", fmt.Sprintf("%s did not produce %q", step.Agent, signal), color.FgYellow)
			}
		}
	}
	if record.Status == models.StatusFailed {
		fmt.Fprintf(os.Stderr, "\nResume with:\n  themis resume %s\n", record.PlanID)
	}
	return nil
}
