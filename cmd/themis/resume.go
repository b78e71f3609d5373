package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resumeFromStep string

var resumeCmd = &cobra.Command{
	Use:   "resume <plan-id>",
	Short: "Re-execute a plan from its first failure",
	Long: `Re-execute a previously run plan.

Completed steps from the prior execution are replayed from the stored
record, and execution resumes at the first failed step, so successful
agent work is never repeated. Use --from-step to pick the resume point
explicitly, which also re-runs that step even if it completed.

Examples:
  themis resume 6f1c...
  themis resume 6f1c... --from-step lsa`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeFromStep, "from-step", "", "Step ID to resume from")
	resumeCmd.Flags().BoolVar(&runJSON, "json", false, "Print the execution record as JSON")
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg := loadConfigOrExit()
	service, err := buildService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	record, err := service.ReExecute(ctx, args[0], resumeFromStep, resumeFromStep == "")
	if err != nil {
		return err
	}

	return printRecord(record)
}
