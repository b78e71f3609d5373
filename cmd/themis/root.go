package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "themis",
	Short: "Legal workflow orchestration engine",
	Long: `Themis plans and executes multi-agent legal analysis workflows.

A matter (summary, parties, documents) is routed through specialized
agents that analyze facts, weigh evidence, form strategy, and draft
documents. Agent calls are retried with backoff and guarded by circuit
breakers, and every execution leaves a full artifact trail that can be
inspected or resumed.

Core capabilities:
- Plans a per-matter workflow from the documents and objectives
- Executes agents in dependency order, propagating their outputs
- Streams progress events during execution
- Resumes failed executions without re-running completed steps
- Serves the whole surface over HTTP`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
