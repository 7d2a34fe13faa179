// Package cli implements the orc-task command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// Command group IDs.
const (
	groupCore   = "core"
	groupConfig = "config"
)

var rootCmd = &cobra.Command{
	Use:   "orc-task",
	Short: "Issue-to-PR task orchestrator",
	Long: `orc-task drives GitHub/GitLab issues through a durable plan → code →
review → test → open-PR pipeline, coalescing related changes into shared
pull requests and escalating models on repeated failure.

Quick start:
  orc-task serve                 Start the API server and background workers
  orc-task task create ...       Create a task directly, bypassing webhooks
  orc-task job create ...        Create a job grouping several issues`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Core Commands:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)

	addCmd(newServeCmd(), groupCore)
	addCmd(newTaskCmd(), groupCore)
	addCmd(newJobCmd(), groupCore)
	addCmd(newVersionCmd(), groupConfig)
}

func addCmd(cmd *cobra.Command, groupID string) {
	cmd.GroupID = groupID
	rootCmd.AddCommand(cmd)
}
