package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/limaronaldo/orc-task/internal/task"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Create and run jobs grouping several issues",
	}
	cmd.AddCommand(newJobCreateCmd(), newJobRunCmd())
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var repo, issuesCSV string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job with one task per issue number",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := buildApp(ctx, slog.Default())
			if err != nil {
				return err
			}
			defer a.store.Close()

			if repo == "" || issuesCSV == "" {
				return fmt.Errorf("--repo and --issues are required")
			}
			issues, err := parseIssueList(issuesCSV)
			if err != nil {
				return err
			}

			taskIDs := make([]string, 0, len(issues))
			for _, issue := range issues {
				t := task.New(repo, issue, "", "")
				if err := a.store.CreateTask(ctx, t); err != nil {
					return err
				}
				if err := a.store.AppendEvent(ctx, task.NewEvent(t.ID, task.EventCreated)); err != nil {
					return err
				}
				taskIDs = append(taskIDs, t.ID)
			}

			j := task.NewJob(repo, taskIDs)
			if err := a.store.CreateJob(ctx, j); err != nil {
				return err
			}
			return printJSON(j)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo")
	cmd.Flags().StringVar(&issuesCSV, "issues", "", "comma-separated issue numbers")
	return cmd
}

func newJobRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [id]",
		Short: "Run every task in a job through the Job Runner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := buildApp(ctx, slog.Default())
			if err != nil {
				return err
			}
			defer a.store.Close()

			j, err := a.store.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			j, err = a.runner.Run(ctx, j)
			if err != nil {
				return err
			}
			return printJSON(j)
		},
	}
}

func parseIssueList(csv string) ([]int, error) {
	parts := strings.Split(csv, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid issue number %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
