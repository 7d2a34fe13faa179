package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/limaronaldo/orc-task/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect, and run tasks directly (bypassing webhooks)",
	}
	cmd.AddCommand(newTaskCreateCmd(), newTaskShowCmd(), newTaskRunCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var repo, title, body string
	var issue int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task for an issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := buildApp(ctx, slog.Default())
			if err != nil {
				return err
			}
			defer a.store.Close()

			if repo == "" {
				return fmt.Errorf("--repo is required")
			}
			t := task.New(repo, issue, title, body)
			if err := a.store.CreateTask(ctx, t); err != nil {
				return err
			}
			if err := a.store.AppendEvent(ctx, task.NewEvent(t.ID, task.EventCreated)); err != nil {
				return err
			}
			return printJSON(t)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo")
	cmd.Flags().IntVar(&issue, "issue", 0, "issue number")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&body, "body", "", "task body")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a task by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := buildApp(ctx, slog.Default())
			if err != nil {
				return err
			}
			defer a.store.Close()

			t, err := a.store.GetTask(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(t)
		},
	}
}

func newTaskRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [id]",
		Short: "Drive a task through its Task Driver until it suspends or completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := buildApp(ctx, slog.Default())
			if err != nil {
				return err
			}
			defer a.store.Close()

			t, err := a.store.GetTask(ctx, args[0])
			if err != nil {
				return err
			}
			t, err = a.driver.Run(ctx, t)
			if err != nil {
				return err
			}
			return printJSON(t)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
