package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/runtime"
	"github.com/rvs/workflow-nodes/internal/store"
	"github.com/rvs/workflow-nodes/internal/theme"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded node executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			filter := store.ExecutionFilter{Workflow: &e.workflow.Name}
			if name, _ := cmd.Flags().GetString("node"); name != "" {
				filter.Node = &name
			}
			if cmd.Flags().Changed("failed") {
				status := model.ExecutionError
				filter.Status = &status
			}
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			execs, err := e.store.GetExecutions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, x := range execs {
				fmt.Fprintf(out, "%s  %-8s %-20s %3d → %-3d %s %s\n",
					x.StartedAt.Local().Format(time.DateTime),
					theme.StatusStyle(string(x.Status)).Render(string(x.Status)),
					x.Node, x.InputCount, x.OutputCount,
					theme.HelpStyle.Render(x.FinishedAt.Sub(x.StartedAt).Round(time.Millisecond).String()),
					x.Error,
				)
			}
			return nil
		},
	}
	cmd.Flags().StringP("node", "n", "", "only show executions of this node")
	cmd.Flags().Bool("failed", false, "only show failed executions")
	cmd.Flags().Int("limit", 20, "maximum number of executions to show")
	return cmd
}

func newNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the available node types and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := runtime.DefaultRegistry()
			out := cmd.OutOrStdout()
			for _, t := range reg.Types() {
				n, err := reg.New(t)
				if err != nil {
					return err
				}
				d := n.Description()
				fmt.Fprintf(out, "%s %s\n", theme.HeaderStyle.Render(d.Name), d.Description)
				for _, p := range d.Properties {
					fmt.Fprintf(out, "  %s %s\n", theme.LabelStyle.Render(p.Name), p.DisplayName)
				}
			}
			return nil
		},
	}
}
