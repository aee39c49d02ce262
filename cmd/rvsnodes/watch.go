package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvs/workflow-nodes/internal/theme"
	"github.com/rvs/workflow-nodes/internal/trigger"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run nodes on their poll interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			names, _ := cmd.Flags().GetStringSlice("node")
			if len(names) == 0 {
				return fmt.Errorf("at least one --node is required")
			}

			p := trigger.New(e.runner)
			for _, name := range names {
				cfg, err := e.workflow.Node(name)
				if err != nil {
					return err
				}
				p.Register(cfg.Name, time.Duration(cfg.PollIntervalSec)*time.Second)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			out := cmd.OutOrStdout()
			p.Start(ctx)
			defer func() {
				p.Stop()
				printStatuses(out, p.Statuses())
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hup:
					p.RefreshAll()
				case res := <-p.Results():
					if res.Error != nil {
						fmt.Fprintf(out, "%s %s %v\n",
							theme.StatusStyle("error").Render("error"), res.Node, res.Error)
						if trigger.IsConfigurationError(res) {
							return res.Error
						}
						continue
					}
					fmt.Fprintf(out, "%s %s %d item(s) %s\n",
						theme.StatusStyle("success").Render("ok"), res.Node, len(res.Items),
						theme.HelpStyle.Render(res.ExecutionID))
					if err := writeJSON(out, res.Items); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringSliceP("node", "n", nil, "node(s) to watch")
	return cmd
}

func printStatuses(out io.Writer, statuses []trigger.Status) {
	for _, s := range statuses {
		state := s.State.String()
		line := fmt.Sprintf("%s %s %d run(s)", theme.StatusStyle(state).Render(state), s.Node, s.Runs)
		if !s.LastRun.IsZero() {
			line += " " + theme.HelpStyle.Render("last "+s.LastRun.Local().Format(time.DateTime))
		}
		if s.Error != nil {
			line += " " + s.Error.Error()
		}
		fmt.Fprintln(out, line)
	}
}
