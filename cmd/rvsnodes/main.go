package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rvsnodes",
		Short:         "Run RVS workflow nodes (IMAP reader, JWT, MySQL) from a workflow file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("workflow", "w", "workflow.yaml", "path to the workflow file")
	rootCmd.PersistentFlags().String("log-level", "", "override the workflow log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCmd(),
		newTestCredentialCmd(),
		newCredentialCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newNodesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
