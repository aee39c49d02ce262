package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/theme"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a node once and print its output items as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			nodeName, _ := cmd.Flags().GetString("node")
			inputPath, _ := cmd.Flags().GetString("input")

			items, err := readItems(inputPath)
			if err != nil {
				return err
			}

			res, err := e.runner.Run(cmd.Context(), nodeName, items)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), theme.HelpStyle.Render("execution "+res.ExecutionID))
			return writeJSON(cmd.OutOrStdout(), res.Output)
		},
	}
	cmd.Flags().StringP("node", "n", "", "name of the node to run")
	cmd.Flags().StringP("input", "i", "", "JSON file with an array of input objects (- for stdin)")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

// readItems loads input items from a JSON array of objects. An empty path
// yields nil, which runs the node with one empty item.
func readItems(path string) ([]model.Item, error) {
	if path == "" {
		return nil, nil
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var objects []map[string]any
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return nil, fmt.Errorf("decoding input %s: %w", path, err)
	}

	items := make([]model.Item, len(objects))
	for i, obj := range objects {
		items[i] = model.NewItem(obj, -1)
	}
	return items, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
