package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rvs/workflow-nodes/internal/credential"
	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/runtime"
	"github.com/rvs/workflow-nodes/internal/store"
)

// env bundles what every workflow command needs.
type env struct {
	workflow *model.WorkflowConfig
	logger   *slog.Logger
	store    *store.SQLiteStore
	runner   *runtime.Runner
}

func (e *env) Close() error {
	return e.store.Close()
}

// loadEnv reads the workflow file, opens the state store and builds a
// runner. The keyring is optional; without it only inline credentials
// resolve.
func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("workflow")
	wf, err := model.LoadWorkflow(path)
	if err != nil {
		return nil, err
	}

	level := wf.LogLevel
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	logger := runtime.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(wf.StorePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	st, err := store.NewSQLiteStore(wf.StorePath)
	if err != nil {
		return nil, err
	}

	var creds runtime.CredentialSource
	if ring, err := credential.Open(); err != nil {
		logger.Warn("keyring unavailable, using inline credentials only", "err", err)
	} else {
		creds = ring
	}

	return &env{
		workflow: wf,
		logger:   logger,
		store:    st,
		runner:   runtime.NewRunner(wf, runtime.DefaultRegistry(), st, creds, logger),
	}, nil
}
