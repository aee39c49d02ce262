package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
	"github.com/rvs/workflow-nodes/internal/store"
)

// Result is the outcome of one node run.
type Result struct {
	ExecutionID string
	Output      [][]model.Item
}

// Runner executes the nodes of one workflow, keeping their static data and
// recording every run in the store.
type Runner struct {
	workflow    *model.WorkflowConfig
	registry    *Registry
	store       store.Store
	credentials CredentialSource
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner returns a Runner. credentials may be nil, in which case only
// the workflow's inline credential sets are used.
func NewRunner(
	workflow *model.WorkflowConfig,
	registry *Registry,
	st store.Store,
	credentials CredentialSource,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		workflow:    workflow,
		registry:    registry,
		store:       st,
		credentials: credentials,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes the named node over items. A nil items slice runs the node
// once with a single empty item.
func (r *Runner) Run(ctx context.Context, nodeName string, items []model.Item) (*Result, error) {
	cfg, err := r.workflow.Node(nodeName)
	if err != nil {
		return nil, err
	}
	n, err := r.registry.New(cfg.Type)
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []model.Item{model.NewItem(nil, -1)}
	}

	staticData, err := r.store.GetStaticData(ctx, r.workflow.Name, cfg.Name)
	if err != nil {
		return nil, err
	}

	execID := uuid.New().String()
	logger := r.logger.With("execution", execID, "node", cfg.Name)

	ec := &execContext{
		items:  items,
		params: node.Params(cfg.Parameters),
		credentials: credentialResolver{
			source: r.credentials,
			inline: r.workflow.Credentials,
			refs:   cfg.Credentials,
		},
		continueOnFail: cfg.ContinueOnFail,
		staticData:     staticData,
		logger:         logger,
	}

	exec := model.Execution{
		ID:         execID,
		Workflow:   r.workflow.Name,
		Node:       cfg.Name,
		NodeType:   cfg.Type,
		InputCount: len(items),
		StartedAt:  r.now(),
	}

	logger.Info("running node", "type", cfg.Type, "items", len(items))
	output, runErr := n.Execute(ctx, ec)
	exec.FinishedAt = r.now()

	if runErr != nil {
		exec.Status = model.ExecutionError
		exec.Error = runErr.Error()
		logger.Error("node failed", "err", runErr)
	} else {
		exec.Status = model.ExecutionSuccess
		for _, out := range output {
			exec.OutputCount += len(out)
		}
		logger.Info("node finished", "outputs", exec.OutputCount,
			"duration", exec.FinishedAt.Sub(exec.StartedAt))
	}

	// Recording outlives cancellation of the run.
	bookCtx := context.WithoutCancel(ctx)
	var bookErr error
	if err := r.store.RecordExecution(bookCtx, exec); err != nil {
		bookErr = errors.Join(bookErr, err)
	}
	if runErr == nil {
		if err := r.store.SaveStaticData(bookCtx, r.workflow.Name, cfg.Name, ec.staticData); err != nil {
			bookErr = errors.Join(bookErr, err)
		}
	}
	if bookErr != nil {
		logger.Warn("recording execution", "err", bookErr)
	}

	if runErr != nil {
		return nil, fmt.Errorf("running node %q: %w", cfg.Name, runErr)
	}
	return &Result{ExecutionID: execID, Output: output}, nil
}

// TestCredential runs the credential test of the named node against its
// first declared credential type.
func (r *Runner) TestCredential(ctx context.Context, nodeName string) (node.CredentialTestResult, error) {
	cfg, err := r.workflow.Node(nodeName)
	if err != nil {
		return node.CredentialTestResult{}, err
	}
	n, err := r.registry.New(cfg.Type)
	if err != nil {
		return node.CredentialTestResult{}, err
	}

	tester, ok := n.(node.CredentialTester)
	if !ok {
		return node.CredentialTestResult{}, fmt.Errorf("node type %q has no credential test", cfg.Type)
	}
	refs := n.Description().Credentials
	if len(refs) == 0 {
		return node.CredentialTestResult{}, fmt.Errorf("node type %q declares no credentials", cfg.Type)
	}

	resolver := credentialResolver{source: r.credentials, inline: r.workflow.Credentials, refs: cfg.Credentials}
	creds, err := resolver.resolve(refs[0].Name)
	if err != nil {
		return node.CredentialTestResult{}, err
	}

	return tester.TestCredential(ctx, creds), nil
}
