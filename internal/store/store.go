package store

import (
	"context"

	"github.com/rvs/workflow-nodes/internal/model"
)

// ExecutionFilter controls filtering and pagination for execution history.
type ExecutionFilter struct {
	Workflow *string
	Node     *string
	Status   *model.ExecutionStatus
	Limit    int
	Offset   int
}

// Store defines the persistence interface for node static data and
// execution history.
type Store interface {
	// === Static data ===

	// GetStaticData returns the static data saved for a node, or an empty
	// map when none has been saved yet.
	GetStaticData(ctx context.Context, workflow, node string) (map[string]any, error)
	SaveStaticData(ctx context.Context, workflow, node string, data map[string]any) error

	// === Execution history ===

	RecordExecution(ctx context.Context, exec model.Execution) error
	GetExecutions(ctx context.Context, opts ExecutionFilter) ([]model.Execution, error)

	Close() error
}
