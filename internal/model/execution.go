package model

import "time"

// ExecutionStatus describes how a node run ended.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

// Execution is the recorded history of a single node run.
type Execution struct {
	// ID is the unique identifier (UUID) of this run.
	ID string `db:"id" json:"id"`

	// Workflow is the name of the workflow the node belongs to.
	Workflow string `db:"workflow" json:"workflow"`

	// Node is the configured node name.
	Node string `db:"node" json:"node"`

	// NodeType is the registered node type (e.g., "emailReadImap").
	NodeType string `db:"node_type" json:"node_type"`

	Status ExecutionStatus `db:"status" json:"status"`

	// InputCount and OutputCount are the number of items consumed/produced.
	InputCount  int `db:"input_count" json:"input_count"`
	OutputCount int `db:"output_count" json:"output_count"`

	// Error holds the failure message when Status is ExecutionError.
	Error string `db:"error" json:"error,omitempty"`

	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}
