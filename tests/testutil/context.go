package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
)

// ExecContext is an in-memory node.ExecuteContext for node tests.
type ExecContext struct {
	Items []model.Item

	// Parameters apply to every item unless ItemParams overrides them.
	Parameters node.Params
	ItemParams map[int]node.Params

	// Creds maps a credential type to the set returned for every item.
	Creds map[string]node.Credentials

	FailSoft bool
	Static   map[string]any
	Log      *slog.Logger

	mu              sync.Mutex
	credentialCalls int
}

// NewExecContext returns a context with the given items and parameters.
func NewExecContext(items []model.Item, params node.Params) *ExecContext {
	return &ExecContext{
		Items:      items,
		Parameters: params,
		Creds:      map[string]node.Credentials{},
		Static:     map[string]any{},
	}
}

// Items builds n empty input items.
func Items(n int) []model.Item {
	items := make([]model.Item, n)
	for i := range items {
		items[i] = model.NewItem(nil, -1)
	}
	return items
}

func (c *ExecContext) InputData() []model.Item { return c.Items }

func (c *ExecContext) Params(index int) node.Params {
	if p, ok := c.ItemParams[index]; ok {
		return p
	}
	if c.Parameters == nil {
		return node.Params{}
	}
	return c.Parameters
}

func (c *ExecContext) Credentials(_ context.Context, credentialType string, _ int) (node.Credentials, error) {
	c.mu.Lock()
	c.credentialCalls++
	c.mu.Unlock()

	creds, ok := c.Creds[credentialType]
	if !ok {
		return nil, fmt.Errorf("no credentials of type %q", credentialType)
	}
	return creds, nil
}

// CredentialCalls returns how many times credentials were resolved.
func (c *ExecContext) CredentialCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credentialCalls
}

func (c *ExecContext) PrepareBinaryData(data []byte, fileName, mimeType string) model.BinaryData {
	return node.PrepareBinaryData(data, fileName, mimeType)
}

func (c *ExecContext) ContinueOnFail() bool { return c.FailSoft }

func (c *ExecContext) StaticData() map[string]any {
	if c.Static == nil {
		c.Static = map[string]any{}
	}
	return c.Static
}

func (c *ExecContext) Logger() *slog.Logger {
	if c.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Log
}
