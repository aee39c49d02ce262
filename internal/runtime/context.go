package runtime

import (
	"context"
	"log/slog"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
)

// execContext is the node.ExecuteContext handed to a node for one run.
type execContext struct {
	items          []model.Item
	params         node.Params
	credentials    credentialResolver
	continueOnFail bool
	staticData     map[string]any
	logger         *slog.Logger
}

func (c *execContext) InputData() []model.Item { return c.items }

// Params returns the node parameters. Parameters are static, so every
// item sees the same values.
func (c *execContext) Params(int) node.Params { return c.params }

func (c *execContext) Credentials(_ context.Context, credentialType string, _ int) (node.Credentials, error) {
	return c.credentials.resolve(credentialType)
}

func (c *execContext) PrepareBinaryData(data []byte, fileName, mimeType string) model.BinaryData {
	return node.PrepareBinaryData(data, fileName, mimeType)
}

func (c *execContext) ContinueOnFail() bool { return c.continueOnFail }

func (c *execContext) StaticData() map[string]any { return c.staticData }

func (c *execContext) Logger() *slog.Logger { return c.logger }
