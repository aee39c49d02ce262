package email

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
)

// Type is the registered node type name.
const Type = "emailReadImap"

// CredentialType is the credential type the node resolves.
const CredentialType = "imap"

// Node reads email from an IMAP mailbox.
type Node struct {
	dial Dialer
}

// New returns an email node that connects with DialIMAP.
func New() *Node {
	return &Node{dial: DialIMAP}
}

// NewWithDialer returns an email node using a custom session dialer.
func NewWithDialer(dial Dialer) *Node {
	return &Node{dial: dial}
}

// itemResult is the outcome of one item's pipeline.
type itemResult struct {
	items []model.Item
	err   error
}

// Execute runs one read pipeline per input item concurrently and
// flattens the records in input order.
func (n *Node) Execute(ctx context.Context, ec node.ExecuteContext) ([][]model.Item, error) {
	logger := ec.Logger().With("node", Type)
	logger.Debug("loaded static data", "staticData", ec.StaticData())

	inputs := ec.InputData()
	indices := make([]int, len(inputs))
	for i := range indices {
		indices[i] = i
	}

	r := &reader{dial: n.dial, binary: ec, logger: logger}

	results := iter.Map(indices, func(i *int) itemResult {
		items, err := n.runItem(ctx, ec, r, *i)
		return itemResult{items: items, err: err}
	})

	out := make([][]model.Item, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			if ec.ContinueOnFail() {
				logger.Warn("item failed", "item", i, "err", res.err)
				out = append(out, []model.Item{node.ErrorItem(res.err, i)})
				continue
			}
			return nil, res.err
		}
		out = append(out, res.items)
	}

	return [][]model.Item{model.Flatten(out)}, nil
}

func (n *Node) runItem(
	ctx context.Context, ec node.ExecuteContext, r *reader, index int,
) ([]model.Item, error) {
	// Configuration is validated before any network call.
	opts, err := readOptions(ec.Params(index), index)
	if err != nil {
		return nil, err
	}

	creds, err := resolveCredentials(ctx, ec, index)
	if err != nil {
		return nil, err
	}

	return r.read(ctx, creds, opts, index)
}

func resolveCredentials(ctx context.Context, ec node.ExecuteContext, index int) (Credentials, error) {
	raw, err := ec.Credentials(ctx, CredentialType, index)
	if err != nil {
		return Credentials{}, &node.ConfigurationError{
			ItemIndex: index, Message: "resolving imap credentials", Err: err,
		}
	}
	return decodeCredentials(raw, index)
}

func decodeCredentials(raw node.Credentials, index int) (Credentials, error) {
	var creds Credentials
	if err := raw.Decode(&creds); err != nil {
		return Credentials{}, &node.ConfigurationError{
			ItemIndex: index, Message: "Credentials are not valid for imap node", Err: err,
		}
	}
	if creds.Host == "" || creds.User == "" || creds.Port == 0 {
		return Credentials{}, &node.ConfigurationError{
			ItemIndex: index, Message: "Credentials are not valid for imap node",
			Err: fmt.Errorf("user, host and port are required"),
		}
	}
	return creds, nil
}

// TestCredential connects, lists mailboxes and disconnects.
func (n *Node) TestCredential(ctx context.Context, raw node.Credentials) node.CredentialTestResult {
	creds, err := decodeCredentials(raw, node.NoItem)
	if err != nil {
		return node.CredentialTestResult{
			Status:  node.CredentialError,
			Message: "Credentials are no IMAP credentials.",
		}
	}

	session, err := n.dial(ctx, creds)
	if err != nil {
		return node.CredentialFailed(err)
	}
	defer func() { _ = session.Close() }()

	if _, err := session.ListMailboxes(ctx); err != nil {
		return node.CredentialFailed(err)
	}
	return node.CredentialPassed()
}
