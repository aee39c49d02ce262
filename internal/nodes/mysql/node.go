package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
)

// Type is the registered node type name.
const Type = "rvsMySql"

// CredentialType is the credential type the node resolves.
const CredentialType = "mySql"

// Operation names one of the node's statement kinds.
type Operation string

const (
	OperationExecuteQuery      Operation = "executeQuery"
	OperationInsert            Operation = "insert"
	OperationUpdate            Operation = "update"
	OperationPreparedStatement Operation = "preparedStatement"
)

// Node runs statements against a MySQL database.
type Node struct {
	open Opener
}

// New returns a MySQL node that connects with OpenMySQL.
func New() *Node {
	return &Node{open: OpenMySQL}
}

// NewWithOpener returns a MySQL node using a custom opener.
func NewWithOpener(open Opener) *Node {
	return &Node{open: open}
}

// Execute opens one connection for the whole run, executes the selected
// operation over all input items and closes the connection.
func (n *Node) Execute(ctx context.Context, ec node.ExecuteContext) ([][]model.Item, error) {
	logger := ec.Logger().With("node", Type)
	p := ec.Params(0)
	options := p.Collection("options")

	raw, err := ec.Credentials(ctx, CredentialType, 0)
	if err != nil {
		return nil, &node.ConfigurationError{
			ItemIndex: node.NoItem, Message: "resolving mysql credentials", Err: err,
		}
	}
	creds, err := decodeCredentials(raw)
	if err != nil {
		return nil, err
	}

	db, err := n.open(ctx, creds)
	if err != nil {
		return nil, &node.ConnectionError{
			ItemIndex: node.NoItem, User: creds.User, Host: creds.Host, Err: err,
		}
	}
	defer db.Close()

	r := &runner{db: db, bigNumbers: options.Bool("supportBigNumbers", false)}
	inputs := ec.InputData()

	op := Operation(p.String("operation", string(OperationInsert)))
	logger.Debug("executing", "operation", op, "items", len(inputs))

	var items []model.Item
	switch op {
	case OperationExecuteQuery:
		items, err = r.executeQuery(ctx, ec, inputs)
	case OperationInsert:
		items, err = r.insert(ctx, p, inputs)
	case OperationUpdate:
		items, err = r.update(ctx, p, inputs)
	case OperationPreparedStatement:
		items, err = r.preparedStatement(ctx, ec, p, inputs)
	default:
		err = &node.ConfigurationError{
			ItemIndex: node.NoItem,
			Message:   fmt.Sprintf("The operation %q is not supported!", op),
		}
	}

	if err != nil {
		if ec.ContinueOnFail() {
			logger.Warn("operation failed", "operation", op, "err", err)
			return [][]model.Item{{model.NewItem(map[string]any{"error": err.Error()}, -1)}}, nil
		}
		return nil, err
	}
	return [][]model.Item{items}, nil
}

func decodeCredentials(raw node.Credentials) (Credentials, error) {
	var creds Credentials
	if err := raw.Decode(&creds); err != nil {
		return Credentials{}, &node.ConfigurationError{
			ItemIndex: node.NoItem, Message: "Credentials are not valid for mysql node", Err: err,
		}
	}
	if creds.Host == "" {
		return Credentials{}, &node.ConfigurationError{
			ItemIndex: node.NoItem, Message: "Credentials are not valid for mysql node",
			Err: fmt.Errorf("host is required"),
		}
	}
	return creds, nil
}

// tableName reads the table parameter, which is either a plain name or a
// {mode, value} locator.
func tableName(p node.Params) (string, error) {
	var table string
	if loc := p.Collection("table"); len(loc) > 0 {
		table = loc.String("value", "")
	} else {
		table = p.String("table", "")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return "", &node.ConfigurationError{ItemIndex: 0, Message: "table is required"}
	}
	return table, nil
}

func records(rows []map[string]any, index int) []model.Item {
	out := make([]model.Item, len(rows))
	for i, row := range rows {
		out[i] = model.NewItem(row, index)
	}
	return out
}

func (r *runner) executeQuery(ctx context.Context, ec node.ExecuteContext, inputs []model.Item) ([]model.Item, error) {
	var out []model.Item
	for i := range inputs {
		query := ec.Params(i).String("query", "")
		if strings.TrimSpace(query) == "" {
			return nil, &node.ConfigurationError{ItemIndex: i, Message: "query is required"}
		}
		rows, err := r.run(ctx, query)
		if err != nil {
			return nil, &node.OperationError{ItemIndex: i, Message: "executing query", Err: err}
		}
		out = append(out, records(rows, i)...)
	}
	return out, nil
}

func (r *runner) insert(ctx context.Context, p node.Params, inputs []model.Item) ([]model.Item, error) {
	table, err := tableName(p)
	if err != nil {
		return nil, err
	}
	columns := splitColumns(p.String("columns", ""))
	if len(columns) == 0 {
		return nil, &node.ConfigurationError{ItemIndex: 0, Message: "columns are required"}
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	options := p.Collection("options")
	priority := options.String("priority", "")
	switch priority {
	case "", PriorityLow, PriorityHigh:
	default:
		return nil, &node.ConfigurationError{
			ItemIndex: 0, Message: "unsupported insert priority", Value: priority,
		}
	}

	args := make([]any, 0, len(inputs)*len(columns))
	for _, item := range inputs {
		args = append(args, columnValues(item, columns)...)
	}

	query := insertSQL(table, columns, len(inputs), priority, options.Bool("ignore", false))
	rows, err := r.run(ctx, query, args...)
	if err != nil {
		return nil, &node.OperationError{ItemIndex: node.NoItem, Message: "inserting rows", Err: err}
	}
	return records(rows, -1), nil
}

func (r *runner) update(ctx context.Context, p node.Params, inputs []model.Item) ([]model.Item, error) {
	table, err := tableName(p)
	if err != nil {
		return nil, err
	}
	key := p.String("updateKey", "id")
	columns := splitColumns(p.String("columns", ""))
	if !containsColumn(columns, key) {
		columns = append([]string{key}, columns...)
	}

	query := updateSQL(table, key, columns)
	out := make([]model.Item, 0, len(inputs))
	for i, item := range inputs {
		args := append(columnValues(item, columns), item.JSON[key])
		rows, err := r.run(ctx, query, args...)
		if err != nil {
			return nil, &node.OperationError{ItemIndex: i, Message: "updating row", Err: err}
		}
		out = append(out, records(rows, i)...)
	}
	return out, nil
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func (r *runner) preparedStatement(
	ctx context.Context, ec node.ExecuteContext, p node.Params, inputs []model.Item,
) ([]model.Item, error) {
	var indices []int
	for i, item := range inputs {
		if len(item.JSON) > 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return r.executeQuery(ctx, ec, inputs)
	}

	query := p.String("query", "")
	columns := splitColumns(p.String("columns", ""))

	if p.Collection("options").Bool("bulk", false) {
		values := make([]any, 0, len(indices)*len(columns))
		for _, i := range indices {
			for _, c := range columns {
				if literal, ok := strings.CutPrefix(c, "$"); ok {
					values = append(values, literal)
					continue
				}
				values = append(values, inputs[i].JSON[c])
			}
		}

		expanded, args, err := r.expandBulk(query, values)
		if err != nil {
			return nil, &node.ConfigurationError{ItemIndex: 0, Message: "invalid bulk statement", Err: err}
		}
		rows, err := r.run(ctx, expanded, args...)
		if err != nil {
			return nil, &node.OperationError{ItemIndex: node.NoItem, Message: "executing bulk statement", Err: err}
		}
		return records(rows, -1), nil
	}

	var out []model.Item
	for _, i := range indices {
		rows, err := r.run(ctx, query, columnValues(inputs[i], columns)...)
		if err != nil {
			return nil, &node.OperationError{ItemIndex: i, Message: "executing prepared statement", Err: err}
		}
		out = append(out, records(rows, i)...)
	}
	return out, nil
}

// TestCredential opens a connection and closes it again.
func (n *Node) TestCredential(ctx context.Context, raw node.Credentials) node.CredentialTestResult {
	creds, err := decodeCredentials(raw)
	if err != nil {
		return node.CredentialFailed(err)
	}
	db, err := n.open(ctx, creds)
	if err != nil {
		return node.CredentialFailed(err)
	}
	if err := db.Close(); err != nil {
		return node.CredentialFailed(err)
	}
	return node.CredentialPassed()
}
