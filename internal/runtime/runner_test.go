package runtime

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvs/workflow-nodes/internal/credential"
	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
	"github.com/rvs/workflow-nodes/internal/store"
	"github.com/rvs/workflow-nodes/tests/testutil"
)

// echoNode copies its input and counts runs in static data.
type echoNode struct {
	fail  error
	creds node.Credentials
	seen  []any
}

func (n *echoNode) Description() node.Description {
	return node.Description{
		Name:        "echo",
		Credentials: []node.CredentialRef{{Name: "echoAuth", Required: true}},
	}
}

func (n *echoNode) Execute(ctx context.Context, ec node.ExecuteContext) ([][]model.Item, error) {
	if n.fail != nil {
		return nil, n.fail
	}
	creds, err := ec.Credentials(ctx, "echoAuth", 0)
	if err != nil {
		return nil, err
	}
	n.creds = creds
	n.seen = append(n.seen, ec.Params(0)["greeting"])

	runs, _ := ec.StaticData()["runs"].(float64)
	ec.StaticData()["runs"] = runs + 1

	out := make([]model.Item, len(ec.InputData()))
	for i, in := range ec.InputData() {
		out[i] = in.Clone()
		out[i].PairedItem = &model.PairedItem{Item: i}
	}
	return [][]model.Item{out}, nil
}

func (n *echoNode) TestCredential(_ context.Context, creds node.Credentials) node.CredentialTestResult {
	if creds["token"] == "good" {
		return node.CredentialPassed()
	}
	return node.CredentialFailed(errors.New("bad token"))
}

type mapSource map[string]map[string]any

func (m mapSource) Get(name string) (map[string]any, error) {
	if data, ok := m[name]; ok {
		return data, nil
	}
	return nil, credential.ErrNotFound
}

func newRunner(t *testing.T, n *echoNode, source CredentialSource) (*Runner, *store.SQLiteStore) {
	t.Helper()
	wf := &model.WorkflowConfig{
		Name: "wf",
		Nodes: []model.NodeConfig{{
			Name:        "greeter",
			Type:        "echo",
			Parameters:  map[string]any{"greeting": "hi"},
			Credentials: map[string]string{"echoauth": "main"},
		}},
		Credentials: map[string]map[string]any{"main": {"token": "inline"}},
	}

	reg := NewRegistry()
	reg.Register("echo", func() node.Node { return n })

	st := testutil.NewTestStore(t)
	return NewRunner(wf, reg, st, source, NewLogger(&bytes.Buffer{}, "debug")), st
}

func TestRunRecordsExecutionAndStaticData(t *testing.T) {
	n := &echoNode{}
	r, st := newRunner(t, n, nil)
	ctx := context.Background()

	items := []model.Item{
		model.NewItem(map[string]any{"a": 1}, -1),
		model.NewItem(map[string]any{"a": 2}, -1),
	}
	res, err := r.Run(ctx, "greeter", items)
	require.NoError(t, err)
	require.Len(t, res.Output, 1)
	assert.Len(t, res.Output[0], 2)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, "inline", n.creds["token"])
	assert.Equal(t, []any{"hi"}, n.seen)

	_, err = r.Run(ctx, "greeter", nil)
	require.NoError(t, err)

	data, err := st.GetStaticData(ctx, "wf", "greeter")
	require.NoError(t, err)
	assert.Equal(t, float64(2), data["runs"])

	execs, err := st.GetExecutions(ctx, store.ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, execs, 2)
	for _, e := range execs {
		assert.Equal(t, model.ExecutionSuccess, e.Status)
		assert.Equal(t, "echo", e.NodeType)
	}
	ids := []string{execs[0].ID, execs[1].ID}
	assert.Contains(t, ids, res.ExecutionID)
}

func TestRunRecordsFailure(t *testing.T) {
	n := &echoNode{fail: errors.New("boom")}
	r, st := newRunner(t, n, nil)
	ctx := context.Background()

	_, err := r.Run(ctx, "greeter", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	failed := model.ExecutionError
	execs, err := st.GetExecutions(ctx, store.ExecutionFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, "boom", execs[0].Error)
	assert.Equal(t, 1, execs[0].InputCount)
}

func TestRunUnknownNode(t *testing.T) {
	r, _ := newRunner(t, &echoNode{}, nil)
	_, err := r.Run(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestCredentialSourceTakesPrecedence(t *testing.T) {
	n := &echoNode{}
	r, _ := newRunner(t, n, mapSource{"main": {"token": "stored"}})

	_, err := r.Run(context.Background(), "greeter", nil)
	require.NoError(t, err)
	assert.Equal(t, "stored", n.creds["token"])
}

func TestRunnerTestCredential(t *testing.T) {
	r, _ := newRunner(t, &echoNode{}, mapSource{"main": {"token": "good"}})
	res, err := r.TestCredential(context.Background(), "greeter")
	require.NoError(t, err)
	assert.Equal(t, node.CredentialOK, res.Status)

	r, _ = newRunner(t, &echoNode{}, nil)
	res, err = r.TestCredential(context.Background(), "greeter")
	require.NoError(t, err)
	assert.Equal(t, node.CredentialError, res.Status)
	assert.Equal(t, "bad token", res.Message)
}

func TestCredentialResolver(t *testing.T) {
	r := credentialResolver{
		inline: map[string]map[string]any{"prod-mail": {"user": "x"}},
		refs:   map[string]string{"imap": "Prod-Mail", "mysql": "missing"},
	}

	creds, err := r.resolve("imap")
	require.NoError(t, err)
	assert.Equal(t, "x", creds["user"])

	_, err = r.resolve("mySql")
	assert.ErrorContains(t, err, `"missing" not found`)

	_, err = r.resolve("jwt")
	assert.ErrorContains(t, err, "no jwt credential configured")
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"emailReadImap", "rvsJwt", "rvsMySql"}, reg.Types())

	n, err := reg.New("emailReadImap")
	require.NoError(t, err)
	assert.Equal(t, "emailReadImap", n.Description().Name)

	_, err = reg.New("nope")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
