package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/store"
	"github.com/rvs/workflow-nodes/tests/testutil"
)

func TestStaticData(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	data, err := s.GetStaticData(ctx, "wf", "mail")
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, s.SaveStaticData(ctx, "wf", "mail", map[string]any{"lastUid": 41}))
	require.NoError(t, s.SaveStaticData(ctx, "wf", "mail", map[string]any{"lastUid": 42}))
	require.NoError(t, s.SaveStaticData(ctx, "wf", "jwt", nil))

	data, err = s.GetStaticData(ctx, "wf", "mail")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lastUid": float64(42)}, data)

	data, err = s.GetStaticData(ctx, "wf", "jwt")
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = s.GetStaticData(ctx, "other", "mail")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestExecutions(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	record := func(node string, status model.ExecutionStatus, offset int) {
		t.Helper()
		start := base.Add(time.Duration(offset) * time.Minute)
		require.NoError(t, s.RecordExecution(ctx, model.Execution{
			Workflow: "wf", Node: node, NodeType: "emailReadImap", Status: status,
			InputCount: 1, OutputCount: offset,
			StartedAt: start, FinishedAt: start.Add(time.Second),
		}))
	}
	record("mail", model.ExecutionSuccess, 1)
	record("mail", model.ExecutionError, 2)
	record("db", model.ExecutionSuccess, 3)

	all, err := s.GetExecutions(ctx, store.ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "db", all[0].Node, "newest first")
	assert.NotEmpty(t, all[0].ID)
	assert.True(t, all[0].StartedAt.Equal(base.Add(3*time.Minute)))

	node := "mail"
	mail, err := s.GetExecutions(ctx, store.ExecutionFilter{Node: &node})
	require.NoError(t, err)
	assert.Len(t, mail, 2)

	failed := model.ExecutionError
	errs, err := s.GetExecutions(ctx, store.ExecutionFilter{Status: &failed})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].OutputCount)

	page, err := s.GetExecutions(ctx, store.ExecutionFilter{Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = s.GetExecutions(ctx, store.ExecutionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, model.ExecutionError, page[0].Status)
}

func TestRecordExecutionRequiresStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	err := s.RecordExecution(context.Background(), model.Execution{Node: "x"})
	assert.Error(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveStaticData(context.Background(), "wf", "n", map[string]any{"k": "v"}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	data, err := s.GetStaticData(context.Background(), "wf", "n")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, data)
}
