package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWorkflow(t *testing.T) {
	path := writeWorkflow(t, `
name: inbox
store_path: /tmp/state.db
nodes:
  - name: mail
    type: emailReadImap
    credentials:
      imap: work-mail
    parameters:
      mailbox: INBOX
      format: simple
  - name: db
    type: rvsMySql
    continue_on_fail: true
    poll_interval_sec: 5
credentials:
  work-mail:
    host: imap.example.com
    port: 993
`)

	cfg, err := LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "inbox", cfg.Name)
	assert.Equal(t, "/tmp/state.db", cfg.StorePath)
	assert.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.Nodes, 2)

	mail, err := cfg.Node("mail")
	require.NoError(t, err)
	assert.Equal(t, "emailReadImap", mail.Type)
	assert.Equal(t, "work-mail", mail.Credentials["imap"])
	assert.Equal(t, "simple", mail.Parameters["format"])
	assert.Equal(t, 60, mail.PollIntervalSec)
	assert.False(t, mail.ContinueOnFail)

	db, err := cfg.Node("db")
	require.NoError(t, err)
	assert.True(t, db.ContinueOnFail)
	assert.Equal(t, 5, db.PollIntervalSec)
	assert.NotNil(t, db.Parameters)

	assert.Equal(t, "imap.example.com", cfg.Credentials["work-mail"]["host"])

	_, err = cfg.Node("missing")
	assert.ErrorContains(t, err, `node "missing" not found`)
}

func TestLoadWorkflowPreservesUserDataKeys(t *testing.T) {
	path := writeWorkflow(t, `
nodes:
  - name: sign
    type: rvsJwt
    parameters:
      operation: generateJwt
      privateKey: s3cret
      payload:
        userId: 5
        tenantName: acme
        nested:
          orderId: 9
credentials:
  shop-db:
    connectTimeout: 500
`)

	cfg, err := LoadWorkflow(path)
	require.NoError(t, err)

	sign, err := cfg.Node("sign")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", sign.Parameters["privateKey"])
	assert.Equal(t, map[string]any{
		"userId":     5,
		"tenantName": "acme",
		"nested":     map[string]any{"orderId": 9},
	}, sign.Parameters["payload"])
	assert.Equal(t, 60, sign.PollIntervalSec)

	assert.Equal(t, 500, cfg.Credentials["shop-db"]["connectTimeout"])
}

func TestLoadWorkflowRejectsDuplicateNodes(t *testing.T) {
	path := writeWorkflow(t, `
nodes:
  - name: a
    type: rvsJwt
  - name: a
    type: rvsJwt
`)
	_, err := LoadWorkflow(path)
	assert.ErrorContains(t, err, `duplicate node name "a"`)
}

func TestLoadWorkflowRejectsUnnamedNode(t *testing.T) {
	path := writeWorkflow(t, `
nodes:
  - type: rvsJwt
`)
	_, err := LoadWorkflow(path)
	assert.ErrorContains(t, err, "has no name")
}

func TestLoadWorkflowMissingFile(t *testing.T) {
	_, err := LoadWorkflow(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading workflow")
}

func TestItemCloneAndFlatten(t *testing.T) {
	orig := NewItem(map[string]any{"a": 1}, 0)
	orig.Binary = map[string]BinaryData{"file": {FileSize: 3}}

	c := orig.Clone()
	c.JSON["b"] = 2
	c.Binary["other"] = BinaryData{}
	assert.NotContains(t, orig.JSON, "b")
	assert.NotContains(t, orig.Binary, "other")
	assert.Equal(t, orig.PairedItem, c.PairedItem)

	assert.Nil(t, NewItem(nil, -1).PairedItem)

	flat := Flatten([][]Item{{orig}, nil, {c, c}})
	assert.Len(t, flat, 3)
}
