package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS static_data (
	workflow   TEXT NOT NULL,
	node       TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workflow, node)
);

CREATE TABLE IF NOT EXISTS executions (
	id           TEXT PRIMARY KEY,
	workflow     TEXT NOT NULL,
	node         TEXT NOT NULL,
	node_type    TEXT NOT NULL,
	status       TEXT NOT NULL,
	input_count  INTEGER NOT NULL DEFAULT 0,
	output_count INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_node ON executions(workflow, node);
CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
