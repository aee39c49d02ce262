package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/rvs/workflow-nodes/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" gets its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetStaticData returns the static data of a node.
func (s *SQLiteStore) GetStaticData(ctx context.Context, workflow, node string) (map[string]any, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw,
		"SELECT data FROM static_data WHERE workflow = ? AND node = ?", workflow, node)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting static data for %s/%s: %w", workflow, node, err)
	}

	data := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding static data for %s/%s: %w", workflow, node, err)
	}
	return data, nil
}

// SaveStaticData replaces the static data of a node.
func (s *SQLiteStore) SaveStaticData(ctx context.Context, workflow, node string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding static data for %s/%s: %w", workflow, node, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO static_data (workflow, node, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (workflow, node) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		workflow, node, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving static data for %s/%s: %w", workflow, node, err)
	}
	return nil
}

// RecordExecution inserts an execution record. Generates a UUID if ID is
// empty.
func (s *SQLiteStore) RecordExecution(ctx context.Context, exec model.Execution) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}
	if exec.Status == "" {
		return fmt.Errorf("execution %s has no status", exec.ID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (
			id, workflow, node, node_type, status,
			input_count, output_count, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.Workflow, exec.Node, exec.NodeType, string(exec.Status),
		exec.InputCount, exec.OutputCount, exec.Error,
		exec.StartedAt.UTC(), exec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording execution %s: %w", exec.ID, err)
	}
	return nil
}

// GetExecutions retrieves execution records matching the filter, newest
// first.
func (s *SQLiteStore) GetExecutions(ctx context.Context, opts ExecutionFilter) ([]model.Execution, error) {
	var conditions []string
	var args []interface{}

	if opts.Workflow != nil {
		conditions = append(conditions, "workflow = ?")
		args = append(args, *opts.Workflow)
	}
	if opts.Node != nil {
		conditions = append(conditions, "node = ?")
		args = append(args, *opts.Node)
	}
	if opts.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*opts.Status))
	}

	query := "SELECT * FROM executions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	var execs []model.Execution
	if err := s.db.SelectContext(ctx, &execs, query, args...); err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	return execs, nil
}
