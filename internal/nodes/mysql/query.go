package mysql

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rvs/workflow-nodes/internal/model"
)

// Insert priorities accepted by the insert operation.
const (
	PriorityLow  = "LOW_PRIORITY"
	PriorityHigh = "HIGH_PRIORITY"
)

// maxSafeInteger is the largest integer a JSON consumer using IEEE doubles
// can represent exactly.
const maxSafeInteger = 1<<53 - 1

// splitColumns splits a comma separated column list, trimming each name.
func splitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	cols := strings.Split(s, ",")
	for i, c := range cols {
		cols[i] = strings.TrimSpace(c)
	}
	return cols
}

// insertSQL builds a multi-row insert with one placeholder group per row.
func insertSQL(table string, columns []string, rows int, priority string, ignore bool) string {
	var b strings.Builder
	b.WriteString("INSERT ")
	if priority != "" {
		b.WriteString(priority)
		b.WriteString(" ")
	}
	if ignore {
		b.WriteString("IGNORE ")
	}
	fmt.Fprintf(&b, "INTO %s(%s) VALUES ", table, strings.Join(columns, ","))

	group := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	for i := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(group)
	}
	return b.String()
}

// updateSQL builds a single-row update keyed on key.
func updateSQL(table, key string, columns []string) string {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = c + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ","), key)
}

// columnValues picks the values of columns from an item, binding NULL for
// missing keys.
func columnValues(item model.Item, columns []string) []any {
	values := make([]any, len(columns))
	for i, c := range columns {
		if v, ok := item.JSON[c]; ok {
			values[i] = v
		}
	}
	return values
}

var rowReturningKeywords = []string{
	"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "VALUES", "TABLE", "PRAGMA",
}

// returnsRows reports whether query yields a result set rather than an
// affected row count.
func returnsRows(query string) bool {
	q := strings.TrimLeft(query, " \t\r\n(")
	head, _, _ := strings.Cut(q, " ")
	head = strings.ToUpper(strings.TrimSpace(head))
	for _, kw := range rowReturningKeywords {
		if head == kw {
			return true
		}
	}
	return false
}

// run executes query and converts its outcome into output records.
func (r *runner) run(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if returnsRows(query) {
		return r.queryRows(ctx, query, args...)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if n, err := res.RowsAffected(); err == nil {
		out["affectedRows"] = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out["insertId"] = id
	}
	return []map[string]any{out}, nil
}

func (r *runner) queryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	kinds := map[string]columnKind{}
	if types, err := rows.ColumnTypes(); err == nil {
		for _, ct := range types {
			kinds[ct.Name()] = kindOf(ct.DatabaseTypeName())
		}
	}

	out := []map[string]any{}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for k, v := range row {
			row[k] = r.jsonValue(v, kinds[k])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// columnKind groups database column types by how their values are rendered.
type columnKind int

const (
	kindOther columnKind = iota
	kindInteger
	kindBigInteger
	kindDecimal
	kindFloat
)

// kindOf classifies a driver type name such as "UNSIGNED BIGINT" or
// "DECIMAL(10,2)".
func kindOf(typeName string) columnKind {
	t := strings.ToUpper(typeName)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t, "UNSIGNED "), " UNSIGNED"))
	switch t {
	case "BIGINT":
		return kindBigInteger
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "YEAR":
		return kindInteger
	case "DECIMAL", "NUMERIC":
		return kindDecimal
	case "FLOAT", "DOUBLE", "REAL":
		return kindFloat
	default:
		return kindOther
	}
}

// jsonValue normalizes a scanned column value for JSON output. With
// supportBigNumbers set, BIGINT and DECIMAL columns are always strings.
// Otherwise DECIMAL stays a string and integers beyond ±2^53 lose
// precision as float64.
func (r *runner) jsonValue(v any, kind columnKind) any {
	if v == nil {
		return nil
	}
	if r.bigNumbers && (kind == kindBigInteger || kind == kindDecimal) {
		if b, ok := v.([]byte); ok {
			return string(b)
		}
		return fmt.Sprint(v)
	}

	switch t := v.(type) {
	case []byte:
		return textValue(string(t), kind, r.bigNumbers)
	case int64:
		return safeInt(t, r.bigNumbers)
	case uint64:
		if t > maxSafeInteger {
			if r.bigNumbers {
				return strconv.FormatUint(t, 10)
			}
			return float64(t)
		}
		return int64(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// textValue decodes a column sent over the text protocol.
func textValue(s string, kind columnKind, bigNumbers bool) any {
	switch kind {
	case kindInteger, kindBigInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return safeInt(n, bigNumbers)
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			if bigNumbers {
				return s
			}
			return float64(n)
		}
	case kindFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func safeInt(n int64, bigNumbers bool) any {
	if n > maxSafeInteger || n < -maxSafeInteger {
		if bigNumbers {
			return strconv.FormatInt(n, 10)
		}
		return float64(n)
	}
	return n
}

// runner executes the node's statements on one database handle.
type runner struct {
	db         *sqlx.DB
	bigNumbers bool
}

// expandBulk rewrites a query whose single placeholder takes the whole
// flat value list.
func (r *runner) expandBulk(query string, values []any) (string, []any, error) {
	expanded, args, err := sqlx.In(query, values)
	if err != nil {
		return "", nil, fmt.Errorf("expanding bulk values: %w", err)
	}
	return r.db.Rebind(expanded), args, nil
}
