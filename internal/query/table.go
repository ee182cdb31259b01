package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ixoworld/datavault/internal/vault"
)

// sqlType is one of the column SQL types inferred per spec.md §4.7 step 3.
type sqlType string

const (
	sqlInteger   sqlType = "INTEGER"
	sqlReal      sqlType = "REAL"
	sqlBoolean   sqlType = "BOOLEAN"
	sqlTimestamp sqlType = "TIMESTAMP"
	sqlText      sqlType = "TEXT"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?)?$`)

// inferColumnTypes derives column order from the first row's own keys,
// in first-row order (spec.md §4.3 step 1; Row preserves this order
// through vault.Row.UnmarshalJSON), and a SQL type per column from its
// first non-null value.
func inferColumnTypes(rows []vault.Row) (columns []string, types map[string]sqlType) {
	columns = rows[0].Keys()

	types = make(map[string]sqlType, len(columns))
	for _, col := range columns {
		types[col] = sqlTypeForColumn(rows, col)
	}
	return columns, types
}

func sqlTypeForColumn(rows []vault.Row, col string) sqlType {
	for _, row := range rows {
		v, present := row.Get(col)
		if !present || v == nil {
			continue
		}
		switch val := v.(type) {
		case bool:
			return sqlBoolean
		case float64:
			if val == float64(int64(val)) {
				return sqlInteger
			}
			return sqlReal
		case int, int64:
			return sqlInteger
		case string:
			if isoDatePattern.MatchString(val) {
				return sqlTimestamp
			}
			return sqlText
		default:
			// nested object/array: JSON-serialized string.
			return sqlText
		}
	}
	return sqlText
}

func (e *Engine) createTempTable(ctx context.Context, table string, columns []string, types map[string]sqlType) error {
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, fmt.Sprintf("%q %s", c, types[c]))
	}
	ddl := fmt.Sprintf("CREATE TEMP TABLE %s (%s)", table, strings.Join(cols, ", "))
	_, err := e.db.ExecContext(ctx, ddl)
	return err
}

func (e *Engine) dropTempTable(table string) {
	// Best-effort; always attempted regardless of query success, per
	// spec.md §4.7 step 8's finally-style cleanup guarantee.
	_, _ = e.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
}

func (e *Engine) insertRows(ctx context.Context, table string, columns []string, types map[string]sqlType, rows []vault.Row) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = fmt.Sprintf("%q", c)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(columns))
		for i, col := range columns {
			v, _ := row.Get(col)
			args[i] = sqlValueForColumn(v, types[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// sqlValueForColumn converts a row value to its SQL-bindable form, per
// spec.md §4.7 step 4: NULL/undefined -> NULL; a bool in a BOOLEAN column
// binds as 1/0; a float64 in an INTEGER column binds as int64 (dropping any
// fraction); nested values are JSON-serialized strings; everything else
// passes through.
func sqlValueForColumn(v any, t sqlType) any {
	if v == nil {
		return nil
	}
	switch t {
	case sqlBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return 1
			}
			return 0
		}
	case sqlInteger:
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	}
	switch val := v.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	default:
		return val
	}
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = normalizeScanned(values[i])
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeScanned converts database/sql's driver-returned values
// (notably []byte for TEXT columns) into plain JSON-marshalable types,
// per spec.md §4.7 step 7's "convert to ordinary numbers for
// serialization" rule (modernc.org/sqlite returns int64/float64 directly,
// so only the []byte-to-string conversion is needed here).
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func estimateSerializedSize(rows []vault.Row) int {
	raw, err := json.Marshal(rows)
	if err != nil {
		return 0
	}
	return len(raw)
}
