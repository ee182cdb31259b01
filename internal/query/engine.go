// Package query implements the QueryEngine (spec.md §4.7): an embedded
// columnar SQL engine that mounts a vault blob as a temporary table, runs
// a user-supplied SQL query with a forced row cap and timeout, and tears
// the table down, enabling token-cheap aggregations over data the LLM
// never sees in full.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ixoworld/datavault/internal/vault"
	"github.com/ixoworld/datavault/internal/vaulterr"
)

// maxResultRows is the forced row cap appended to any query that doesn't
// already specify one (spec.md §4.7 step 5).
const maxResultRows = 10000

// queryTimeout is the hard wall-clock cap on query execution (spec.md §5).
const queryTimeout = 30 * time.Second

// limitPattern detects a case-insensitive LIMIT clause already present in
// the caller's SQL.
var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\b`)

// tableNamePattern sanitizes a handle into a safe SQL identifier suffix.
var tableNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Result is the shape returned by ExecuteQuery, per spec.md §4.7 step 9.
type Result struct {
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"rowCount"`
	Columns         []string         `json:"columns"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	Truncated       bool             `json:"truncated"`
}

// RetrieveResult is the shape returned by RetrieveFullData, per spec.md §4.7.
type RetrieveResult struct {
	Rows            []vault.Row `json:"rows"`
	LimitApplied    bool        `json:"limitApplied"`
	SizeBytes       int         `json:"sizeBytes"`
	EstimatedTokens int         `json:"estimatedTokens"`
}

// Engine holds the single shared in-memory SQLite connection mandated by
// spec.md §5 ("the embedded SQL engine holds exactly one connection per
// host process"), backed by the same modernc.org/sqlite driver the
// teacher uses for its on-disk capsule store.
type Engine struct {
	db    *sql.DB
	store *vault.Store
}

// NewEngine opens the shared in-memory connection and pins the pool to a
// single connection, since in-memory SQLite state is scoped to the
// connection that created it — more than one open connection would each
// see an empty database.
func NewEngine(store *vault.Store) (*Engine, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, vaulterr.NewBackendError(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Engine{db: db, store: store}, nil
}

// Close releases the shared connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

func sanitizeTableName(handleID string) string {
	return "vault_" + tableNamePattern.ReplaceAllString(handleID, "_")
}

// ExecuteQuery implements spec.md §4.7: retrieve -> mount temp table ->
// substitute {table} -> enforce LIMIT -> execute with timeout -> drop
// table (always) -> return rows.
func (e *Engine) ExecuteQuery(ctx context.Context, handleID, sqlText, principal, token string) (*Result, error) {
	rows, ok := e.store.Get(handleID, principal, token)
	if !ok {
		return nil, vaulterr.NewDataNotFound(handleID, "")
	}

	table := sanitizeTableName(handleID)
	columns, sqlTypes := inferColumnTypes(rows)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := e.createTempTable(ctx, table, columns, sqlTypes); err != nil {
		return nil, vaulterr.NewQueryError(handleID, sqlText, err)
	}
	defer e.dropTempTable(table)

	if err := e.insertRows(ctx, table, columns, sqlTypes, rows); err != nil {
		return nil, vaulterr.NewQueryError(handleID, sqlText, err)
	}

	finalSQL := strings.ReplaceAll(sqlText, "{table}", table)
	if !limitPattern.MatchString(finalSQL) {
		finalSQL = fmt.Sprintf("%s LIMIT %d", strings.TrimRight(strings.TrimSpace(finalSQL), ";"), maxResultRows)
	}

	start := time.Now()
	resultRows, err := e.db.QueryContext(ctx, finalSQL)
	if err != nil {
		return nil, vaulterr.NewQueryError(handleID, sqlText, err)
	}
	defer resultRows.Close()

	// Read column names from the driver before scanning rows, which
	// preserves the query's own SELECT-list order; ranging over a scanned
	// row's map[string]any instead would return them in Go's randomized
	// map iteration order.
	resultColumns, err := resultRows.Columns()
	if err != nil {
		return nil, vaulterr.NewQueryError(handleID, sqlText, err)
	}

	out, err := scanRows(resultRows)
	if err != nil {
		return nil, vaulterr.NewQueryError(handleID, sqlText, err)
	}
	elapsed := time.Since(start).Milliseconds()

	return &Result{
		Rows:            out,
		RowCount:        len(out),
		Columns:         resultColumns,
		ExecutionTimeMs: elapsed,
		Truncated:       len(out) >= maxResultRows,
	}, nil
}

// RetrieveFullData bypasses SQL and returns up to limit rows (or all).
func (e *Engine) RetrieveFullData(handleID, principal, token string, limit int) (*RetrieveResult, error) {
	rows, ok := e.store.Get(handleID, principal, token)
	if !ok {
		return nil, vaulterr.NewDataNotFound(handleID, "")
	}

	limitApplied := false
	out := rows
	if limit > 0 && limit < len(rows) {
		out = rows[:limit]
		limitApplied = true
	}

	size := estimateSerializedSize(out)
	return &RetrieveResult{
		Rows:            out,
		LimitApplied:    limitApplied,
		SizeBytes:       size,
		EstimatedTokens: int(math.Ceil(float64(size) / 4.0)),
	}, nil
}
