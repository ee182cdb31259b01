// Package vault implements the TTL-governed, ownership-and-token
// authenticated key-value store of typed tabular blobs (spec.md §4.2),
// its metadata extraction (spec.md §4.3), and its payload sampler
// (spec.md §4.4).
package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// RowField is one column/value pair within a Row, in source order.
type RowField struct {
	Key   string
	Value any
}

// Row is one record of a stored payload: an ordered sequence of
// column/value pairs. Order matters — spec.md §4.3 step 1 derives a
// payload's schema from the first row's keys "in first-row order" — so
// Row cannot be a plain map[string]any, whose iteration order Go
// deliberately randomizes and whose decoding via encoding/json discards
// the source document's key order entirely.
type Row []RowField

// Get returns the value stored under key and whether it was present.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the row's column names, in the order they first appeared.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// MarshalJSON encodes Row as a JSON object, writing fields in Row's own
// order rather than the key-sorted order encoding/json would otherwise
// apply to a map.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into Row, walking the token
// stream so the object's source key order is captured instead of lost
// to encoding/json's default map[string]any decoding.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("vault: Row must decode from a JSON object")
	}

	fields := make([]RowField, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}
		fields = append(fields, RowField{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}

	*r = fields
	return nil
}

// RowFromMap builds a Row from a map[string]any, for payload fragments
// that have already passed through Go's map-based JSON decoding and so
// carry no recoverable source order; columns are assigned a
// deterministic (sorted) order rather than Go's randomized map
// iteration order.
func RowFromMap(m map[string]any) Row {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make(Row, 0, len(m))
	for _, k := range keys {
		row = append(row, RowField{Key: k, Value: m[k]})
	}
	return row
}

// DataSource carries provenance for a vault entry, per spec.md §3.
type DataSource struct {
	ToolName  string    `json:"toolName"`
	ToolArgs  any       `json:"toolArgs,omitempty"`
	UserQuery string    `json:"userQuery,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Semantics is the result of the AnalysisAgent folded into the envelope.
type Semantics struct {
	Description             string         `json:"description"`
	DataType                string         `json:"dataType"`
	SuggestedVisualizations []string       `json:"suggestedVisualizations,omitempty"`
	VisualizationRationale  string         `json:"visualizationRationale,omitempty"`
	QualityInsights         []string       `json:"qualityInsights,omitempty"`
	Enhancements            map[string]any `json:"enhancements,omitempty"`
}

// ColumnSchema describes one inferred column, per spec.md §3.
type ColumnSchema struct {
	Column   string `json:"column"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ColumnStats carries per-column statistics, per spec.md §4.3.
type ColumnStats struct {
	Unique    int          `json:"unique"`
	TopValues []ValueCount `json:"topValues,omitempty"`
	Min       *float64     `json:"min,omitempty"`
	Max       *float64     `json:"max,omitempty"`
	Sum       *float64     `json:"sum,omitempty"`
	Avg       *float64     `json:"avg,omitempty"`
	NullCount int          `json:"nullCount"`
}

// ValueCount is one entry of a column's topValues, ordered by descending
// frequency (ties broken by first-occurrence order).
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// MetadataEnvelope is the compact object returned to the LLM in place of
// the bulk data, per spec.md §3.
type MetadataEnvelope struct {
	HandleID    string                 `json:"handleId"`
	FetchToken  string                 `json:"fetchToken"`
	SourceTool  string                 `json:"sourceTool"`
	Schema      []ColumnSchema         `json:"schema"`
	RowCount    int                    `json:"rowCount"`
	SampleRows  []Row                  `json:"sampleRows"`
	ColumnStats map[string]ColumnStats `json:"columnStats"`
	DataSource  DataSource             `json:"dataSource"`
	Semantics   *Semantics             `json:"semantics,omitempty"`
	Offloaded   bool                   `json:"_offloaded"`
	Note        string                 `json:"_note"`
}

// Entry is the internal, never-fully-exposed vault record (spec.md §3).
type Entry struct {
	FullData    []Row
	OwnerID     string
	SessionID   string
	CreatedAt   time.Time
	AccessToken string
	Metadata    MetadataEnvelope

	// deadline is the absolute deletion time. A successful retrieval
	// atomically shrinks this to CreatedAt-independent gracePeriod from
	// now (never lengthens it), per spec.md §4.2.
	deadline time.Time
}
