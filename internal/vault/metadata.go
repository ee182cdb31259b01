package vault

import (
	"encoding/json"
	"regexp"
	"sort"
)

// dateRE matches ISO-8601 date and date-time strings, per spec.md §3's
// "date includes strings matching ISO-8601 date/date-time" rule.
var dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?)?$`)

// inferType returns one of {string, number, boolean, date, object, array,
// null} for a single value, per spec.md §4.3 step 2.
func inferType(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case string:
		if dateRE.MatchString(val) {
			return "date"
		}
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "string"
	}
}

// isNull reports whether v represents JSON null or absence.
func isNull(v any) bool {
	return v == nil
}

// numericValue extracts a float64 if v is numeric, per the JSON decode
// convention of representing all JSON numbers as float64.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ExtractMetadata builds a MetadataEnvelope from a row array, following
// spec.md §4.3. An empty row array yields an envelope with empty
// schema/stats and a distinct note.
func ExtractMetadata(rows []Row) (schema []ColumnSchema, stats map[string]ColumnStats, sampleRows []Row, emptyNote string) {
	if len(rows) == 0 {
		return []ColumnSchema{}, map[string]ColumnStats{}, []Row{}, "no data was returned by the source tool"
	}

	// Columns follow the first row's own key order (spec.md §4.3 step
	// 1), which Row preserves through UnmarshalJSON; it is not re-derived
	// or re-sorted here.
	columns := rows[0].Keys()

	schema = make([]ColumnSchema, 0, len(columns))
	stats = make(map[string]ColumnStats, len(columns))

	for _, col := range columns {
		var firstNonNil any
		nullable := false
		nullCount := 0
		seen := map[string]int{}
		order := []string{}
		var numerics []float64

		for _, row := range rows {
			v, present := row.Get(col)
			if !present || isNull(v) {
				nullable = true
				nullCount++
				continue
			}
			if firstNonNil == nil {
				firstNonNil = v
			}
			key, _ := json.Marshal(v)
			k := string(key)
			if _, ok := seen[k]; !ok {
				order = append(order, k)
			}
			seen[k]++
			if n, ok := numericValue(v); ok {
				numerics = append(numerics, n)
			}
		}

		colType := "null"
		if firstNonNil != nil {
			colType = inferType(firstNonNil)
		}

		schema = append(schema, ColumnSchema{Column: col, Type: colType, Nullable: nullable})

		cs := ColumnStats{Unique: len(seen), NullCount: nullCount}
		if len(seen) <= 20 {
			cs.TopValues = topValues(order, seen)
		}
		if len(numerics) > 0 {
			min, max, sum := numerics[0], numerics[0], 0.0
			for _, n := range numerics {
				if n < min {
					min = n
				}
				if n > max {
					max = n
				}
				sum += n
			}
			avg := sum / float64(len(numerics))
			cs.Min, cs.Max, cs.Sum, cs.Avg = &min, &max, &sum, &avg
		}
		stats[col] = cs
	}

	n := len(rows)
	if n > 5 {
		n = 5
	}
	sampleRows = append(sampleRows, rows[:n]...)

	return schema, stats, sampleRows, ""
}

// topValues returns up to 5 most frequent values, descending by count,
// ties broken by first-occurrence order (captured in insertionOrder).
func topValues(insertionOrder []string, counts map[string]int) []ValueCount {
	vals := make([]ValueCount, 0, len(insertionOrder))
	for _, k := range insertionOrder {
		vals = append(vals, ValueCount{Value: k, Count: counts[k]})
	}
	sort.SliceStable(vals, func(i, j int) bool {
		return vals[i].Count > vals[j].Count
	})
	if len(vals) > 5 {
		vals = vals[:5]
	}
	return vals
}
