// Package pathops implements dot-notation get/set/delete/extract over
// JSON-like trees (map[string]any / []any / scalars), per spec.md §4.1.
// There is no grounded third-party JSON-path library in the corpus (the
// only candidate, tidwall/gjson+sjson, appears solely as an unused
// transitive dependency pulled in by an unrelated tool in one example
// repo's go.mod and is never imported by any source file there) — see
// DESIGN.md for the full justification of this stdlib-only package.
package pathops

import (
	"strconv"
	"strings"

	"github.com/ixoworld/datavault/internal/vaulterr"
)

// splitPath turns "a.b.c" into ["a","b","c"]. Root is denoted by "" or ".".
func splitPath(path string) []string {
	if path == "" || path == "." {
		return nil
	}
	return strings.Split(path, ".")
}

// Get returns the value addressed by path, or (nil, false) if any
// intermediate segment is missing.
func Get(obj any, path string) (any, bool) {
	segments := splitPath(path)
	cur := obj
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at path, creating intermediate maps as needed. Setting
// root is refused.
func Set(obj any, path string, value any) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return vaulterr.NewValidationError("pathops: cannot set root")
	}
	m, ok := obj.(map[string]any)
	if !ok {
		return vaulterr.NewValidationError("pathops: set requires a map root")
	}
	for i, seg := range segments[:len(segments)-1] {
		next, exists := m[seg]
		if !exists {
			nm := map[string]any{}
			m[seg] = nm
			m = nm
			continue
		}
		nm, ok := next.(map[string]any)
		if !ok {
			// Overwrite non-map intermediates with a fresh map, mirroring
			// the permissive "creates intermediates as needed" contract.
			nm = map[string]any{}
			m[seg] = nm
		}
		m = nm
		_ = i
	}
	m[segments[len(segments)-1]] = value
	return nil
}

// Del removes the value at path. No-ops on missing paths; refuses to
// delete root.
func Del(obj any, path string) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return vaulterr.NewValidationError("pathops: cannot delete root")
	}
	cur := obj
	for _, seg := range segments[:len(segments)-1] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		next, exists := m[seg]
		if !exists {
			return nil
		}
		cur = next
	}
	if m, ok := cur.(map[string]any); ok {
		delete(m, segments[len(segments)-1])
	}
	return nil
}

// Clone deep-copies a JSON-like value. Cyclic input is impossible to
// represent in a value built purely from map[string]any/[]any/scalars
// with no back-references, so this walks each branch exactly once; a
// caller constructing a genuinely cyclic any graph (e.g. a map that
// contains itself by reference) is rejected via a depth guard.
func Clone(v any) (any, error) {
	return cloneDepth(v, 0)
}

// maxCloneDepth bounds recursion so a self-referential map (one whose
// value, by reference, contains itself) cannot stack-overflow the
// clone; ordinary JSON from tool responses never approaches this depth.
const maxCloneDepth = 500

func cloneDepth(v any, depth int) (any, error) {
	if depth > maxCloneDepth {
		return nil, vaulterr.NewValidationError("pathops: input exceeds maximum nesting depth (possible cyclic data)")
	}
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			cv, err := cloneDepth(val, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			cv, err := cloneDepth(val, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return v, nil
	}
}

// Extract returns (extracted, residual) per spec.md §4.1:
//   - If extractPaths is empty, residual is the original response and the
//     map is empty.
//   - Otherwise residual is a deep clone with each extract path deleted;
//     but if any extract path is root, residual is rebuilt from
//     preservePaths only.
//   - If preservePaths is non-empty (and no extract path is root),
//     residual is rebuilt as a fresh object containing only those paths.
func Extract(response any, extractPaths, preservePaths []string) (map[string]any, any, error) {
	if len(extractPaths) == 0 {
		return map[string]any{}, response, nil
	}

	extracted := make(map[string]any, len(extractPaths))
	rootExtracted := false
	for _, p := range extractPaths {
		v, ok := Get(response, p)
		if !ok {
			continue
		}
		cv, err := Clone(v)
		if err != nil {
			return nil, nil, err
		}
		extracted[p] = cv
		if isRoot(p) {
			rootExtracted = true
		}
	}

	if rootExtracted {
		residual, err := rebuildFromPaths(response, preservePaths)
		if err != nil {
			return nil, nil, err
		}
		return extracted, residual, nil
	}

	if len(preservePaths) > 0 {
		residual, err := rebuildFromPaths(response, preservePaths)
		if err != nil {
			return nil, nil, err
		}
		return extracted, residual, nil
	}

	clonedResidual, err := Clone(response)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range extractPaths {
		if err := Del(clonedResidual, p); err != nil {
			return nil, nil, err
		}
	}
	return extracted, clonedResidual, nil
}

func isRoot(path string) bool {
	return path == "" || path == "."
}

func rebuildFromPaths(response any, paths []string) (any, error) {
	residual := map[string]any{}
	for _, p := range paths {
		v, ok := Get(response, p)
		if !ok {
			continue
		}
		cv, err := Clone(v)
		if err != nil {
			return nil, err
		}
		if err := Set(residual, p, cv); err != nil {
			return nil, err
		}
	}
	return residual, nil
}
