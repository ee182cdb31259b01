// Package vaultlog provides the one logging rule the vault enforces
// everywhere a handle/token/principal would otherwise reach a log line
// (spec.md §5): fetch tokens are never logged, and principal IDs are
// truncated to their last 8 characters.
package vaultlog

import "log"

// redactedPrincipalLen is how many trailing characters of a principal ID
// survive into a log line.
const redactedPrincipalLen = 8

// Principal truncates a principal (owner DID) to its last 8 characters
// for logging, prefixed with "..." so a reader can tell it's partial.
// Short principals are returned unchanged rather than padded.
func Principal(id string) string {
	if len(id) <= redactedPrincipalLen {
		return id
	}
	return "..." + id[len(id)-redactedPrincipalLen:]
}

// Audit logs a vault access event against a handle and principal. token
// is deliberately not a parameter: callers must never have one in hand
// to log here.
func Audit(event, handleID, principal string) {
	log.Printf("vault: %s handle=%s principal=%s", event, handleID, Principal(principal))
}
