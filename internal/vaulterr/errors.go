// Package vaulterr defines the structured error kinds used throughout the
// data vault: every failure surfaced to a caller carries a stable Code, an
// HTTP Status, and a human Message, following the same shape as a typical
// capsule-store error package but with the five kinds spec.md §7 names.
package vaulterr

import "fmt"

// Code identifies one of the five vault error kinds.
type Code string

const (
	// CodeDataNotFound collapses "missing", "expired", "wrong owner", and
	// "wrong token" into one kind so retrieval never leaks ownership info.
	CodeDataNotFound Code = "DATA_NOT_FOUND" // 404

	// CodeAnalysisFailure means the AnalysisAgent was unreachable, replied
	// with malformed JSON, or omitted a required field.
	CodeAnalysisFailure Code = "ANALYSIS_FAILURE" // 502

	// CodeQueryError means the SQL compiled or executed incorrectly,
	// including a timeout.
	CodeQueryError Code = "QUERY_ERROR" // 400

	// CodeValidationError means the caller's input was invalid: an empty
	// or non-array put, empty analysis paths, or bad startup config.
	CodeValidationError Code = "VALIDATION_ERROR" // 400

	// CodeBackendError means a backend itself failed, e.g. transient
	// connectivity. An optimistic-concurrency conflict that persists past
	// the store's single allowed retry is not reported with this code; the
	// store surfaces it as not found.
	CodeBackendError Code = "BACKEND_ERROR" // 500
)

// statusForCode is the HTTP status each code maps to.
var statusForCode = map[Code]int{
	CodeDataNotFound:    404,
	CodeAnalysisFailure: 502,
	CodeQueryError:      400,
	CodeValidationError: 400,
	CodeBackendError:    500,
}

// VaultError is a structured error with a stable code, HTTP status, message,
// and optional details for diagnosis.
type VaultError struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether err is a *VaultError with the given code.
func Is(err error, code Code) bool {
	ve, ok := err.(*VaultError)
	return ok && ve.Code == code
}

// recoveryHint is the sanctioned recovery instruction attached to every
// DataNotFound reply, per spec.md §7: the LLM must not retry the handle and
// should instead re-invoke the tool that produced the data.
const recoveryHint = "do not retry with this handle; call the original tool that produced the data again to obtain a fresh handle."

// NewDataNotFound creates a 404 error. sourceTool, when known, is folded
// into the recovery hint so the caller knows which tool to re-invoke.
func NewDataNotFound(handleID, sourceTool string) *VaultError {
	msg := recoveryHint
	if sourceTool != "" {
		msg = fmt.Sprintf("no live data for this handle; call %q again to obtain a fresh handle.", sourceTool)
	}
	return &VaultError{
		Code:    CodeDataNotFound,
		Status:  statusForCode[CodeDataNotFound],
		Message: msg,
		Details: map[string]any{"handle_id": handleID},
	}
}

// NewAnalysisFailure creates a 502 error for an AnalysisAgent failure.
func NewAnalysisFailure(msg string) *VaultError {
	return &VaultError{
		Code:    CodeAnalysisFailure,
		Status:  statusForCode[CodeAnalysisFailure],
		Message: msg,
	}
}

// NewQueryError creates a 400 error carrying the offending query's first 80
// characters, per spec.md §7.
func NewQueryError(handleID, sql string, cause error) *VaultError {
	snippet := sql
	if len(snippet) > 80 {
		snippet = snippet[:80]
	}
	msg := "query failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &VaultError{
		Code:    CodeQueryError,
		Status:  statusForCode[CodeQueryError],
		Message: msg,
		Details: map[string]any{"handle_id": handleID, "sql_prefix": snippet},
	}
}

// NewValidationError creates a 400 error for invalid input or config.
func NewValidationError(msg string) *VaultError {
	return &VaultError{
		Code:    CodeValidationError,
		Status:  statusForCode[CodeValidationError],
		Message: msg,
	}
}

// NewBackendError creates a 500 error for a backend failure such as lost
// connectivity.
func NewBackendError(cause error) *VaultError {
	msg := "backend error"
	if cause != nil {
		msg = cause.Error()
	}
	return &VaultError{
		Code:    CodeBackendError,
		Status:  statusForCode[CodeBackendError],
		Message: msg,
	}
}
