// Package errs defines the sentinel error taxonomy shared across the
// module. Components wrap one of these with fmt.Errorf("...: %w", err)
// so callers can classify a failure with errors.Is regardless of which
// component raised it.
package errs

import "errors"

var (
	// ErrProviderUnavailable means the LLM provider could not be reached
	// or returned a non-2xx status before streaming began.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderStream means a provider connection failed or was reset
	// mid-stream, after at least one chunk may have been delivered.
	ErrProviderStream = errors.New("provider stream error")

	// ErrToolRejected means a human reviewer declined a pending approval
	// request for a tool call.
	ErrToolRejected = errors.New("tool call rejected")

	// ErrToolFailure means a tool executed but returned a failure result
	// (non-zero exit, filesystem error, etc).
	ErrToolFailure = errors.New("tool execution failed")

	// ErrNotFound means a referenced session, bullet, file, or chunk does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means caller-supplied input failed a structural or
	// semantic check before any side effect occurred.
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable means the vector store or relational store
	// could not be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrPolicyViolation means an operation was refused by workspace
	// policy (e.g. a path escaping the workspace root, a disallowed
	// command).
	ErrPolicyViolation = errors.New("policy violation")
)
