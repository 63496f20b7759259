// Package errors provides structured error handling for local document storage.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage availability errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"

	// Transaction errors
	CodeWriteFailed  Code = "WRITE_FAILED"
	CodeReadFailed   Code = "READ_FAILED"
	CodeDeleteFailed Code = "DELETE_FAILED"

	// Input errors
	CodeInvalidIdentifier Code = "INVALID_IDENTIFIER"
)

// Exit codes reported by command entry points.
const (
	ExitFailure     = 1
	ExitUsage       = 2
	ExitUnavailable = 69
	ExitIO          = 74
)

// ExitCode maps domain codes to process exit statuses.
func (c Code) ExitCode() int {
	switch c {
	// Caller supplied a bad argument
	case CodeInvalidIdentifier:
		return ExitUsage

	// Local database could not be opened
	case CodeStorageUnavailable:
		return ExitUnavailable

	// A single transaction was rejected
	case CodeWriteFailed,
		CodeReadFailed,
		CodeDeleteFailed:
		return ExitIO

	default:
		return ExitFailure
	}
}
