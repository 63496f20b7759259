package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeWriteFailed, "write failed")
	err := Wrap(CodeWriteFailed, "put pdf", stderrors.New("disk full"))

	if !stderrors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stderrors.Is(err, New(CodeReadFailed, "read failed")) {
		t.Fatal("expected different code not to match")
	}
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("database is locked")
	err := fmt.Errorf("outer: %w", Wrap(CodeDeleteFailed, "delete pdf", cause))

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if got := err.Error(); got != "outer: delete pdf: database is locked" {
		t.Fatalf("error = %q", got)
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(CodeInvalidIdentifier, "identifier is required")
	if got := err.Error(); got != "identifier is required" {
		t.Fatalf("error = %q", got)
	}
}

func TestWrapWithMetadataKeepsMetadata(t *testing.T) {
	err := WrapWithMetadata(CodeReadFailed, "get pdf", map[string]string{"paper_id": "p-1"}, nil)
	if err.Metadata["paper_id"] != "p-1" {
		t.Fatalf("metadata = %v", err.Metadata)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: stderrors.New("boom"), want: CodeUnknown},
		{name: "domain", err: New(CodeStorageUnavailable, "open"), want: CodeStorageUnavailable},
		{name: "wrapped", err: fmt.Errorf("cli: %w", New(CodeWriteFailed, "put")), want: CodeWriteFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Fatalf("CodeOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCodeExitCode(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidIdentifier, ExitUsage},
		{CodeStorageUnavailable, ExitUnavailable},
		{CodeWriteFailed, ExitIO},
		{CodeReadFailed, ExitIO},
		{CodeDeleteFailed, ExitIO},
		{CodeUnknown, ExitFailure},
	}
	for _, tc := range tests {
		if got := tc.code.ExitCode(); got != tc.want {
			t.Fatalf("%s.ExitCode() = %d, want %d", tc.code, got, tc.want)
		}
	}
}
