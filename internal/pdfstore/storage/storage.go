// Package storage defines persistence contracts for locally stored PDFs.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/pdfstore/internal/platform/errors"
)

var (
	// ErrStorageUnavailable indicates the local database could not be opened
	// or a handle to it could not be acquired.
	ErrStorageUnavailable = apperrors.New(apperrors.CodeStorageUnavailable, "storage unavailable")
	// ErrWriteFailed indicates a put transaction was rejected.
	ErrWriteFailed = apperrors.New(apperrors.CodeWriteFailed, "write failed")
	// ErrReadFailed indicates a read transaction was rejected or returned
	// bytes that fail integrity checks.
	ErrReadFailed = apperrors.New(apperrors.CodeReadFailed, "read failed")
	// ErrDeleteFailed indicates a delete transaction was rejected.
	ErrDeleteFailed = apperrors.New(apperrors.CodeDeleteFailed, "delete failed")
	// ErrInvalidIdentifier indicates an empty document identifier.
	ErrInvalidIdentifier = apperrors.New(apperrors.CodeInvalidIdentifier, "paper id is required")
)

// Record describes one stored document without its payload.
type Record struct {
	PaperID  string
	StoredAt time.Time
	Size     int64
	Digest   string
	Encoding string
}

// BlobStore persists document bytes keyed by an opaque paper identifier.
//
// Absence is reported through the boolean results, never as an error. An
// empty payload is a present record.
type BlobStore interface {
	Put(ctx context.Context, paperID string, payload []byte) error
	Get(ctx context.Context, paperID string) ([]byte, bool, error)
	Delete(ctx context.Context, paperID string) error
	Exists(ctx context.Context, paperID string) (bool, error)
}

// RecordStore exposes stored document metadata.
type RecordStore interface {
	Stat(ctx context.Context, paperID string) (Record, bool, error)
}

// ValidatePaperID rejects identifiers the store cannot key on. Identifiers
// are opaque: anything non-empty is accepted verbatim.
func ValidatePaperID(paperID string) error {
	if paperID == "" {
		return ErrInvalidIdentifier
	}
	return nil
}
