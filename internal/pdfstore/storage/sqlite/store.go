// Package sqlite provides a SQLite-backed local PDF store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/pdfstore/internal/pdfstore/payload"
	"github.com/louisbranch/pdfstore/internal/pdfstore/storage"
	"github.com/louisbranch/pdfstore/internal/pdfstore/storage/sqlite/migrations"
	apperrors "github.com/louisbranch/pdfstore/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/pdfstore/internal/platform/storage/sqlitemigrate"
	"github.com/opencontainers/go-digest"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const instrumentationName = "github.com/louisbranch/pdfstore/internal/pdfstore/storage/sqlite"

// Store persists PDF payloads in a single SQLite table.
//
// Every operation acquires its own connection, runs one transaction on it and
// releases the connection before returning. Store is safe for concurrent use.
type Store struct {
	sqlDB       *sql.DB
	now         func() time.Time
	compression payload.Compression
	tracer      trace.Tracer
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp stored records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCompression selects how new payloads are written. Existing records
// keep the encoding they were written with.
func WithCompression(compression payload.Compression) Option {
	return func(s *Store) {
		s.compression = compression
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Store) {
		if provider != nil {
			s.tracer = provider.Tracer(instrumentationName)
		}
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite pdf store and applies embedded migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.Wrap(apperrors.CodeStorageUnavailable, "open pdf store", errors.New("storage path is required"))
	}
	store := &Store{
		now:         time.Now,
		compression: payload.CompressionNone,
		tracer:      otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if _, err := payload.ParseCompression(string(store.compression)); err != nil {
		return nil, err
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageUnavailable, "open sqlite db", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageUnavailable, "ping sqlite db", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageUnavailable, "run migrations", err)
	}
	store.sqlDB = sqlDB
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put inserts or fully replaces the record for paperID.
func (s *Store) Put(ctx context.Context, paperID string, data []byte) (err error) {
	ctx, span := s.startSpan(ctx, "pdfstore.put", paperID, attribute.Int("pdfstore.payload_size", len(data)))
	defer func() { endSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidatePaperID(paperID); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return apperrors.New(apperrors.CodeStorageUnavailable, "storage is not configured")
	}
	encoded, err := payload.Encode(data, s.compression)
	if err != nil {
		return opError(apperrors.CodeWriteFailed, "put pdf", paperID, err)
	}
	span.SetAttributes(attribute.String("pdfstore.encoding", encoded.Encoding))

	return s.withTx(ctx, apperrors.CodeWriteFailed, "put pdf", paperID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO pdfs (paper_id, payload, encoding, size, digest, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(paper_id) DO UPDATE SET
			   payload = excluded.payload,
			   encoding = excluded.encoding,
			   size = excluded.size,
			   digest = excluded.digest,
			   stored_at = excluded.stored_at`,
			paperID,
			encoded.Data,
			encoded.Encoding,
			encoded.Size,
			encoded.Digest.String(),
			toMillis(s.now()),
		)
		return err
	})
}

// Get returns the stored payload for paperID. found is false when no record
// exists; an empty payload is returned as a non-nil empty slice.
func (s *Store) Get(ctx context.Context, paperID string) (data []byte, found bool, err error) {
	ctx, span := s.startSpan(ctx, "pdfstore.get", paperID)
	defer func() {
		span.SetAttributes(attribute.Bool("pdfstore.found", found))
		endSpan(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := storage.ValidatePaperID(paperID); err != nil {
		return nil, false, err
	}

	err = s.withTx(ctx, apperrors.CodeReadFailed, "get pdf", paperID, func(tx *sql.Tx) error {
		row, ok, err := selectRow(ctx, tx, paperID)
		if err != nil || !ok {
			return err
		}
		decoded, err := payload.Decode(row.encoded)
		if err != nil {
			return err
		}
		data, found = decoded, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

// Delete removes the record for paperID. Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, paperID string) (err error) {
	ctx, span := s.startSpan(ctx, "pdfstore.delete", paperID)
	defer func() { endSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidatePaperID(paperID); err != nil {
		return err
	}

	return s.withTx(ctx, apperrors.CodeDeleteFailed, "delete pdf", paperID, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM pdfs WHERE paper_id = ?`, paperID)
		if err != nil {
			return err
		}
		if affected, err := result.RowsAffected(); err == nil {
			span.SetAttributes(attribute.Bool("pdfstore.found", affected > 0))
		}
		return nil
	})
}

// Exists reports whether Get would return a payload for paperID.
func (s *Store) Exists(ctx context.Context, paperID string) (found bool, err error) {
	ctx, span := s.startSpan(ctx, "pdfstore.exists", paperID)
	defer func() {
		span.SetAttributes(attribute.Bool("pdfstore.found", found))
		endSpan(span, err)
	}()

	_, found, err = s.Get(ctx, paperID)
	return found, err
}

// Stat returns the metadata of the record for paperID. The stored payload is
// decoded and verified so that Stat and Get agree on what is present.
func (s *Store) Stat(ctx context.Context, paperID string) (record storage.Record, found bool, err error) {
	ctx, span := s.startSpan(ctx, "pdfstore.stat", paperID)
	defer func() {
		span.SetAttributes(attribute.Bool("pdfstore.found", found))
		endSpan(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return storage.Record{}, false, err
	}
	if err := storage.ValidatePaperID(paperID); err != nil {
		return storage.Record{}, false, err
	}

	err = s.withTx(ctx, apperrors.CodeReadFailed, "stat pdf", paperID, func(tx *sql.Tx) error {
		row, ok, err := selectRow(ctx, tx, paperID)
		if err != nil || !ok {
			return err
		}
		if _, err := payload.Decode(row.encoded); err != nil {
			return err
		}
		record = storage.Record{
			PaperID:  paperID,
			StoredAt: fromMillis(row.storedAt),
			Size:     row.encoded.Size,
			Digest:   row.encoded.Digest.String(),
			Encoding: row.encoded.Encoding,
		}
		found = true
		return nil
	})
	if err != nil {
		return storage.Record{}, false, err
	}
	return record, found, nil
}

type pdfRow struct {
	encoded  payload.Encoded
	storedAt int64
}

func selectRow(ctx context.Context, tx *sql.Tx, paperID string) (pdfRow, bool, error) {
	var row pdfRow
	var digestValue string
	err := tx.QueryRowContext(
		ctx,
		`SELECT payload, encoding, size, digest, stored_at
		   FROM pdfs
		  WHERE paper_id = ?`,
		paperID,
	).Scan(
		&row.encoded.Data,
		&row.encoded.Encoding,
		&row.encoded.Size,
		&digestValue,
		&row.storedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return pdfRow{}, false, nil
	}
	if err != nil {
		return pdfRow{}, false, err
	}
	row.encoded.Digest = digest.Digest(digestValue)
	return row, true, nil
}

// withTx runs fn in a single transaction on a dedicated connection. The
// connection is released on every exit path; a failing fn rolls back.
func (s *Store) withTx(ctx context.Context, code apperrors.Code, op, paperID string, fn func(*sql.Tx) error) error {
	if s == nil || s.sqlDB == nil {
		return apperrors.New(apperrors.CodeStorageUnavailable, "storage is not configured")
	}
	conn, err := s.sqlDB.Conn(ctx)
	if err != nil {
		return opError(apperrors.CodeStorageUnavailable, op+": acquire connection", paperID, err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return opError(code, op+": begin", paperID, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return opError(code, op, paperID, err)
	}
	if err := tx.Commit(); err != nil {
		return opError(code, op+": commit", paperID, err)
	}
	return nil
}

func opError(code apperrors.Code, op, paperID string, cause error) error {
	metadata := map[string]string{"paper_id": paperID}
	if reason := sqliteReason(cause); reason != "" {
		metadata["reason"] = reason
	}
	return apperrors.WrapWithMetadata(code, op, metadata, cause)
}

// sqliteReason classifies the primary SQLite result code behind err.
func sqliteReason(err error) string {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		if errors.Is(err, payload.ErrCorrupt) {
			return "corrupt"
		}
		return ""
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3lib.SQLITE_FULL:
		return "full"
	case sqlite3lib.SQLITE_READONLY, sqlite3lib.SQLITE_PERM:
		return "readonly"
	case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
		return "busy"
	case sqlite3lib.SQLITE_CORRUPT, sqlite3lib.SQLITE_NOTADB:
		return "corrupt"
	case sqlite3lib.SQLITE_CONSTRAINT:
		return "constraint"
	default:
		return fmt.Sprintf("sqlite_%d", sqliteErr.Code()&0xff)
	}
}

func (s *Store) startSpan(ctx context.Context, name, paperID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := otel.Tracer(instrumentationName)
	if s != nil && s.tracer != nil {
		tracer = s.tracer
	}
	attrs = append(attrs, attribute.String("pdfstore.paper_id", paperID))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var (
	_ storage.BlobStore   = (*Store)(nil)
	_ storage.RecordStore = (*Store)(nil)
)
