// Package pdfstore parses pdfstore command configuration and runs one store
// operation against the local database.
package pdfstore

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/pdfstore/internal/pdfstore/payload"
	pdfsqlite "github.com/louisbranch/pdfstore/internal/pdfstore/storage/sqlite"
	entrypoint "github.com/louisbranch/pdfstore/internal/platform/cmd"
)

// ErrUsage indicates the command line did not name a valid operation.
var ErrUsage = errors.New("usage: pdfstore [flags] <put|get|delete|exists|stat> <paper-id> [file]")

// ErrNotFound indicates get or stat found no record.
var ErrNotFound = errors.New("not found")

// Config holds pdfstore command configuration.
type Config struct {
	DBPath      string `env:"DB_PATH" envDefault:"data/pdfs.db"`
	Compression string `env:"COMPRESSION" envDefault:"none"`

	Operation string
	PaperID   string
	File      string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local pdf database")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "Payload compression for new writes (none|zstd)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) < 2 || len(rest) > 3 {
		return Config{}, ErrUsage
	}
	cfg.Operation = strings.ToLower(rest[0])
	cfg.PaperID = rest[1]
	if len(rest) == 3 {
		cfg.File = rest[2]
	}
	switch cfg.Operation {
	case "put":
		if cfg.File == "" {
			return Config{}, ErrUsage
		}
	case "get":
	case "delete", "exists", "stat":
		if cfg.File != "" {
			return Config{}, ErrUsage
		}
	default:
		return Config{}, ErrUsage
	}
	if _, err := payload.ParseCompression(cfg.Compression); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the configured operation with telemetry enabled.
func Run(ctx context.Context, cfg Config, stdin io.Reader, stdout io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePDFStore, func(ctx context.Context) error {
		return execute(ctx, cfg, stdin, stdout)
	})
}

func execute(ctx context.Context, cfg Config, stdin io.Reader, stdout io.Writer) error {
	if stdout == nil {
		return errors.New("output is required")
	}
	compression, err := payload.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}
	store, err := openStore(cfg.DBPath, compression)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close pdf store: %v", err)
		}
	}()

	switch cfg.Operation {
	case "put":
		data, err := readInput(cfg.File, stdin)
		if err != nil {
			return err
		}
		return store.Put(ctx, cfg.PaperID, data)
	case "get":
		data, found, err := store.Get(ctx, cfg.PaperID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: %w", cfg.PaperID, ErrNotFound)
		}
		return writeOutput(cfg.File, stdout, data)
	case "delete":
		return store.Delete(ctx, cfg.PaperID)
	case "exists":
		found, err := store.Exists(ctx, cfg.PaperID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, found)
		return err
	case "stat":
		record, found, err := store.Stat(ctx, cfg.PaperID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: %w", cfg.PaperID, ErrNotFound)
		}
		_, err = fmt.Fprintf(stdout, "paper_id: %s\nsize: %d\ndigest: %s\nencoding: %s\nstored_at: %s\n",
			record.PaperID, record.Size, record.Digest, record.Encoding, record.StoredAt.Format(time.RFC3339Nano))
		return err
	default:
		return ErrUsage
	}
}

func openStore(path string, compression payload.Compression) (*pdfsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return pdfsqlite.Open(path, pdfsqlite.WithCompression(compression))
}

func readInput(file string, stdin io.Reader) ([]byte, error) {
	if file == "-" {
		if stdin == nil {
			return nil, errors.New("stdin is required")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

func writeOutput(file string, stdout io.Writer, data []byte) error {
	if file == "" || file == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(file, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}
