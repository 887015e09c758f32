// Package dataset loads the sales table from a configured source and keeps
// the current snapshot of it, together with the vocabularies derived from
// it, for the lifetime of the process.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"sales-assistant/internal/models"
)

// Source produces cleaned transactions.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]models.Transaction, error)
}

// Options selects and configures a source.
type Options struct {
	Driver   string // csv, xlsx, postgres or sqlite; inferred from Path when empty
	Path     string
	DSN      string
	Table    string
	Sheet    string
	CacheDir string
	Logger   *slog.Logger
}

// NewSource builds the source described by opts. File sources are wrapped in
// a CachedSource when CacheDir is set.
func NewSource(opts Options) (Source, error) {
	driver := strings.ToLower(opts.Driver)
	if driver == "" {
		driver = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.Path)), ".")
	}

	var src Source
	switch driver {
	case "csv":
		src = NewCSVSource(opts.Path)
	case "xlsx", "xlsm":
		src = NewXLSXSource(opts.Path, opts.Sheet)
	case "postgres", "postgresql":
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres source needs a DSN")
		}
		return NewPostgresSource(opts.DSN, opts.Table), nil
	case "sqlite", "db":
		return NewSQLiteSource(opts.Path, opts.Table), nil
	default:
		return nil, fmt.Errorf("unknown dataset driver %q", driver)
	}

	if opts.CacheDir == "" {
		return src, nil
	}
	return &CachedSource{Source: src, Path: opts.Path, Dir: opts.CacheDir, Logger: opts.Logger}, nil
}
