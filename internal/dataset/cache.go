package dataset

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sales-assistant/internal/models"
)

const cacheVersion = "v1"

type cacheEntry struct {
	Version       string
	SourceModTime time.Time
	Rows          []models.Transaction
}

// CachedSource wraps a file source and keeps its cleaned rows in a gob file
// under Dir. The cache is used while the source file's modification time is
// unchanged.
type CachedSource struct {
	Source Source
	Path   string
	Dir    string
	Logger *slog.Logger
}

func (c *CachedSource) Name() string { return c.Source.Name() }

func (c *CachedSource) Load(ctx context.Context) ([]models.Transaction, error) {
	info, err := os.Stat(c.Path)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	if entry, err := c.loadFromCache(); err == nil && entry.SourceModTime.Equal(info.ModTime()) {
		c.logger().Info("loaded from cache", "source", c.Name(), "records", len(entry.Rows))
		return entry.Rows, nil
	}

	rows, err := c.Source.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.saveToCache(info.ModTime(), rows); err != nil {
		c.logger().Warn("failed to save cache", "error", err)
	}
	return rows, nil
}

func (c *CachedSource) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *CachedSource) cacheFilename() string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(c.Path)
	return filepath.Join(c.Dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func (c *CachedSource) saveToCache(modTime time.Time, rows []models.Transaction) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.cacheFilename())
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(cacheEntry{
		Version:       cacheVersion,
		SourceModTime: modTime,
		Rows:          rows,
	})
}

func (c *CachedSource) loadFromCache() (*cacheEntry, error) {
	file, err := os.Open(c.cacheFilename())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entry cacheEntry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, err
	}
	if entry.Version != cacheVersion {
		return nil, fmt.Errorf("cache version %q", entry.Version)
	}
	return &entry, nil
}
