package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"sales-assistant/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// CSVSource reads a comma separated export with a header row.
type CSVSource struct {
	Path string

	dropped atomic.Int64
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Name() string { return "csv:" + s.Path }

// Dropped reports how many rows the last load rejected.
func (s *CSVSource) Dropped() int64 { return s.dropped.Load() }

func (s *CSVSource) Load(ctx context.Context) ([]models.Transaction, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return s.read(ctx, file)
}

func (s *CSVSource) read(ctx context.Context, r io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	s.dropped.Store(0)
	var rows []models.Transaction
	batch := make([][]string, 0, batchSize)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		batch = append(batch, record)

		if len(batch) >= batchSize {
			parsed, err := s.processBatch(ctx, columns, batch)
			if err != nil {
				return nil, err
			}
			rows = append(rows, parsed...)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		parsed, err := s.processBatch(ctx, columns, batch)
		if err != nil {
			return nil, err
		}
		rows = append(rows, parsed...)
	}

	return dedupe(rows), nil
}

// processBatch cleans a batch in parallel and returns the kept rows in their
// original order.
func (s *CSVSource) processBatch(ctx context.Context, columns columnMap, batch [][]string) ([]models.Transaction, error) {
	type processedTx struct {
		tx    models.Transaction
		valid bool
	}
	results := make([]processedTx, len(batch))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	for i, record := range batch {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			tx, ok := columns.row(record).transaction(parseDate)
			results[i] = processedTx{tx: tx, valid: ok}
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, err
	}

	kept := make([]models.Transaction, 0, len(results))
	for _, p := range results {
		if !p.valid {
			s.dropped.Add(1)
			continue
		}
		kept = append(kept, p.tx)
	}
	return kept, nil
}
