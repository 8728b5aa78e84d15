// Package catalog loads book records in bulk and derives the category index from them.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/service/data"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

// AuthorsField is stored as a list, split on ';' only since names carry commas.
const AuthorsField = "authors"

type ImportOptions struct {
	Collection    string
	KeyField      string // column whose value becomes the document id
	CategoryField string // column stored as a list of categories
	BatchSize     int    // writes per commit, capped at data.MaxBatchWrites
}

// ImportFile opens a CSV file and imports it.
func ImportFile(ctx context.Context, path string, datasvc data.IService, opts ImportOptions) (model.ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ImportStats{}, err
	}
	defer f.Close()

	return Import(ctx, f, datasvc, opts)
}

// Import upserts one document per CSV row keyed by opts.KeyField. Rows are committed in
// batches and the final partial batch is committed too. Rows without a key are skipped.
// A failed commit stops the import, batches already committed stay written.
func Import(ctx context.Context, r io.Reader, datasvc data.IService, opts ImportOptions) (model.ImportStats, error) {
	stats := model.ImportStats{}

	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > data.MaxBatchWrites {
		batchSize = data.MaxBatchWrites
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("reading csv header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	batch := make([]data.Document, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := datasvc.CommitBatch(ctx, opts.Collection, batch); err != nil {
			return fmt.Errorf("committing batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Written += len(batch)
		lgr.Logger.Debug("catalog batch committed",
			slog.Int("batch", stats.Batches),
			slog.Int("size", len(batch)),
		)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading csv row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		doc, ok := rowDocument(header, record, opts)
		if !ok {
			stats.Skipped++
			continue
		}

		batch = append(batch, doc)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

func rowDocument(header, record []string, opts ImportOptions) (data.Document, bool) {
	fields := make(map[string]any, len(header))
	for i, value := range record {
		if i >= len(header) || header[i] == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch header[i] {
		case opts.CategoryField:
			fields[header[i]] = SplitCategories(value)
		case AuthorsField:
			fields[header[i]] = splitTrim(value, ";")
		default:
			fields[header[i]] = value
		}
	}

	key, _ := fields[opts.KeyField].(string)
	// A slash would address a sub-collection in the document path
	if key == "" || strings.Contains(key, "/") {
		return data.Document{}, false
	}
	return data.Document{ID: key, Fields: fields}, true
}

func splitTrim(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
