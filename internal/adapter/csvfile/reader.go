// Package csvfile reads raw SFFD call exports and writes the cleaned incident
// table as CSV files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// Reader is a batch extractor over a raw export. It reports io.EOF with the
// final batch.
type Reader struct {
	r      *csv.Reader
	closer io.Closer
	idx    map[string]int
	source string
	line   int64
	done   bool
}

// Open opens a raw export on disk and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw csv: %w", err)
	}
	r, err := NewReader(f, path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header from src. The source name is carried on every
// extracted record.
func NewReader(src io.Reader, source string) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read raw csv header %s: %w", source, err)
	}
	idx, err := domain.ColumnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("read raw csv header %s: %w", source, err)
	}
	return &Reader{r: cr, idx: idx, source: source}, nil
}

// ExtractBatch reads up to batchSize rows. A row the CSV parser rejects is
// still returned, without a record, so it is counted as a transform error.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	if r.done {
		return nil, io.EOF
	}

	batch := make([]domain.RawEvent, 0, batchSize)
	for len(batch) < batchSize {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		row, err := r.r.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			return batch, io.EOF
		}
		r.line++

		event := domain.RawEvent{Source: r.source, Offset: r.line}
		var parseErr *csv.ParseError
		switch {
		case errors.As(err, &parseErr):
			event.Headers = map[string]string{"error": parseErr.Error()}
		case err != nil:
			return batch, fmt.Errorf("read raw csv %s: %w", r.source, err)
		default:
			rec := domain.RecordFromRow(r.idx, row)
			event.Record = &rec
		}
		batch = append(batch, event)
	}
	return batch, nil
}

// Close releases the underlying file when the reader was opened by path.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
