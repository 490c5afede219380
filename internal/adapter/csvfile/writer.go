package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// Writer is a batch loader producing the cleaned CSV. The header is written
// before the first row.
type Writer struct {
	mu          sync.Mutex
	w           *csv.Writer
	closer      io.Closer
	wroteHeader bool
}

// Create truncates or creates the file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cleaned csv: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// NewWriter wraps dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(dst)}
}

// LoadBatch appends incidents and flushes them.
func (w *Writer) LoadBatch(ctx context.Context, incidents []domain.Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeHeader(); err != nil {
		return err
	}
	for _, inc := range incidents {
		if err := w.w.Write(EncodeIncident(inc)); err != nil {
			return fmt.Errorf("write cleaned csv: %w", err)
		}
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("flush cleaned csv: %w", err)
	}
	return nil
}

// Flush writes the header if nothing was loaded yet, so an empty run still
// yields a well-formed file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeHeader(); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the underlying file when the writer was created by path.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func (w *Writer) writeHeader() error {
	if w.wroteHeader {
		return nil
	}
	if err := w.w.Write(CleanColumns()); err != nil {
		return fmt.Errorf("write cleaned csv header: %w", err)
	}
	w.wroteHeader = true
	return nil
}
