package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
)

// ErrMissingID is returned when a cleaned CSV lacks the id column.
var ErrMissingID = errors.New("cleaned csv has no id column")

// LoadIncidents reads a cleaned CSV written by [Writer] from disk.
func LoadIncidents(path string) ([]domain.Incident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cleaned csv: %w", err)
	}
	defer f.Close()
	return ReadIncidents(f)
}

// ReadIncidents decodes a cleaned CSV. Unknown columns are ignored.
func ReadIncidents(src io.Reader) ([]domain.Incident, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read cleaned csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	if _, ok := idx["id"]; !ok {
		return nil, ErrMissingID
	}

	var incidents []domain.Incident
	line := 1
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read cleaned csv line %d: %w", line, err)
		}
		inc, err := DecodeIncident(idx, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		incidents = append(incidents, inc)
	}
	return incidents, nil
}
