// Package dataset loads row datasets from JSON: files on disk or the
// sample catalog embedded in the binary.
package dataset

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/roach88/tablekit/internal/fetch"
	"github.com/roach88/tablekit/internal/row"
	"github.com/roach88/tablekit/internal/schema"
)

//go:embed sample.json
var sampleJSON []byte

var (
	_ fetch.Source = FileSource{}
	_ fetch.Source = SampleSource{}
)

// Decode validates data against the row schema and decodes it.
// Validation failures are returned as schema.Errors.
func Decode(data []byte) ([]row.Row, error) {
	s, err := schema.Default()
	if err != nil {
		return nil, err
	}
	if errs := s.ValidateJSON(data); len(errs) > 0 {
		return nil, errs
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var rows []row.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if rows == nil {
		rows = []row.Row{}
	}
	return rows, nil
}

// FileSource loads a JSON array of rows from Path on every Load.
type FileSource struct {
	Path string
}

// Load reads and decodes the file.
func (s FileSource) Load(ctx context.Context) ([]row.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	rows, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return rows, nil
}

var sampleRows = sync.OnceValues(func() ([]row.Row, error) {
	return Decode(sampleJSON)
})

// SampleSource serves the embedded sample catalog.
type SampleSource struct{}

// Load returns fresh copies of the sample rows.
func (SampleSource) Load(context.Context) ([]row.Row, error) {
	rows, err := sampleRows()
	if err != nil {
		return nil, fmt.Errorf("sample dataset: %w", err)
	}
	return cloneRows(rows), nil
}

// Sample returns the embedded sample rows. It panics if the embedded file
// is invalid, which the package tests rule out.
func Sample() []row.Row {
	rows, err := sampleRows()
	if err != nil {
		panic(err)
	}
	return cloneRows(rows)
}

// SampleJSON returns the raw embedded sample file.
func SampleJSON() []byte {
	return bytes.Clone(sampleJSON)
}

// Open returns the source for path: the sample catalog when path is empty,
// a FileSource otherwise.
func Open(path string) fetch.Source {
	if path == "" {
		return SampleSource{}
	}
	return FileSource{Path: path}
}

func cloneRows(rows []row.Row) []row.Row {
	out := make([]row.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
