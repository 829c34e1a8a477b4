package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/tablekit/internal/row"
)

//go:embed row.cue
var rowCUE []byte

// Validation error codes (E200-E209)
const (
	ErrMalformed   = "E200" // not a JSON array of objects
	ErrSchema      = "E201" // row does not satisfy #Row
	ErrDuplicateID = "E202" // id already used by an earlier row
)

// ValidationError locates one problem in a dataset.
type ValidationError struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	loc := fmt.Sprintf("row %d", e.Index)
	if e.ID != "" {
		loc = fmt.Sprintf("row %d (%s)", e.Index, e.ID)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, loc, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, loc, e.Message)
}

// Errors collects every problem found in a dataset.
type Errors []ValidationError

func (es Errors) Error() string {
	switch len(es) {
	case 0:
		return "no validation errors"
	case 1:
		return es[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", es[0].Error(), len(es)-1)
}

// Schema holds the compiled #Row definition.
//
// A cue.Context is not safe for concurrent use, so validation is serialized.
type Schema struct {
	mu  sync.Mutex
	row cue.Value
}

// New compiles the embedded row schema.
func New() (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(rowCUE, cue.Filename("row.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile row schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Row"))
	if !def.Exists() {
		return nil, fmt.Errorf("compile row schema: #Row not defined")
	}
	return &Schema{row: def}, nil
}

var defaultSchema = sync.OnceValues(New)

// Default returns the process-wide schema, compiled on first use.
func Default() (*Schema, error) {
	return defaultSchema()
}

// ValidateJSON checks that data is a JSON array of rows satisfying #Row with
// unique ids. Returns all errors found (does not fail-fast).
func (s *Schema) ValidateJSON(data []byte) Errors {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Errors{{Index: -1, Message: err.Error(), Code: ErrMalformed}}
	}

	var errs Errors
	seen := make(map[string]int, len(raw))
	for i, msg := range raw {
		var obj map[string]any
		if err := json.Unmarshal(msg, &obj); err != nil || obj == nil {
			errs = append(errs, ValidationError{Index: i, Message: "row must be a JSON object", Code: ErrMalformed})
			continue
		}
		id, _ := obj[row.FieldID].(string)
		errs = append(errs, s.validate(i, id, obj)...)
		if id == "" {
			continue
		}
		if first, dup := seen[id]; dup {
			errs = append(errs, ValidationError{
				Index:   i,
				ID:      id,
				Field:   row.FieldID,
				Message: fmt.Sprintf("duplicate id, first used by row %d", first),
				Code:    ErrDuplicateID,
			})
			continue
		}
		seen[id] = i
	}
	return errs
}

// ValidateRows checks typed rows, e.g. before they are written to a store.
func (s *Schema) ValidateRows(rows []row.Row) Errors {
	data, err := json.Marshal(rows)
	if err != nil {
		return Errors{{Index: -1, Message: err.Error(), Code: ErrMalformed}}
	}
	return s.ValidateJSON(data)
}

func (s *Schema) validate(index int, id string, obj map[string]any) Errors {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.row.Context().Encode(obj)
	err := s.row.Unify(v).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out Errors
	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		out = append(out, ValidationError{
			Index:   index,
			ID:      id,
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrSchema,
		})
	}
	return out
}
