package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Built-in datasets.
const (
	DatasetFixture = "fixture" // the six-row test fixture
	DatasetSample  = "sample"  // the embedded sample dataset
)

// Scenario is a scripted session against the query pipeline.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Dataset seeds the store: "fixture" (default), "sample", or a path to
	// a JSON rows file, relative to the scenario file.
	Dataset string `yaml:"dataset,omitempty"`

	// Strict rejects queries that fail validation, such as unknown operators.
	Strict bool `yaml:"strict,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one of Intent, FetchPage, FetchRow,
// UpdateRow or DeleteRow is set.
type Step struct {
	// Intent is a query intent name dispatched with Args.
	Intent string         `yaml:"intent,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// FetchPage fetches a page for the current query.
	FetchPage bool `yaml:"fetch_page,omitempty"`

	FetchRow  string `yaml:"fetch_row,omitempty"`
	UpdateRow string `yaml:"update_row,omitempty"`
	DeleteRow string `yaml:"delete_row,omitempty"`

	// Patch holds the fields applied by UpdateRow.
	Patch map[string]any `yaml:"patch,omitempty"`

	// Expect checks the step outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Kind returns the step kind.
func (s Step) Kind() string {
	switch {
	case s.Intent != "":
		return StepIntent
	case s.FetchPage:
		return StepFetchPage
	case s.FetchRow != "":
		return StepFetchRow
	case s.UpdateRow != "":
		return StepUpdateRow
	case s.DeleteRow != "":
		return StepDeleteRow
	}
	return ""
}

func (s Step) kinds() int {
	n := 0
	for _, set := range []bool{s.Intent != "", s.FetchPage, s.FetchRow != "", s.UpdateRow != "", s.DeleteRow != ""} {
		if set {
			n++
		}
	}
	return n
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Code is the expected error code. When set the step must fail with it.
	Code string `yaml:"code,omitempty"`

	// IDs are the expected page row ids, in order.
	IDs        []string `yaml:"ids,omitempty"`
	Total      *int     `yaml:"total,omitempty"`
	TotalPages *int     `yaml:"total_pages,omitempty"`

	// Row is a subset match against the returned row.
	Row map[string]any `yaml:"row,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Step is an intent name or step kind (trace_contains, trace_count).
	Step  string `yaml:"step,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Steps is the expected order (trace_order).
	Steps []string `yaml:"steps,omitempty"`

	// ID names the row (final_row); IDs the selection (final_selection).
	ID  string   `yaml:"id,omitempty"`
	IDs []string `yaml:"ids,omitempty"`

	// Expect holds expected fields (final_query, final_row). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts the row no longer exists (final_row).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains  = "trace_contains"
	AssertTraceOrder     = "trace_order"
	AssertTraceCount     = "trace_count"
	AssertFinalQuery     = "final_query"
	AssertFinalSelection = "final_selection"
	AssertFinalRow       = "final_row"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected. A dataset path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if s.Dataset != "" && s.Dataset != DatasetFixture && s.Dataset != DatasetSample && !filepath.IsAbs(s.Dataset) {
		s.Dataset = filepath.Join(filepath.Dir(path), s.Dataset)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	switch s.kinds() {
	case 0:
		return fmt.Errorf("steps[%d]: one of intent, fetch_page, fetch_row, update_row, delete_row is required", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: only one of intent, fetch_page, fetch_row, update_row, delete_row may be set", index)
	}

	kind := s.Kind()
	if s.Args != nil && kind != StepIntent {
		return fmt.Errorf("steps[%d]: args only apply to intent", index)
	}
	if kind == StepUpdateRow && len(s.Patch) == 0 {
		return fmt.Errorf("steps[%d]: patch is required for update_row", index)
	}
	if s.Patch != nil && kind != StepUpdateRow {
		return fmt.Errorf("steps[%d]: patch only applies to update_row", index)
	}

	if e := s.Expect; e != nil {
		if kind == StepIntent {
			return fmt.Errorf("steps[%d]: expect does not apply to intent", index)
		}
		if (e.IDs != nil || e.Total != nil || e.TotalPages != nil) && kind != StepFetchPage {
			return fmt.Errorf("steps[%d].expect: ids and totals only apply to fetch_page", index)
		}
		if e.Row != nil && kind != StepFetchRow && kind != StepUpdateRow {
			return fmt.Errorf("steps[%d].expect: row only applies to fetch_row and update_row", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalQuery:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_query", index)
		}
		for key := range a.Expect {
			if !isQueryField(key) {
				return fmt.Errorf("assertions[%d]: unknown final_query field %q", index, key)
			}
		}
	case AssertFinalSelection:
		// nil ids asserts an empty selection
	case AssertFinalRow:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for final_row", index)
		}
		if a.Absent == (len(a.Expect) > 0) {
			return fmt.Errorf("assertions[%d]: final_row needs exactly one of expect or absent", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q (valid: trace_contains, trace_order, trace_count, final_query, final_selection, final_row)", index, a.Type)
	}
	return nil
}
