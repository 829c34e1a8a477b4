package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablekit/internal/row"
)

const fixtureRows = `[
  {"id": "a1", "name": "Alpha Button", "status": "active", "category": "Button", "value": 30, "date": "2024-01-03T00:00:00Z", "tags": ["ui"]},
  {"id": "a2", "name": "Beta Input", "status": "pending", "category": "Input", "value": 10, "date": "2024-01-01T00:00:00Z"},
  {"id": "a3", "name": "Gamma Button", "status": "active", "category": "Button", "value": 20, "date": "2024-01-02T00:00:00Z", "metadata": {"owner": "web"}}
]`

// execute runs the root command with simulation off and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--no-simulate"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeRows(t *testing.T) string {
	return writeFile(t, "rows.json", fixtureRows)
}

func writeConfig(t *testing.T, content string) string {
	return writeFile(t, "tablekit.yaml", content)
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	if data != nil {
		resp.Data = data
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func importedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "rows.db")
	_, err := execute(t, "--db", db, "import", writeRows(t))
	require.NoError(t, err)
	return db
}

func TestPage_SampleText(t *testing.T) {
	out, err := execute(t, "page")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "cmp-001")
	assert.Contains(t, out, "Page 1 of 3 (30 rows)")
}

func TestPage_FilterSortJSON(t *testing.T) {
	var page struct {
		Rows       []row.Row `json:"rows"`
		Total      int       `json:"total"`
		TotalPages int       `json:"totalPages"`
	}
	out, err := execute(t, "--dataset", writeRows(t), "--format", "json",
		"page", "--filter", "status:equals:active", "--sort", "value:desc")
	require.NoError(t, err)

	resp := decodeResponse(t, out, &page)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"a1", "a3"}, row.IDs(page.Rows))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)
}

func TestPage_SearchNoRows(t *testing.T) {
	out, err := execute(t, "--dataset", writeRows(t), "page", "--search", "nothing matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No rows.")
	assert.Contains(t, out, "Page 1 of 0 (0 rows)")
}

func TestPage_BadSort(t *testing.T) {
	out, err := execute(t, "--format", "json", "page", "--sort", "value:sideways")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, ErrCodeBadArgs, resp.Error.Code)
}

func TestPage_MissingDataset(t *testing.T) {
	out, err := execute(t, "--dataset", "/nonexistent/rows.json", "page")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestRowGet(t *testing.T) {
	out, err := execute(t, "--dataset", writeRows(t), "row", "get", "a3")
	require.NoError(t, err)
	assert.Contains(t, out, "Gamma Button")
	assert.Contains(t, out, "owner:")
	assert.Contains(t, out, "2024-01-02")
}

func TestRowGet_NotFound(t *testing.T) {
	out, err := execute(t, "--dataset", writeRows(t), "--format", "json", "row", "get", "zz")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeFetch, resp.Error.Code)
	assert.Equal(t, "NOT_FOUND", resp.Error.Details.(map[string]any)["code"])
}

func TestRowUpdate_PersistsToDB(t *testing.T) {
	db := importedDB(t)

	var updated row.Row
	out, err := execute(t, "--db", db, "--format", "json",
		"row", "update", "a2", "--set", "status=archived", "--set", "value=12.5", "--set", "owner=design")
	require.NoError(t, err)
	decodeResponse(t, out, &updated)
	assert.Equal(t, row.StatusArchived, updated.Status)
	assert.Equal(t, 12.5, updated.Value)
	assert.Equal(t, "design", updated.Metadata["owner"])

	// A fresh process sees the change.
	out, err = execute(t, "--db", db, "row", "get", "a2")
	require.NoError(t, err)
	assert.Contains(t, out, "archived")
	assert.Contains(t, out, "12.5")
}

func TestRowUpdate_InvalidPatch(t *testing.T) {
	out, err := execute(t, "--dataset", writeRows(t), "--format", "json",
		"row", "update", "a1", "--set", "value=-5")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Details.(map[string]any)["code"])
}

func TestRowUpdate_NothingToUpdate(t *testing.T) {
	_, err := execute(t, "row", "update", "cmp-001")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestRowDelete(t *testing.T) {
	db := importedDB(t)

	out, err := execute(t, "--db", db, "row", "delete", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted a1\n", out)

	_, err = execute(t, "--db", db, "row", "get", "a1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err = execute(t, "--db", db, "page")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 rows)")
}

func TestBuildPatch(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		sets    []string
		want    row.Patch
		wantErr string
	}{
		{
			name: "set values keep JSON types",
			sets: []string{"value=12", "name=Big Button", `tags=["a","b"]`, "flag=true"},
			want: row.Patch{"value": json.Number("12"), "name": "Big Button", "tags": []any{"a", "b"}, "flag": true},
		},
		{
			name: "set wins over patch",
			raw:  `{"status": "active", "owner": null}`,
			sets: []string{"status=archived"},
			want: row.Patch{"status": "archived", "owner": nil},
		},
		{
			name: "value with equals sign",
			sets: []string{"note=a=b"},
			want: row.Patch{"note": "a=b"},
		},
		{name: "empty", wantErr: "nothing to update"},
		{name: "missing field", sets: []string{"=x"}, wantErr: "expected field=value"},
		{name: "bad patch", raw: "{", wantErr: "--patch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildPatch(tt.raw, tt.sets)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	out, err := execute(t, "--verbose", "validate", writeRows(t))
	require.NoError(t, err)
	assert.Contains(t, out, "3 rows valid")
	assert.Contains(t, out, "active")
}

func TestValidate_SchemaErrors(t *testing.T) {
	bad := `[
  {"id": "b1", "name": "One", "status": "gone", "category": "X", "value": 1, "date": "2024-01-01T00:00:00Z"},
  {"id": "b1", "name": "Two", "status": "active", "category": "X", "value": -3, "date": "2024-01-01T00:00:00Z"}
]`
	var result ValidationResult
	out, err := execute(t, "--format", "json", "validate", writeFile(t, "bad.json", bad))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := CLIResponse{Error: &CLIError{Details: &result}}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeInvalidData, resp.Error.Code)
	assert.False(t, result.Valid)
	assert.GreaterOrEqual(t, len(result.Errors), 2)
}

func TestValidate_SchemaErrorsText(t *testing.T) {
	out, err := execute(t, "validate", writeFile(t, "bad.json", `[{"id": "x"}]`))
	require.Error(t, err)
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "schema error(s)")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", "/nonexistent/rows.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "file not found")
}

func TestImport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "rows.db")

	var result ImportResult
	out, err := execute(t, "--db", db, "--format", "json", "import")
	require.NoError(t, err)
	decodeResponse(t, out, &result)
	assert.Equal(t, 30, result.Rows)
	assert.Equal(t, "sample", result.Source)

	// Re-import replaces the contents.
	out, err = execute(t, "--db", db, "import", writeRows(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 rows")

	out, err = execute(t, "--db", db, "page")
	require.NoError(t, err)
	assert.Contains(t, out, "(3 rows)")
}

func TestImport_RequiresDB(t *testing.T) {
	_, err := execute(t, "import", writeRows(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database")
}

func TestImport_InvalidRows(t *testing.T) {
	db := filepath.Join(t.TempDir(), "rows.db")
	_, err := execute(t, "--db", db, "import", writeFile(t, "bad.json", `[{"id": 1}]`))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.NoFileExists(t, db)
}

func TestConfigFile_SelectsDataset(t *testing.T) {
	cfg := writeConfig(t, "simulation:\n  enabled: false\ndataset:\n  path: "+writeRows(t)+"\n")

	out, err := execute(t, "--config", cfg, "page", "--page-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Page 1 of 2 (3 rows)")
}

func TestConfigFile_Invalid(t *testing.T) {
	cfg := writeConfig(t, "log:\n  format: xml\n")

	out, err := execute(t, "--config", cfg, "page")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}
