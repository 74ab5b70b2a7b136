package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberrors "github.com/maruel/recdb/internal/errors"
)

// run executes the CLI against dir and returns stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(nil)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, "recdb %v", args)
	return out
}

func decodeRecords(t *testing.T, out string) []map[string]any {
	t.Helper()
	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs), out)
	return recs
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(nil)
	assert.Equal(t, "recdb", cmd.Use)
	for _, name := range []string{"init", "list", "get", "add", "update", "delete", "search", "options", "resolve", "import", "export", "clear", "schema", "metrics", "history", "watch", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
	f := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, f)
	assert.Equal(t, "o", f.Shorthand)
	assert.Equal(t, "text", f.DefValue)
}

func TestInvalidFlags(t *testing.T) {
	t.Setenv("RECDB_CONFIG", "")
	dir := t.TempDir()
	_, err := run(t, dir, "-o", "xml", "init")
	assert.ErrorContains(t, err, "invalid output")
	_, err = run(t, dir, "--log-level", "loud", "init")
	assert.ErrorContains(t, err, "invalid log level")
	_, err = run(t, dir, "--driver", "postgres", "init")
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RECDB_CONFIG", "")
	t.Setenv("RECDB_OUTPUT", "json")
	t.Setenv("RECDB_DATA_DIR", dir)
	cmd := NewRootCommand(nil)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"init"})
	require.NoError(t, cmd.ExecuteContext(t.Context()))
	var counts map[string]int
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &counts))
	assert.Equal(t, map[string]int{"users": 5, "acquisitions": 5, "relations": 3}, counts)
	assert.FileExists(t, filepath.Join(dir, "users.jsonl"))
}

func TestRecordCommands(t *testing.T) {
	t.Setenv("RECDB_CONFIG", "")
	dir := t.TempDir()

	out := mustRun(t, dir, "list", "users")
	assert.Contains(t, out, "userName")
	assert.Contains(t, out, "John Doe")
	assert.Contains(t, out, "100%")

	out = mustRun(t, dir, "-o", "json", "add", "users", "--set", "userName=Ann Lee", "--set", "email=ann@example.com", "--set", "department=Ops", "--set", "role=Lead")
	recs := decodeRecords(t, out)
	require.Len(t, recs, 1)
	key, _ := recs[0]["userId"].(string)
	require.True(t, strings.HasPrefix(key, "U"), key)

	_, err := run(t, dir, "add", "users", "--json", `{"userId":"U001","userName":"Dup","email":"d@example.com","department":"X","role":"Y"}`)
	assert.ErrorIs(t, err, dberrors.ErrDuplicateKey)
	_, err = run(t, dir, "add", "users", "--set", "userName=A")
	assert.ErrorIs(t, err, dberrors.ErrValidation)

	out = mustRun(t, dir, "-o", "json", "update", "users", key, "--set", "role=Director")
	recs = decodeRecords(t, out)
	assert.Equal(t, "Director", recs[0]["role"])
	assert.Equal(t, "Ann Lee", recs[0]["userName"])

	out = mustRun(t, dir, "-o", "json", "get", "users", key)
	assert.Equal(t, "Director", decodeRecords(t, out)[0]["role"])

	out = mustRun(t, dir, "-o", "json", "search", "users", "smith")
	recs = decodeRecords(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, "U002", recs[0]["userId"])

	out = mustRun(t, dir, "-o", "json", "search", "users", "--filter", "department=Engineering")
	assert.Len(t, decodeRecords(t, out), 2)

	assert.Equal(t, "Engineering\nMarketing\nOps\nSales\n", mustRun(t, dir, "options", "users", "department"))
	assert.Equal(t, "John Doe\n", mustRun(t, dir, "resolve", "relations", "userId", "U001"))
	assert.Equal(t, "U999\n", mustRun(t, dir, "resolve", "relations", "userId", "U999"))

	mustRun(t, dir, "delete", "users", key)
	_, err = run(t, dir, "get", "users", key)
	assert.ErrorIs(t, err, dberrors.ErrNotFound)
	_, err = run(t, dir, "list", "ghosts")
	assert.ErrorIs(t, err, dberrors.ErrStoreNotFound)

	out = mustRun(t, dir, "metrics")
	assert.Contains(t, out, "$100,000,000")
	out = mustRun(t, dir, "metrics", "--prom")
	assert.Contains(t, out, "recdb_records")
}

func TestTransferCommands(t *testing.T) {
	t.Setenv("RECDB_CONFIG", "")
	dir := t.TempDir()
	file := filepath.Join(t.TempDir(), "users.csv")

	mustRun(t, dir, "export", "users", "--out", file)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "userId,userName,email,department,role,status,availability"), string(data))

	mustRun(t, dir, "clear", "users")
	out := mustRun(t, dir, "-o", "json", "list", "relations")
	assert.Len(t, decodeRecords(t, out), 3)

	assert.Equal(t, "users: imported 5, skipped 0\n", mustRun(t, dir, "import", "users", file))

	bad := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"userId":"U9","userName":"Nine","email":"n@example.com","department":"X","role":"Y"},{"userName":"Nokey"}]`), 0o600))
	assert.Equal(t, "users: imported 1, skipped 1\n", mustRun(t, dir, "import", "users", bad))
	_, err = run(t, dir, "import", "--strict", "users", bad)
	assert.ErrorIs(t, err, dberrors.ErrImportPartial)

	out = mustRun(t, dir, "export", "users", "--as", "yaml")
	assert.Contains(t, out, "userId: U9")

	_, err = run(t, dir, "import", "users", filepath.Join(dir, "users.xml"))
	assert.ErrorIs(t, err, dberrors.ErrUnsupportedFormat)
	_, err = run(t, dir, "clear")
	assert.Error(t, err)
}

func TestSchemaCommand(t *testing.T) {
	t.Setenv("RECDB_CONFIG", "")
	dir := t.TempDir()
	out := mustRun(t, dir, "schema", "users")
	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "object", s["type"])
	assert.Contains(t, s["required"], "email")

	out = mustRun(t, dir, "schema")
	assert.Contains(t, out, "dataSources:")

	out = mustRun(t, dir, "schema", "--config-schema")
	assert.Contains(t, out, "dataSources")

	cfg := filepath.Join(t.TempDir(), "recdb.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("dataSources:\n  notes:\n    primaryKey: id\n"), 0o600))
	out = mustRun(t, dir, "--config", cfg, "--driver", "memory", "-o", "json", "init")
	assert.JSONEq(t, `{"notes":0}`, out)
}

func TestJournal(t *testing.T) {
	t.Setenv("RECDB_CONFIG", "")
	dir := t.TempDir()
	_, err := run(t, dir, "history")
	assert.ErrorContains(t, err, "no journal")

	mustRun(t, dir, "--journal", "delete", "users", "U005")
	mustRun(t, dir, "--journal", "clear", "relations")
	out := mustRun(t, dir, "-o", "json", "history", "users")
	var commits []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &commits))
	require.Len(t, commits, 2)
	assert.Equal(t, "users: delete U005", commits[0]["message"])
	assert.Equal(t, "initialize", commits[1]["message"])

	_, err = run(t, dir, "--journal", "--driver", "memory", "init")
	assert.ErrorContains(t, err, "requires the jsonl driver")
}
