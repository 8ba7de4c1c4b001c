package cmd

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/xmindctl/internal/config"
	"github.com/agentic-research/xmindctl/internal/errs"
	"github.com/agentic-research/xmindctl/internal/mindmap"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// newMap creates a blank map in a temp dir and returns its path.
func newMap(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	path := filepath.Join(t.TempDir(), "plan.xmind")
	_, err := run(t, "create", path, "--sheet-title", "Plan", "--root-topic", "Goals")
	require.NoError(t, err)
	return path
}

func sheets(t *testing.T, path string) []mindmap.SheetInfo {
	t.Helper()
	out, err := run(t, "sheets", path, "--json")
	require.NoError(t, err)
	var infos []mindmap.SheetInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	return infos
}

func topics(t *testing.T, path string) []mindmap.TopicInfo {
	t.Helper()
	out, err := run(t, "topics", path, "--json")
	require.NoError(t, err)
	var infos []mindmap.TopicInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	return infos
}

func titlesOf(infos []mindmap.TopicInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Title
	}
	return out
}

func TestCreateAndList(t *testing.T) {
	path := newMap(t)

	infos := sheets(t, path)
	require.Len(t, infos, 1)
	assert.Equal(t, "Plan", infos[0].Title)
	assert.Equal(t, "Goals", infos[0].RootTopic)
	assert.Equal(t, 1, infos[0].Topics)

	out, err := run(t, "sheets", path)
	require.NoError(t, err)
	assert.Contains(t, out, "INDEX")
	assert.Contains(t, out, "Goals")

	out, err = run(t, "entries", path)
	require.NoError(t, err)
	assert.Contains(t, out, "content.json")
	assert.Contains(t, out, "metadata.json")
}

func TestInsert(t *testing.T) {
	path := newMap(t)

	out, err := run(t, "insert", path, "--parent", "sheet[0].rootTopic", "--title", "Hiring", "--id", "hire")
	require.NoError(t, err)
	assert.Contains(t, out, "hire")

	_, err = run(t, "insert", path, "--parent", `sheet[0].rootTopic.children.attached[title == "Hiring"]`, "--titles", "Recruiter,Budget")
	require.NoError(t, err)

	batch := filepath.Join(t.TempDir(), "batch.jsonc")
	require.NoError(t, os.WriteFile(batch, []byte(`[
		// appended last
		"Launch",
		{"title": "Marketing", "children": {"attached": [{"title": "Ads"}]}},
	]`), 0o644))
	_, err = run(t, "insert", path, "--parent", "$[0].rootTopic", "--from", batch)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"Goals", "Hiring", "Recruiter", "Budget", "Launch", "Marketing", "Ads"},
		titlesOf(topics(t, path)))
}

func TestInsert_SeparateOutput(t *testing.T) {
	path := newMap(t)
	out := filepath.Join(filepath.Dir(path), "out", "copy.xmind")

	_, err := run(t, "insert", path, "--parent", "sheet[0].rootTopic", "--title", "X", "-o", out)
	require.NoError(t, err)

	assert.Len(t, topics(t, path), 1)
	assert.Len(t, topics(t, out), 2)
}

func TestInsert_Errors(t *testing.T) {
	path := newMap(t)
	_, err := run(t, "insert", path, "--parent", "sheet[0].rootTopic", "--title", "A")
	require.NoError(t, err)
	_, err = run(t, "insert", path, "--parent", "sheet[0].rootTopic", "--title", "A")
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		kind errs.Kind
	}{
		{"no source", []string{"--parent", "sheet[0].rootTopic"}, errs.KindInvalidInput},
		{"two sources", []string{"--parent", "sheet[0].rootTopic", "--title", "A", "--titles", "B"}, errs.KindInvalidInput},
		{"missing parent", []string{"--parent", "sheet[0].rootTopic.children.attached[9]", "--title", "X"}, errs.KindAddressing},
		{"bad expression", []string{"--parent", "sheet[0", "--title", "X"}, errs.KindInvalidExpression},
		{"ambiguous strict", []string{"--parent", `sheet[0].rootTopic.children.attached[title == "A"]`, "--title", "X", "--strict"}, errs.KindAddressing},
		{"missing batch file", []string{"--parent", "sheet[0].rootTopic", "--from", "/nonexistent/batch.jsonc"}, errs.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"insert", path}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errs.KindOf(err), "got %v", err)
		})
	}
	assert.Len(t, topics(t, path), 3)
}

func TestInsert_AmbiguousParentUsesFirst(t *testing.T) {
	path := newMap(t)
	for range 2 {
		_, err := run(t, "insert", path, "--parent", "sheet[0].rootTopic", "--title", "A")
		require.NoError(t, err)
	}
	_, err := run(t, "insert", path, "--parent", `sheet[0].rootTopic.children.attached[title == "A"]`, "--title", "child")
	require.NoError(t, err)

	infos := topics(t, path)
	assert.Equal(t, []string{"Goals", "A", "child", "A"}, titlesOf(infos))
}

func TestBackground(t *testing.T) {
	path := newMap(t)

	_, err := run(t, "background", path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBackground, sheets(t, path)[0].Background)

	_, err = run(t, "background", path, "--all", "--color", "#102030FF")
	require.NoError(t, err)
	assert.Equal(t, "#102030FF", sheets(t, path)[0].Background)

	_, err = run(t, "background", path, "--sheet", "4")
	assert.Equal(t, errs.KindIndexOutOfRange, errs.KindOf(err))

	_, err = run(t, "background", path, "--sheet", "0", "--all")
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}

func TestBackground_ColorFromConfig(t *testing.T) {
	path := newMap(t)
	cfg := filepath.Join(t.TempDir(), "xmindctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("background:\n  color: \"#ABCDEFFF\"\n"), 0o644))

	_, err := run(t, "--config", cfg, "background", path)
	require.NoError(t, err)
	assert.Equal(t, "#ABCDEFFF", sheets(t, path)[0].Background)
}

func TestShow(t *testing.T) {
	path := newMap(t)

	out, err := run(t, "show", path, "--indent", "")
	require.NoError(t, err)
	var doc []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Plan", doc[0]["title"])
	assert.NotContains(t, out, "\n  ")

	out, err = run(t, "show", path)
	require.NoError(t, err)
	assert.Contains(t, out, "\n  ")
}

func TestQueryAndFind(t *testing.T) {
	path := newMap(t)
	_, err := run(t, "insert", path, "--parent", "sheet[0].rootTopic", "--titles", "Budget,Hiring")
	require.NoError(t, err)

	out, err := run(t, "query", path, "$[0].rootTopic.children.attached[*].title")
	require.NoError(t, err)
	assert.JSONEq(t, `["Budget","Hiring"]`, out)

	out, err = run(t, "find", path, "--where", `depth == 1 && title startsWith "H"`, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Hiring"`)
	assert.NotContains(t, out, "Budget")

	_, err = run(t, "find", path, "--where", "title ==")
	assert.Equal(t, errs.KindInvalidExpression, errs.KindOf(err))
}

func TestExport(t *testing.T) {
	path := newMap(t)
	_, err := run(t, "insert", path, "--parent", "sheet[0].rootTopic", "--titles", "A,B")
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "plan.db")
	out, err := run(t, "export", path, dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 3 topics")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM topics WHERE depth = 1`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestMissingArchive(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	_, err := run(t, "sheets", filepath.Join(t.TempDir(), "absent.xmind"))
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	var stderr bytes.Buffer
	code := report(&stderr, err)
	assert.Equal(t, errs.KindNotFound.ExitCode(), code)
	assert.Contains(t, stderr.String(), "error [not_found]:")
}

func TestBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "xmindctl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: chatty\n"), 0o644))

	_, err := run(t, "--config", cfg, "sheets", "whatever.xmind")
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}
