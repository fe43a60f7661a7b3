package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eleven-am/playbook"
	"github.com/eleven-am/playbook/internal/xjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ace2Playbook = `
metadata:
  title: ACE2 as a set
steps:
  - id: gene
    type: Input[Gene]
    data: ACE2
  - id: set
    type: GeneSetFromTerm
    inputs:
      gene: gene
`

func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--data-dir", dataDir, "--storage", "sqlite", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writePlaybook(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ace2.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ace2Playbook), 0o644))
	return path
}

func TestCatalogCmd(t *testing.T) {
	out, err := execute(t, t.TempDir(), "catalog", "--kind", "data")
	require.NoError(t, err)

	var views []nodeView
	require.NoError(t, xjson.Unmarshal([]byte(out), &views))
	specs := make([]string, len(views))
	for i, v := range views {
		specs[i] = v.Spec
		assert.Equal(t, "data", string(v.Kind))
	}
	assert.Contains(t, specs, "Term[Gene]")
	assert.Contains(t, specs, "Set[Gene]")

	out, err = execute(t, t.TempDir(), "catalog", "--tag", "Cardinality")
	require.NoError(t, err)
	require.NoError(t, xjson.Unmarshal([]byte(out), &views))
	require.NotEmpty(t, views)
	for _, v := range views {
		assert.Equal(t, "process", string(v.Kind))
		assert.Contains(t, v.Tags, "Cardinality")
	}
}

func TestRunShowExport(t *testing.T) {
	dir := t.TempDir()
	path := writePlaybook(t, dir)

	out, err := execute(t, dir, "run", path)
	require.NoError(t, err)

	var result runResult
	require.NoError(t, xjson.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.ChainID)
	assert.Equal(t, "ACE2", result.Outputs["gene"])
	assert.Equal(t, map[string]any{"set": []any{"ACE2"}}, result.Outputs["set"])
	assert.Empty(t, result.Errors)

	out, err = execute(t, dir, "show", result.ChainID)
	require.NoError(t, err)
	pb, err := playbook.LoadPlaybook(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, pb.Steps, 2)
	assert.Equal(t, "GeneSetFromTerm", pb.Steps[1].Type)

	out, err = execute(t, dir, "export", result.ChainID, "--execute", "--publish",
		"--title", "From the CLI", "--author-name", "Alice Example")
	require.NoError(t, err)

	var doc playbook.BCO
	require.NoError(t, xjson.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "From the CLI", doc.ProvenanceDomain.Name)
	assert.Equal(t, "Alice Example", doc.ProvenanceDomain.Contributors[0].Name)
	assert.NotEmpty(t, doc.ObjectID)

	out, err = execute(t, dir, "bco", "list")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, xjson.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{doc.ObjectID}, ids)

	out, err = execute(t, dir, "bco", "get", doc.ObjectID)
	require.NoError(t, err)
	var stored playbook.BCO
	require.NoError(t, xjson.Unmarshal([]byte(out), &stored))
	assert.Equal(t, doc.ETag, stored.ETag)
}

func TestExportFromFileUsesPlaybookMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writePlaybook(t, dir)

	out, err := execute(t, dir, "export", path)
	require.NoError(t, err)

	var doc playbook.BCO
	require.NoError(t, xjson.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "ACE2 as a set", doc.ProvenanceDomain.Name)
	assert.Empty(t, doc.ObjectID)
}

func TestExportFlagsOverlayPlaybookMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "described.yaml")
	doc := strings.Replace(ace2Playbook, "  title: ACE2 as a set\n",
		"  title: ACE2 as a set\n  description: Curated ACE2 story.\n", 1)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, dir, "export", path, "--title", "Renamed")
	require.NoError(t, err)

	var exported playbook.BCO
	require.NoError(t, xjson.Unmarshal([]byte(out), &exported))
	assert.Equal(t, "Renamed", exported.ProvenanceDomain.Name)
	require.Len(t, exported.UsabilityDomain, 1)
	assert.Equal(t, "Curated ACE2 story.", exported.UsabilityDomain[0])
}

func TestOverlay(t *testing.T) {
	base := &playbook.ExportMetadata{Title: "Original", Description: "Kept"}

	merged, err := overlay(base, playbook.ExportMetadata{Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, &playbook.ExportMetadata{Title: "New", Description: "Kept"}, merged)
	assert.Equal(t, "Original", base.Title)

	merged, err = overlay[playbook.ExportMetadata](nil, playbook.ExportMetadata{})
	require.NoError(t, err)
	assert.Equal(t, &playbook.ExportMetadata{}, merged)
}

func TestShowUnknownChain(t *testing.T) {
	_, err := execute(t, t.TempDir(), "show", "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, playbook.ErrNotFound)
}

func TestWorkerExec(t *testing.T) {
	dir := t.TempDir()
	matrix := filepath.Join(dir, "meta.csv")
	require.NoError(t, os.WriteFile(matrix, []byte("id,age\ns1,30\ns2,41\n"), 0o644))

	request := `{"routine":"metadata_matrix","args":[{"url":"` + matrix + `","filename":"meta.csv"}]}` + "\n"

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetIn(strings.NewReader(request))
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--data-dir", dir, "worker", "exec"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), `"type":"result"`)
	assert.Contains(t, out.String(), `"shape":[2,1]`)
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := execute(t, t.TempDir(), "--log-format", "xml", "catalog")
	assert.Error(t, err)
}
