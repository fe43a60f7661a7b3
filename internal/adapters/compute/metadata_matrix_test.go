package compute

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eleven-am/playbook/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMatrix(t *testing.T, name string, rows, cols int, sep string) string {
	t.Helper()
	var b strings.Builder
	header := []string{"sample"}
	for c := 0; c < cols; c++ {
		header = append(header, fmt.Sprintf("c%d", c))
	}
	b.WriteString(strings.Join(header, sep) + "\n")
	for r := 0; r < rows; r++ {
		row := []string{fmt.Sprintf("s%d", r)}
		for c := 0; c < cols; c++ {
			row = append(row, fmt.Sprintf("%d.%d", r, c))
		}
		b.WriteString(strings.Join(row, sep) + "\n")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func runMatrix(t *testing.T, file map[string]any) (map[string]any, []string) {
	t.Helper()
	var notes []string
	out, err := MetadataMatrix(context.Background(), Call{
		Args:   []any{file},
		Notify: func(m string) { notes = append(notes, m) },
	})
	require.NoError(t, err)
	return out.(map[string]any), notes
}

func TestMetadataMatrix_SmallFileKeepsEverything(t *testing.T) {
	path := writeMatrix(t, "meta.csv", 3, 2, ",")

	out, notes := runMatrix(t, map[string]any{"url": path, "description": "sample classes"})

	assert.Equal(t, path, out["url"])
	assert.Equal(t, "meta.csv", out["filename"])
	assert.Equal(t, "sample classes", out["description"])
	assert.Equal(t, []int{3, 2}, out["shape"])
	assert.Equal(t, []string{"c0", "c1"}, out["columns"])
	assert.Equal(t, []string{"s0", "s1", "s2"}, out["index"])
	assert.Equal(t, [][]string{{"0.0", "0.1"}, {"1.0", "1.1"}, {"2.0", "2.1"}}, out["values"])
	assert.Equal(t, []any{nil, nil}, out["ellipses"])
	assert.Equal(t, []string{"Loading meta.csv", "Read 3 rows and 2 columns"}, notes)
}

func TestMetadataMatrix_LargeFileIsPreviewed(t *testing.T) {
	path := writeMatrix(t, "meta.tsv", 20, 12, "\t")

	out, _ := runMatrix(t, map[string]any{"url": "file://" + path, "filename": "meta.tsv"})

	assert.Equal(t, []int{20, 12}, out["shape"])
	assert.Equal(t, []string{"s0", "s1", "s2", "s3", "s4", "s15", "s16", "s17", "s18", "s19"}, out["index"])
	columns := out["columns"].([]string)
	assert.Equal(t, []string{"c0", "c1", "c2", "c3", "c4", "c7", "c8", "c9", "c10", "c11"}, columns)
	values := out["values"].([][]string)
	require.Len(t, values, 10)
	assert.Equal(t, "15.7", values[5][5])
	assert.Equal(t, []any{5, 5}, out["ellipses"])
}

func TestMetadataMatrix_GzippedFile(t *testing.T) {
	plain, err := os.ReadFile(writeMatrix(t, "meta.tsv", 3, 2, "\t"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "meta.tsv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write(plain)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	out, _ := runMatrix(t, map[string]any{"url": path})

	assert.Equal(t, "meta.tsv.gz", out["filename"])
	assert.Equal(t, []int{3, 2}, out["shape"])
	assert.Equal(t, []string{"c0", "c1"}, out["columns"])
	assert.Equal(t, [][]string{{"0.0", "0.1"}, {"1.0", "1.1"}, {"2.0", "2.1"}}, out["values"])
}

func TestMetadataMatrix_CorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.csv.gz")
	require.NoError(t, os.WriteFile(path, []byte("sample,c0\ns0,1\n"), 0o644))

	_, err := MetadataMatrix(context.Background(), Call{
		Args:   []any{map[string]any{"url": path}},
		Notify: func(string) {},
	})
	assert.ErrorIs(t, err, ErrInvalidMatrix)
}

func TestMetadataMatrix_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meta.csv" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "id,class\na,control\nb,treated\n")
	}))
	defer srv.Close()

	out, _ := runMatrix(t, map[string]any{"url": srv.URL + "/meta.csv"})
	assert.Equal(t, []string{"class"}, out["columns"])
	assert.Equal(t, [][]string{{"control"}, {"treated"}}, out["values"])

	_, err := MetadataMatrix(context.Background(), Call{
		Args:   []any{map[string]any{"url": srv.URL + "/missing.csv"}},
		Notify: func(string) {},
	})
	assert.Error(t, err)
}

func TestMetadataMatrix_InvalidInput(t *testing.T) {
	single := writeMatrix(t, "single.csv", 2, 0, ",")
	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name string
		call Call
	}{
		{name: "no argument", call: Call{}},
		{name: "not an object", call: Call{Args: []any{"meta.csv"}}},
		{name: "no url", call: Call{Args: []any{map[string]any{"filename": "x.csv"}}}},
		{name: "single column", call: Call{Args: []any{map[string]any{"url": single}}}},
		{name: "empty file", call: Call{Args: []any{map[string]any{"url": empty}}}},
		{name: "unsupported scheme", call: Call{Args: []any{map[string]any{"url": "s3://bucket/meta.csv"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.call.Notify = func(string) {}
			_, err := MetadataMatrix(context.Background(), tt.call)
			assert.ErrorIs(t, err, ErrInvalidMatrix)
		})
	}
}

func TestMetadataMatrix_ThroughLocalPort(t *testing.T) {
	path := writeMatrix(t, "meta.csv", 1, 1, ",")
	local := NewLocal(DefaultRoutines(), testLogger())

	raw, err := local.Compute(context.Background(), requestFor(path), nil)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ellipses":[null,null]`)
	assert.Contains(t, string(raw), `"shape":[1,1]`)
}

func requestFor(path string) ports.ComputeRequest {
	return ports.ComputeRequest{
		Routine: MetadataMatrixRoutine,
		Args:    []any{map[string]any{"url": path}},
	}
}
