package compute

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

const (
	MetadataMatrixRoutine = "metadata_matrix"

	// previewEdge is how many leading and trailing rows (and columns) a
	// matrix preview keeps.
	previewEdge = 5
)

var ErrInvalidMatrix = errors.New("invalid metadata matrix")

// MetadataMatrix loads a delimited file and returns the file descriptor merged
// with a preview of its contents. The first row holds the column labels and
// the first column the row labels.
func MetadataMatrix(ctx context.Context, call Call) (any, error) {
	arg, ok := call.Arg(0, "file")
	if !ok {
		return nil, fmt.Errorf("%w: missing file argument", ErrInvalidMatrix)
	}
	file, ok := arg.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: file argument must be an object, got %T", ErrInvalidMatrix, arg)
	}
	location, _ := file["url"].(string)
	if location == "" {
		return nil, fmt.Errorf("%w: file has no url", ErrInvalidMatrix)
	}
	filename, _ := file["filename"].(string)
	if filename == "" {
		filename = path.Base(location)
	}

	call.Notify(fmt.Sprintf("Loading %s", filename))
	body, err := openLocation(ctx, location)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var r io.Reader = body
	if strings.HasSuffix(strings.ToLower(filename), ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMatrix, filename, err)
		}
		defer gz.Close()
		r = gz
	}

	header, rows, err := readMatrix(r, delimiterFor(filename))
	if err != nil {
		return nil, err
	}
	call.Notify(fmt.Sprintf("Read %d rows and %d columns", len(rows), len(header)))

	out := make(map[string]any, len(file)+5)
	for k, v := range file {
		out[k] = v
	}
	out["url"] = location
	out["filename"] = filename

	rowIdx, rowEllipsis := previewIndices(len(rows))
	colIdx, colEllipsis := previewIndices(len(header))

	columns := make([]string, len(colIdx))
	for i, c := range colIdx {
		columns[i] = header[c]
	}
	index := make([]string, len(rowIdx))
	values := make([][]string, len(rowIdx))
	for i, r := range rowIdx {
		index[i] = rows[r].label
		values[i] = make([]string, len(colIdx))
		for j, c := range colIdx {
			if c < len(rows[r].cells) {
				values[i][j] = rows[r].cells[c]
			}
		}
	}

	out["shape"] = []int{len(rows), len(header)}
	out["columns"] = columns
	out["index"] = index
	out["values"] = values
	out["ellipses"] = []any{rowEllipsis, colEllipsis}
	return out, nil
}

type matrixRow struct {
	label string
	cells []string
}

func readMatrix(r io.Reader, delim rune) ([]string, []matrixRow, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: file is empty", ErrInvalidMatrix)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
	}
	if len(head) < 2 {
		return nil, nil, fmt.Errorf("%w: expected an index column and at least one data column", ErrInvalidMatrix)
	}

	var rows []matrixRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}
		rows = append(rows, matrixRow{label: record[0], cells: record[1:]})
	}
	return head[1:], rows, nil
}

// previewIndices keeps every index when n is small, otherwise the first and
// last previewEdge indices. The ellipsis position is where the gap sits in
// the preview, or nil when there is no gap.
func previewIndices(n int) ([]int, any) {
	if n <= 2*previewEdge {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, 0, 2*previewEdge)
	for i := 0; i < previewEdge; i++ {
		out = append(out, i)
	}
	for i := n - previewEdge; i < n; i++ {
		out = append(out, i)
	}
	return out, previewEdge
}

func delimiterFor(filename string) rune {
	name := strings.ToLower(filename)
	name = strings.TrimSuffix(name, ".gz")
	switch path.Ext(name) {
	case ".tsv", ".txt", ".tab":
		return '\t'
	default:
		return ','
	}
}

func openLocation(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return os.Open(location)
	}
	switch u.Scheme {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("compute: fetching %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("compute: fetching %s: unexpected status %s", location, resp.Status)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("%w: unsupported url scheme %q", ErrInvalidMatrix, u.Scheme)
	}
}
