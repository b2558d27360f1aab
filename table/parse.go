package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nevindra/docmind"
	"github.com/xuri/excelize/v2"
)

// Format identifies a tabular upload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatOf maps a filename to its tabular format. Unsupported extensions
// return an error wrapping docmind.ErrUnsupportedFormat.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", docmind.ErrUnsupportedFormat, filename)
}

// Parse reads a tabular document. The first CSV row / first sheet row is the
// header; JSON input must be an array of objects.
func Parse(filename string, content []byte) (*Table, error) {
	f, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatCSV:
		return ParseCSV(content)
	case FormatXLSX:
		return ParseXLSX(content)
	default:
		return ParseJSON(content)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV parses comma-separated content with a header row.
func ParseCSV(content []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromGrid(records)
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(content []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromGrid(rows)
}

func fromGrid(grid [][]string) (*Table, error) {
	if len(grid) == 0 {
		return nil, errors.New("no columns to parse from file")
	}
	header := normalizeHeader(grid[0])
	if len(header) == 0 {
		return nil, errors.New("no columns to parse from file")
	}
	return New(header, grid[1:]), nil
}

// normalizeHeader names blank headers "Unnamed: i" and suffixes duplicates
// with ".1", ".2", ... so every column is addressable.
func normalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

// ParseJSON reads an array of flat objects. Columns appear in the order keys
// are first seen; missing keys become empty cells.
func ParseJSON(content []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, errors.New("parse json: expected an array of objects")
	}

	var columns []string
	index := map[string]int{}
	var rows []map[string]string

	for dec.More() {
		row, keys, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if len(columns) == 0 {
		return nil, errors.New("no columns to parse from file")
	}

	grid := make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(columns))
		for k, v := range r {
			cells[index[k]] = v
		}
		grid[i] = cells
	}
	return New(columns, grid), nil
}

// decodeObject reads one object, keeping key order. Nested values are kept
// as their compact JSON text.
func decodeObject(dec *json.Decoder) (map[string]string, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("parse json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("parse json: array elements must be objects")
	}
	row := map[string]string{}
	var keys []string
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("parse json: %w", err)
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("parse json: %w", err)
		}
		row[key] = cellText(raw)
		keys = append(keys, key)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("parse json: %w", err)
	}
	return row, keys, nil
}

func cellText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		return buf.String()
	}
	return string(trimmed)
}
