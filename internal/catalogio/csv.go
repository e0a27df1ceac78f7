package catalogio

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ReadCSV loads a Table from a CSV file. Header (key=value) lines are
// written as `# KEY=VALUE` comments before the column-name row; every
// other line is data. Column type is inferred from every non-empty cell
// of the column: all parse as int64 -> IntColumn (also the case for a
// column with no non-empty cell), else all parse as float64 ->
// Float64Column, else StringColumn.
// Empty cells become NaN (float), 0 (int), or "" (string); -99 is kept
// verbatim (the caller decides whether it's a sentinel).
func ReadCSV(path string) (*InMemoryTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalogio: open %q: %w", path, err)
	}
	defer f.Close()

	header := map[string]string{}

	var headerRow []string
	var rows [][]string
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalogio: parse %q: %w", path, err)
		}
		if len(line) > 0 && strings.HasPrefix(line[0], "#") {
			kv := strings.TrimPrefix(line[0], "#")
			kv = strings.TrimSpace(kv)
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				header[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}
			continue
		}
		if headerRow == nil {
			headerRow = line
			continue
		}
		rows = append(rows, line)
	}
	if headerRow == nil {
		return nil, fmt.Errorf("catalogio: %q has no column header row", path)
	}

	columns := make([]Column, len(headerRow))
	for ci, name := range headerRow {
		columns[ci] = inferColumn(name, rows, ci)
	}

	name := strings.TrimSuffix(baseName(path), ".csv")
	return NewInMemoryTable(name, columns, header), nil
}

func inferColumn(name string, rows [][]string, ci int) Column {
	isFloat := false
	isInt := true
	for _, row := range rows {
		if ci >= len(row) || row[ci] == "" {
			continue
		}
		if _, err := strconv.ParseInt(row[ci], 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(row[ci], 64); err == nil {
			isFloat = true
		} else {
			isFloat = false
			isInt = false
			break
		}
	}

	switch {
	case isInt:
		col := Column{Name: name, Type: IntColumn, Ints: make([]int64, len(rows))}
		for ri, row := range rows {
			if ci < len(row) && row[ci] != "" {
				v, _ := strconv.ParseInt(row[ci], 10, 64)
				col.Ints[ri] = v
			}
		}
		return col
	case isFloat:
		col := Column{Name: name, Type: Float64Column, Floats: make([]float64, len(rows))}
		for ri, row := range rows {
			if ci < len(row) && row[ci] != "" {
				v, _ := strconv.ParseFloat(row[ci], 64)
				col.Floats[ri] = v
			} else {
				col.Floats[ri] = math.NaN()
			}
		}
		return col
	default:
		col := Column{Name: name, Type: StringColumn, Strings: make([]string, len(rows))}
		for ri, row := range rows {
			if ci < len(row) {
				col.Strings[ri] = row[ci]
			}
		}
		return col
	}
}

// WriteCSV serialises a Table to path, writing header keys as `#
// KEY=VALUE` comment lines before the column header row.
func WriteCSV(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("catalogio: create %q: %w", path, err)
	}
	defer f.Close()

	for k, v := range t.Header() {
		if _, err := fmt.Fprintf(f, "# %s=%s\n", k, v); err != nil {
			return err
		}
	}

	names := t.ColumnNames()
	w := csv.NewWriter(f)
	if err := w.Write(names); err != nil {
		return err
	}

	n := t.Len()
	cols := make([]Column, len(names))
	for i, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return err
		}
		cols[i] = c
	}

	row := make([]string, len(names))
	for r := 0; r < n; r++ {
		for i, c := range cols {
			if c.Type == Float64Column && math.IsNaN(c.Floats[r]) {
				row[i] = ""
			} else {
				row[i] = c.String(r)
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func baseName(path string) string {
	i := strings.LastIndexAny(path, "/\\")
	return path[i+1:]
}
