// Package jointable materialises candidate tuples into the annotated
// join table: per-catalogue columns, pairwise separations, and the
// radius filter.
package jointable

import (
	"fmt"
	"math"
	"sort"

	"github.com/astrocross/nway/internal/candidate"
	"github.com/astrocross/nway/internal/catalogio"
	"github.com/astrocross/nway/internal/geodesic"
)

// Sentinel is written into numeric joined columns when a tuple slot is
// absent (-1). String columns get "" instead.
const Sentinel = -99.0

// CatalogueView is a resolved view of one input catalogue: its table
// plus cached RA/Dec arrays (resolved once via catalogio.FindColumn).
// RAName/DecName record which column each was resolved from, for
// output metadata (spec.md §6's COLS_RA/COLS_DEC header keys).
type CatalogueView struct {
	Name    string
	Table   catalogio.Table
	RA      []float64
	Dec     []float64
	RAName  string
	DecName string
}

// NewCatalogueView resolves the RA/DEC columns of t (case-insensitive,
// exact preferred over prefix) and caches them as plain float64 slices.
func NewCatalogueView(t catalogio.Table) (*CatalogueView, error) {
	raName, err := catalogio.FindColumn(t, "RA")
	if err != nil {
		return nil, fmt.Errorf("jointable: table %q: %w", t.Name(), err)
	}
	decName, err := catalogio.FindColumn(t, "DEC")
	if err != nil {
		return nil, fmt.Errorf("jointable: table %q: %w", t.Name(), err)
	}
	raCol, err := t.Column(raName)
	if err != nil {
		return nil, err
	}
	decCol, err := t.Column(decName)
	if err != nil {
		return nil, err
	}

	n := t.Len()
	ra := make([]float64, n)
	dec := make([]float64, n)
	for i := 0; i < n; i++ {
		ra[i] = raCol.Float(i)
		dec[i] = decCol.Float(i)
	}
	return &CatalogueView{Name: t.Name(), Table: t, RA: ra, Dec: dec, RAName: raName, DecName: decName}, nil
}

// Table is the materialised, filtered join table: one row per surviving
// candidate tuple.
type Table struct {
	Tuples        []candidate.Tuple
	ColumnOrder   []string
	Columns       map[string]catalogio.Column
	PairKeys      [][2]int // (i,j), i<j, in the order Separations columns were built
	Separations   map[[2]int][]float64
	SeparationMax []float64
	NCat          []int
	Names         []string // catalogue name per input index, for output column/header naming
}

// Assemble builds the join table from deduplicated candidate tuples
// (spec.md §4.4): copies per-catalogue columns (sentinel -99/"" for
// absent slots), computes pairwise separations in arcsec, and filters to
// rows with Separation_max < radiusDeg*3600.
func Assemble(views []*CatalogueView, tuples []candidate.Tuple, radiusDeg float64) (*Table, error) {
	n := len(views)
	rows := len(tuples)

	columns := make(map[string]catalogio.Column)
	var order []string
	for i, v := range views {
		names := v.Table.ColumnNames()
		for _, name := range names {
			src, err := v.Table.Column(name)
			if err != nil {
				return nil, err
			}
			key := fmt.Sprintf("%s_%s", v.Name, name)
			joined := joinColumn(src, tuples, i)
			columns[key] = joined
			order = append(order, key)
		}
	}

	separations := make(map[[2]int][]float64)
	var pairKeys [][2]int
	maxSep := make([]float64, rows)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			key := [2]int{i, j}
			pairKeys = append(pairKeys, key)
			sep := make([]float64, rows)
			for r, tup := range tuples {
				ei, ej := tup[i], tup[j]
				if ei == -1 || ej == -1 {
					sep[r] = math.NaN()
					continue
				}
				sep[r] = geodesic.AngularDistanceArcsec(
					geodesic.Point{RA: views[i].RA[ei], Dec: views[i].Dec[ei]},
					geodesic.Point{RA: views[j].RA[ej], Dec: views[j].Dec[ej]},
				)
			}
			separations[key] = sep
		}
	}

	ncat := make([]int, rows)
	for r, tup := range tuples {
		for _, e := range tup {
			if e != -1 {
				ncat[r]++
			}
		}
	}

	for r := 0; r < rows; r++ {
		m := 0.0
		for _, key := range pairKeys {
			s := separations[key][r]
			if !math.IsNaN(s) && s > m {
				m = s
			}
		}
		maxSep[r] = m
	}

	names := make([]string, n)
	for i, v := range views {
		names[i] = v.Name
	}

	jt := &Table{
		Tuples:        tuples,
		ColumnOrder:   order,
		Columns:       columns,
		PairKeys:      pairKeys,
		Separations:   separations,
		SeparationMax: maxSep,
		NCat:          ncat,
		Names:         names,
	}

	return filterByRadius(jt, radiusDeg*3600.0), nil
}

func joinColumn(src catalogio.Column, tuples []candidate.Tuple, catIdx int) catalogio.Column {
	n := len(tuples)
	switch src.Type {
	case catalogio.StringColumn:
		out := make([]string, n)
		for r, tup := range tuples {
			if e := tup[catIdx]; e != -1 {
				out[r] = src.Strings[e]
			}
		}
		return catalogio.Column{Name: src.Name, Type: catalogio.StringColumn, Strings: out}
	case catalogio.IntColumn:
		out := make([]int64, n)
		for r, tup := range tuples {
			if e := tup[catIdx]; e != -1 {
				out[r] = src.Ints[e]
			} else {
				out[r] = Sentinel
			}
		}
		return catalogio.Column{Name: src.Name, Type: catalogio.IntColumn, Ints: out}
	default:
		out := make([]float64, n)
		for r, tup := range tuples {
			if e := tup[catIdx]; e != -1 {
				out[r] = src.Floats[e]
			} else {
				out[r] = Sentinel
			}
		}
		return catalogio.Column{Name: src.Name, Type: catalogio.Float64Column, Floats: out}
	}
}

// filterByRadius keeps only rows with SeparationMax < thresholdArcsec,
// preserving row order (spec.md §5 ordering requirement (a)).
func filterByRadius(t *Table, thresholdArcsec float64) *Table {
	keep := make([]int, 0, len(t.Tuples))
	for r, m := range t.SeparationMax {
		if m < thresholdArcsec {
			keep = append(keep, r)
		}
	}
	return selectRows(t, keep)
}

// selectRows returns a new Table containing only the given row indices,
// in order.
func selectRows(t *Table, keep []int) *Table {
	out := &Table{
		ColumnOrder: t.ColumnOrder,
		PairKeys:    t.PairKeys,
		Columns:     make(map[string]catalogio.Column, len(t.Columns)),
		Separations: make(map[[2]int][]float64, len(t.Separations)),
		Names:       t.Names,
	}
	out.Tuples = make([]candidate.Tuple, len(keep))
	out.SeparationMax = make([]float64, len(keep))
	out.NCat = make([]int, len(keep))
	for newR, oldR := range keep {
		out.Tuples[newR] = t.Tuples[oldR]
		out.SeparationMax[newR] = t.SeparationMax[oldR]
		out.NCat[newR] = t.NCat[oldR]
	}
	for name, col := range t.Columns {
		out.Columns[name] = selectColumn(col, keep)
	}
	for key, sep := range t.Separations {
		newSep := make([]float64, len(keep))
		for newR, oldR := range keep {
			newSep[newR] = sep[oldR]
		}
		out.Separations[key] = newSep
	}
	return out
}

func selectColumn(c catalogio.Column, keep []int) catalogio.Column {
	switch c.Type {
	case catalogio.StringColumn:
		out := make([]string, len(keep))
		for i, r := range keep {
			out[i] = c.Strings[r]
		}
		return catalogio.Column{Name: c.Name, Type: catalogio.StringColumn, Strings: out}
	case catalogio.IntColumn:
		out := make([]int64, len(keep))
		for i, r := range keep {
			out[i] = c.Ints[r]
		}
		return catalogio.Column{Name: c.Name, Type: catalogio.IntColumn, Ints: out}
	default:
		out := make([]float64, len(keep))
		for i, r := range keep {
			out[i] = c.Floats[r]
		}
		return catalogio.Column{Name: c.Name, Type: catalogio.Float64Column, Floats: out}
	}
}

// Len returns the number of surviving rows.
func (t *Table) Len() int { return len(t.Tuples) }

// SortedPairKeys returns PairKeys in deterministic (i,j) order.
func (t *Table) SortedPairKeys() [][2]int {
	keys := append([][2]int(nil), t.PairKeys...)
	sort.Slice(keys, func(a, b int) bool {
		if keys[a][0] != keys[b][0] {
			return keys[a][0] < keys[b][0]
		}
		return keys[a][1] < keys[b][1]
	})
	return keys
}
