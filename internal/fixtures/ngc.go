package fixtures

import (
	"fmt"

	"github.com/astrocross/nway/internal/catalogio"
)

// NGCAliasEntry is one NGC-catalogue entry paired with the Messier object it
// is a well-known alias for (empty MessierID means "no known Messier
// counterpart", a deliberate non-match fixture). Positions carry a
// small synthetic offset from the Messier entry so cross-matching finds
// a close, non-identical pair rather than a coordinate-for-coordinate
// duplicate.
type NGCAliasEntry struct {
	ID        string
	MessierID string
	RAOffset  float64 // arcsec
	DecOffset float64 // arcsec
	VMag      float64
}

// NGCAliases pairs five Messier objects with their NGC designations
// (small positional offsets, as real cross-catalogue astrometry always
// has) plus two NGC objects with no Messier counterpart at all.
var NGCAliases = []NGCAliasEntry{
	{ID: "NGC 1952", MessierID: "M1", RAOffset: 0.4, DecOffset: -0.2, VMag: 8.4},
	{ID: "NGC 6205", MessierID: "M13", RAOffset: -0.3, DecOffset: 0.5, VMag: 5.9},
	{ID: "NGC 6720", MessierID: "M57", RAOffset: 0.2, DecOffset: 0.1, VMag: 8.8},
	{ID: "NGC 224", MessierID: "M31", RAOffset: -0.1, DecOffset: -0.3, VMag: 3.4},
	{ID: "NGC 1976", MessierID: "M42", RAOffset: 0.5, DecOffset: 0.4, VMag: 4.0},
	{ID: "NGC 7000", MessierID: "", RAOffset: 0, DecOffset: 0, VMag: 4.6},
	{ID: "NGC 2024", MessierID: "", RAOffset: 0, DecOffset: 0, VMag: 7.7},
}

// messierByID indexes Messier for offset lookups.
func messierByID(id string) (MessierObject, bool) {
	for _, m := range Messier {
		if m.ID == id {
			return m, true
		}
	}
	return MessierObject{}, false
}

// ToNGCTable renders NGCAliases as a catalogio.Table: entries with a
// MessierID get a position offset from that Messier object, entries
// without one get a fixed standalone position far from any Messier
// entry above.
func ToNGCTable(skyAreaSqDeg float64) *catalogio.InMemoryTable {
	n := len(NGCAliases)
	ra := make([]float64, n)
	dec := make([]float64, n)
	vmag := make([]float64, n)
	id := make([]string, n)

	standaloneRA := 200.0
	for i, e := range NGCAliases {
		id[i] = e.ID
		vmag[i] = e.VMag
		if m, ok := messierByID(e.MessierID); ok {
			ra[i] = m.RA + e.RAOffset/3600.0
			dec[i] = m.Dec + e.DecOffset/3600.0
		} else {
			ra[i] = standaloneRA
			dec[i] = 0.0
			standaloneRA += 10.0
		}
	}

	cols := []catalogio.Column{
		{Name: "ID", Type: catalogio.StringColumn, Strings: id},
		{Name: "RA", Type: catalogio.Float64Column, Floats: ra},
		{Name: "DEC", Type: catalogio.Float64Column, Floats: dec},
		{Name: "VMAG", Type: catalogio.Float64Column, Floats: vmag},
	}
	header := map[string]string{"SKYAREA": fmt.Sprintf("%g", skyAreaSqDeg)}
	return catalogio.NewInMemoryTable("ngc", cols, header)
}
