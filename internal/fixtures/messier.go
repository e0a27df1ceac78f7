// Package fixtures provides small, real astronomical catalogue data for
// integration tests: a curated slice of the Messier catalogue, usable
// directly as one of xmatch's input catalogues via ToTable.
package fixtures

import (
	"fmt"

	"github.com/astrocross/nway/internal/catalogio"
)

// MessierObject is one entry of the curated Messier subset below.
type MessierObject struct {
	ID   string
	Name string
	RA   float64
	Dec  float64
	VMag float64
	Type string
}

// Messier is a curated subset of the 110-object Messier catalogue,
// covering a spread of object types and magnitudes; enough to exercise
// a real cross-match without embedding the whole catalogue.
var Messier = []MessierObject{
	{ID: "M1", Name: "Crab Nebula", RA: 83.6331, Dec: 22.0145, VMag: 8.4, Type: "supernova remnant"},
	{ID: "M13", Name: "Hercules Cluster", RA: 250.4235, Dec: 36.4613, VMag: 5.8, Type: "globular cluster"},
	{ID: "M27", Name: "Dumbbell Nebula", RA: 299.9013, Dec: 22.7211, VMag: 7.5, Type: "planetary nebula"},
	{ID: "M31", Name: "Andromeda Galaxy", RA: 10.6847, Dec: 41.2687, VMag: 3.4, Type: "galaxy"},
	{ID: "M42", Name: "Orion Nebula", RA: 83.8221, Dec: -5.3911, VMag: 4.0, Type: "diffuse nebula"},
	{ID: "M45", Name: "Pleiades", RA: 56.75, Dec: 24.1167, VMag: 1.6, Type: "open cluster"},
	{ID: "M57", Name: "Ring Nebula", RA: 283.3961, Dec: 33.0291, VMag: 8.8, Type: "planetary nebula"},
	{ID: "M81", Name: "Bode's Galaxy", RA: 148.8882, Dec: 69.0653, VMag: 6.9, Type: "galaxy"},
	{ID: "M104", Name: "Sombrero Galaxy", RA: 189.9977, Dec: -11.6231, VMag: 8.0, Type: "galaxy"},
	{ID: "M110", Name: "NGC 205", RA: 10.0921, Dec: 41.685, VMag: 8.5, Type: "galaxy"},
}

// ToTable renders Messier as a catalogio.Table usable directly as an
// xmatch input catalogue, with the given sky area (square degrees)
// recorded in its header.
func ToTable(skyAreaSqDeg float64) *catalogio.InMemoryTable {
	n := len(Messier)
	ra := make([]float64, n)
	dec := make([]float64, n)
	vmag := make([]float64, n)
	id := make([]string, n)
	name := make([]string, n)
	objType := make([]string, n)

	for i, m := range Messier {
		ra[i] = m.RA
		dec[i] = m.Dec
		vmag[i] = m.VMag
		id[i] = m.ID
		name[i] = m.Name
		objType[i] = m.Type
	}

	cols := []catalogio.Column{
		{Name: "ID", Type: catalogio.StringColumn, Strings: id},
		{Name: "NAME", Type: catalogio.StringColumn, Strings: name},
		{Name: "RA", Type: catalogio.Float64Column, Floats: ra},
		{Name: "DEC", Type: catalogio.Float64Column, Floats: dec},
		{Name: "VMAG", Type: catalogio.Float64Column, Floats: vmag},
		{Name: "TYPE", Type: catalogio.StringColumn, Strings: objType},
	}
	header := map[string]string{"SKYAREA": fmt.Sprintf("%g", skyAreaSqDeg)}
	return catalogio.NewInMemoryTable("messier", cols, header)
}
