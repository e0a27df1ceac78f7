// Package xmatch orchestrates the full cross-identification pipeline:
// hash-grid indexing, candidate enumeration, join-table assembly,
// Bayesian scoring, optional magnitude weighting, and per-primary-group
// flagging, in that order (spec.md §2).
package xmatch

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/astrocross/nway/internal/bayes"
	"github.com/astrocross/nway/internal/candidate"
	"github.com/astrocross/nway/internal/catalogio"
	"github.com/astrocross/nway/internal/eventbus"
	"github.com/astrocross/nway/internal/grouping"
	"github.com/astrocross/nway/internal/hashgrid"
	"github.com/astrocross/nway/internal/jointable"
	"github.com/astrocross/nway/internal/magnitude"
	"github.com/astrocross/nway/internal/progress"
	"github.com/astrocross/nway/internal/xconfig"
)

// ln10 converts the magnitude package's log10 weights into the natural
// log units the Bayes factor is expressed in.
const ln10 = 2.302585092994046

// Pipeline runs one cross-match job end to end.
type Pipeline struct {
	Config   xconfig.Config
	Bus      eventbus.EventBus
	Progress *progress.Reporter
}

// NewPipeline builds a Pipeline. bus and reporter may be nil; a nil bus
// disables progress events, a nil reporter disables stderr output.
func NewPipeline(cfg xconfig.Config, bus eventbus.EventBus, reporter *progress.Reporter) *Pipeline {
	return &Pipeline{Config: cfg, Bus: bus, Progress: reporter}
}

// Result is the fully scored, flagged output of a run, row-aligned with
// the surviving jointable.Table. Score holds the astrometry-only
// evidence (BF/Prior/BFPost, spec.md §6's `bf`/`bfpost`), untouched by
// any magnitude weighting; Total and Post fold in the magnitude
// contribution (spec.md §4.6's "total" and the final `post`), so both
// the astrometry-only and final posteriors survive side by side
// (testable property 10).
type Result struct {
	Joined  *jointable.Table
	Score   *bayes.Result
	Total   []float64            // BF plus every configured magnitude's natural-log weight
	Post    []float64            // posterior recomputed from Total, spec.md's "post"
	MagBias map[string][]float64 // keyed "<tablename>_<column>", linear bias = 10^w
	Group   *grouping.GroupResult
	Meta    ResultMeta
}

// ResultMeta carries the per-run descriptive metadata spec.md §6
// requires in the output header (COL_PRIM, COLS_ERR, COLS_RA, COLS_DEC,
// METHOD, TABLES, BIASING), gathered once in Run so WriteResultCSV
// doesn't need the original tables or config to render it.
type ResultMeta struct {
	Tables      []string  // catalogue name per input index, primary first
	RAColumns   []string  // resolved RA column name per catalogue
	DecColumns  []string  // resolved DEC column name per catalogue
	PositionErr []float64 // configured position error (arcsec) per catalogue
	Method      string
	BiasKeys    []string // sorted keys of MagBias, for the BIASING header
}

// Run executes the pipeline over tables (index-aligned with
// Config.Catalogues, index 0 is the primary catalogue), reporting
// progress through p.Bus/p.Progress as it goes.
func (p *Pipeline) Run(ctx context.Context, jobID string, tables []catalogio.Table) (*Result, error) {
	n := len(tables)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 catalogues, got %d", ErrConfiguration, n)
	}
	if len(p.Config.Catalogues) != n {
		return nil, fmt.Errorf("%w: configured %d catalogues but %d tables given", ErrConfiguration, len(p.Config.Catalogues), n)
	}

	views, err := p.buildViews(tables)
	if err != nil {
		return nil, err
	}

	p.report(ctx, jobID, "index", 0, n, false, nil)
	radiusDeg := p.Config.RadiusArcsec / 3600.0
	idx := hashgrid.New(radiusDeg, n, p.Config.WrapRA)
	for i, v := range views {
		for r := 0; r < tables[i].Len(); r++ {
			idx.Add(i, v.RA[r], v.Dec[r], r)
		}
		p.report(ctx, jobID, "index", i+1, n, false, nil)
	}
	p.report(ctx, jobID, "index", n, n, true, nil)

	p.report(ctx, jobID, "candidate", 0, 1, false, nil)
	tuples := candidate.Enumerate(idx, n)
	if len(tuples) == 0 {
		err := fmt.Errorf("%w: no candidate tuples within radius", ErrNoMatches)
		p.report(ctx, jobID, "candidate", 0, 1, true, err)
		return nil, err
	}
	p.report(ctx, jobID, "candidate", 1, 1, true, nil)

	p.report(ctx, jobID, "jointable", 0, 1, false, nil)
	jt, err := jointable.Assemble(views, tuples, radiusDeg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if jt.Len() == 0 {
		err := fmt.Errorf("%w: no tuples survived the radius filter", ErrNoMatches)
		p.report(ctx, jobID, "jointable", 0, 1, true, err)
		return nil, err
	}
	p.report(ctx, jobID, "jointable", 1, 1, true, nil)

	params, err := p.catalogueParams(tables)
	if err != nil {
		return nil, err
	}

	p.report(ctx, jobID, "bayes", 0, 1, false, nil)
	scored, err := bayes.Score(ctx, jt, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumeric, err)
	}
	p.report(ctx, jobID, "bayes", 1, 1, true, nil)

	total := append([]float64(nil), scored.LogBF...)
	magBias := make(map[string][]float64, len(p.Config.Magnitudes))
	if len(p.Config.Magnitudes) > 0 {
		p.report(ctx, jobID, "magnitude", 0, len(p.Config.Magnitudes), false, nil)
		for i, entry := range p.Config.Magnitudes {
			joinedKey, w, err := p.applyMagnitudeWeight(tables, jt, scored, entry)
			if err != nil {
				return nil, err
			}
			bias := make([]float64, len(w))
			for r, wv := range w {
				bias[r] = math.Pow(10, wv)
				total[r] += wv * ln10
			}
			magBias[joinedKey] = bias
			p.report(ctx, jobID, "magnitude", i+1, len(p.Config.Magnitudes), false, nil)
		}
		p.report(ctx, jobID, "magnitude", len(p.Config.Magnitudes), len(p.Config.Magnitudes), true, nil)
	}

	post := make([]float64, jt.Len())
	for r := range total {
		post[r] = bayes.Posterior(scored.Prior[r], total[r])
	}

	noMatchPrior, err := bayes.NoMatchPrior(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumeric, err)
	}

	rows := make([]grouping.Row, jt.Len())
	for r, tup := range jt.Tuples {
		rows[r] = grouping.Row{PrimaryRow: tup[0], Total: total[r], Post: post[r]}
	}
	p.report(ctx, jobID, "grouping", 0, 1, false, nil)
	group := grouping.Group(rows, noMatchPrior, p.Config.AcceptableProb)
	p.report(ctx, jobID, "grouping", 1, 1, true, nil)

	biasKeys := make([]string, 0, len(magBias))
	for k := range magBias {
		biasKeys = append(biasKeys, k)
	}
	sort.Strings(biasKeys)

	meta := ResultMeta{
		Tables:      make([]string, n),
		RAColumns:   make([]string, n),
		DecColumns:  make([]string, n),
		PositionErr: make([]float64, n),
		Method:      "nway",
		BiasKeys:    biasKeys,
	}
	for i, v := range views {
		meta.Tables[i] = v.Name
		meta.RAColumns[i] = v.RAName
		meta.DecColumns[i] = v.DecName
		meta.PositionErr[i] = p.Config.Catalogues[i].PositionErr
	}

	return &Result{Joined: jt, Score: scored, Total: total, Post: post, MagBias: magBias, Group: group, Meta: meta}, nil
}

func (p *Pipeline) buildViews(tables []catalogio.Table) ([]*jointable.CatalogueView, error) {
	views := make([]*jointable.CatalogueView, len(tables))
	for i, t := range tables {
		if _, err := catalogio.SkyArea(t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		v, err := jointable.NewCatalogueView(t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		views[i] = v
	}
	return views, nil
}

// areaTotal is the full-sky solid angle 4*pi steradians converted to
// square degrees (4*pi*(180/pi)^2, spec.md §3), the constant both rho
// and rhoPlus are scaled by so they read as "expected source count over
// the whole sky" rather than a bare per-square-degree density.
const areaTotal = 4 * math.Pi * (180 / math.Pi) * (180 / math.Pi)

// catalogueParams derives bayes.CatalogueParams from the configured
// per-catalogue positional errors and each table's own declared sky
// area: source density rho_i = N_i/A_i*areaTotal, and the distinct
// inflated density rhoPlus_i = (N_i+1)/A_i*areaTotal spec.md §3
// requires. A positive rho_plus in the catalogue's config replaces the
// derived rhoPlus_i; rho_i is always derived.
func (p *Pipeline) catalogueParams(tables []catalogio.Table) (bayes.CatalogueParams, error) {
	n := len(tables)
	sigma := make([]float64, n)
	rho := make([]float64, n-1)
	rhoPlus := make([]float64, n-1)

	for i, t := range tables {
		sigma[i] = p.Config.Catalogues[i].PositionErr
		if sigma[i] <= 0 {
			return bayes.CatalogueParams{}, fmt.Errorf("%w: catalogue %q has non-positive position error", ErrConfiguration, t.Name())
		}
	}

	if _, err := catalogio.SkyArea(tables[0]); err != nil {
		return bayes.CatalogueParams{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	for i := 1; i < n; i++ {
		area, err := catalogio.SkyArea(tables[i])
		if err != nil {
			return bayes.CatalogueParams{}, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		if area <= 0 {
			return bayes.CatalogueParams{}, fmt.Errorf("%w: catalogue %q has non-positive sky area", ErrNumeric, tables[i].Name())
		}
		rowCount := float64(tables[i].Len())
		rho[i-1] = rowCount / area * areaTotal
		if cfgRhoPlus := p.Config.Catalogues[i].RhoPlus; cfgRhoPlus > 0 {
			rhoPlus[i-1] = cfgRhoPlus
		} else {
			rhoPlus[i-1] = (rowCount + 1) / area * areaTotal
		}
	}

	return bayes.CatalogueParams{
		SigmaArcsec: sigma,
		Rho0:        p.Config.PriorCompleteness,
		Rho:         rho,
		RhoPlus:     rhoPlus,
	}, nil
}

// applyMagnitudeWeight builds one magnitude histogram (selected sample:
// magnitudes of candidate rows whose positional-only BFPost already
// exceeds 0.5; others: the full source catalogue's own magnitude
// column, standing in for the field/background distribution) and
// returns its per-row log10 weight (spec.md §4.6's w), alongside the
// joined column key ("<tablename>_<column>") it was computed against.
func (p *Pipeline) applyMagnitudeWeight(tables []catalogio.Table, jt *jointable.Table, scored *bayes.Result, entry xconfig.MagnitudeEntry) (string, []float64, error) {
	catIdx := -1
	for i, c := range p.Config.Catalogues {
		if c.Name == entry.Catalogue {
			catIdx = i
			break
		}
	}
	if catIdx < 0 {
		return "", nil, fmt.Errorf("%w: magnitude entry references unknown catalogue %q", ErrConfiguration, entry.Catalogue)
	}

	colName, err := catalogio.FindColumn(tables[catIdx], entry.Column)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	sourceCol, err := tables[catIdx].Column(colName)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	joinedKey := fmt.Sprintf("%s_%s", tables[catIdx].Name(), colName)
	joinedCol, ok := jt.Columns[joinedKey]
	if !ok {
		return "", nil, fmt.Errorf("%w: joined column %q not found", ErrSchema, joinedKey)
	}

	w := make([]float64, jt.Len())

	var hist *magnitude.Histogram
	if entry.HistogramFile != "" {
		h, err := loadHistogramFile(entry.HistogramFile)
		if err != nil {
			return "", nil, fmt.Errorf("%w: loading histogram file %q: %v", ErrConfiguration, entry.HistogramFile, err)
		}
		hist = h
	} else {
		var selected []float64
		others := make([]float64, sourceCol.Len())
		for i := 0; i < sourceCol.Len(); i++ {
			others[i] = sourceCol.Float(i)
		}
		for r := 0; r < jt.Len(); r++ {
			if scored.BFPost[r] > 0.5 {
				selected = append(selected, joinedCol.Float(r))
			}
		}
		if len(selected) == 0 {
			// no positionally-confident rows yet to learn a selected-sample
			// histogram from; the magnitude weight stays neutral this round.
			return joinedKey, w, nil
		}

		h, err := magnitude.BuildHistogram(selected, others)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrNumeric, err)
		}
		hist = h
	}

	for r := 0; r < jt.Len(); r++ {
		mag := joinedCol.Float(r)
		if mag == jointable.Sentinel || math.IsNaN(mag) {
			continue
		}
		wv := hist.Weight(mag)
		if math.IsInf(wv, 0) {
			continue
		}
		w[r] = wv
	}
	return joinedKey, w, nil
}

// loadHistogramFile reads a pre-fit magnitude histogram from a 4-column
// CSV (low_edge, high_edge, selected_density, others_density), one row
// per bin, so a magnitude weighting can be reused across runs instead of
// re-bootstrapped from each run's own positionally-confident rows.
func loadHistogramFile(path string) (*magnitude.Histogram, error) {
	tbl, err := catalogio.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	low, err := tbl.Column("low_edge")
	if err != nil {
		return nil, err
	}
	high, err := tbl.Column("high_edge")
	if err != nil {
		return nil, err
	}
	sel, err := tbl.Column("selected_density")
	if err != nil {
		return nil, err
	}
	oth, err := tbl.Column("others_density")
	if err != nil {
		return nil, err
	}

	n := low.Len()
	lowEdge := make([]float64, n)
	highEdge := make([]float64, n)
	selectedDensity := make([]float64, n)
	othersDensity := make([]float64, n)
	for i := 0; i < n; i++ {
		lowEdge[i] = low.Float(i)
		highEdge[i] = high.Float(i)
		selectedDensity[i] = sel.Float(i)
		othersDensity[i] = oth.Float(i)
	}
	return magnitude.LoadHistogramTable(lowEdge, highEdge, selectedDensity, othersDensity)
}

func (p *Pipeline) report(ctx context.Context, jobID, stage string, done, total int, finished bool, err error) {
	if p.Progress != nil {
		if finished {
			p.Progress.Done(stage)
		} else {
			p.Progress.Stage(stage, done, total)
		}
	}
	if p.Bus != nil {
		_ = eventbus.PublishStageProgress(ctx, p.Bus, eventbus.StageProgress{
			JobID: jobID, Stage: stage, RowsDone: done, RowsTotal: total, Done: finished, Err: err,
		})
	}
}

// WriteResultCSV renders a Result into the output table layout spec.md
// §6 defines (joined columns, pairwise separations, ncat, evidence,
// magnitude biases, group posteriors, and match flag), with the
// required COL_PRIM/COLS_ERR/COLS_RA/COLS_DEC/METHOD/TABLES/BIASING
// header keys, and writes it to path.
func WriteResultCSV(path string, res *Result, minProb float64) error {
	jt := res.Joined
	n := jt.Len()

	cols := make([]catalogio.Column, 0, len(jt.ColumnOrder)+8+len(res.MagBias))
	for _, name := range jt.ColumnOrder {
		cols = append(cols, jt.Columns[name])
	}
	for _, key := range jt.SortedPairKeys() {
		cols = append(cols, catalogio.Column{
			Name:   fmt.Sprintf("Separation_%s_%s", jt.Names[key[0]], jt.Names[key[1]]),
			Type:   catalogio.Float64Column,
			Floats: jt.Separations[key],
		})
	}
	ncat := make([]int64, n)
	for i, c := range jt.NCat {
		ncat[i] = int64(c)
	}
	flags := make([]int64, n)
	for i, f := range res.Group.MatchFlag {
		flags[i] = int64(f)
	}

	cols = append(cols,
		catalogio.Column{Name: "Separation_max", Type: catalogio.Float64Column, Floats: jt.SeparationMax},
		catalogio.Column{Name: "ncat", Type: catalogio.IntColumn, Ints: ncat},
		catalogio.Column{Name: "bf", Type: catalogio.Float64Column, Floats: res.Score.LogBF},
		catalogio.Column{Name: "bfpost", Type: catalogio.Float64Column, Floats: res.Score.BFPost},
	)
	for _, key := range res.Meta.BiasKeys {
		cols = append(cols, catalogio.Column{
			Name:   fmt.Sprintf("bias_%s", key),
			Type:   catalogio.Float64Column,
			Floats: res.MagBias[key],
		})
	}
	cols = append(cols,
		catalogio.Column{Name: "post", Type: catalogio.Float64Column, Floats: res.Post},
		catalogio.Column{Name: "post_group_no_match", Type: catalogio.Float64Column, Floats: res.Group.PostGroupNoMatch},
		catalogio.Column{Name: "post_group_this_match", Type: catalogio.Float64Column, Floats: res.Group.PostGroupThisMatch},
		catalogio.Column{Name: "match_flag", Type: catalogio.IntColumn, Ints: flags},
	)

	keep := make([]int, 0, n)
	for r := 0; r < n; r++ {
		if res.Post[r] >= minProb {
			keep = append(keep, r)
		}
	}
	sort.Ints(keep)

	filtered := make([]catalogio.Column, len(cols))
	for i, c := range cols {
		filtered[i] = filterColumn(c, keep)
	}

	out := catalogio.NewInMemoryTable("xmatch_result", filtered, resultHeader(res))
	return catalogio.WriteCSV(path, out)
}

// resultHeader builds the spec.md §6 header metadata map: COL_PRIM
// names the primary catalogue, COLS_ERR/COLS_RA/COLS_DEC are
// comma-joined per-catalogue lists aligned with TABLES, METHOD is the
// matching algorithm, and BIASING lists the magnitude entries that
// contributed a bias column (empty if none were configured).
func resultHeader(res *Result) map[string]string {
	errs := make([]string, len(res.Meta.PositionErr))
	for i, e := range res.Meta.PositionErr {
		errs[i] = strconv.FormatFloat(e, 'g', -1, 64)
	}
	primary := ""
	if len(res.Meta.Tables) > 0 {
		primary = res.Meta.Tables[0]
	}
	return map[string]string{
		"COL_PRIM": primary,
		"COLS_ERR": strings.Join(errs, ","),
		"COLS_RA":  strings.Join(res.Meta.RAColumns, ","),
		"COLS_DEC": strings.Join(res.Meta.DecColumns, ","),
		"METHOD":   res.Meta.Method,
		"TABLES":   strings.Join(res.Meta.Tables, ","),
		"BIASING":  strings.Join(res.Meta.BiasKeys, ","),
	}
}

func filterColumn(c catalogio.Column, keep []int) catalogio.Column {
	switch c.Type {
	case catalogio.StringColumn:
		out := make([]string, len(keep))
		for i, r := range keep {
			out[i] = c.Strings[r]
		}
		return catalogio.Column{Name: c.Name, Type: c.Type, Strings: out}
	case catalogio.IntColumn:
		out := make([]int64, len(keep))
		for i, r := range keep {
			out[i] = c.Ints[r]
		}
		return catalogio.Column{Name: c.Name, Type: c.Type, Ints: out}
	default:
		out := make([]float64, len(keep))
		for i, r := range keep {
			out[i] = c.Floats[r]
		}
		return catalogio.Column{Name: c.Name, Type: c.Type, Floats: out}
	}
}
