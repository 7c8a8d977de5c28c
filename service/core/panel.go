package core

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/mat"

	e "labfolio/data/extensions"
)

// ReturnPanel is a dense date × identifier table of simple returns.
// Dates are strictly increasing calendar dates and no cell is missing.
type ReturnPanel struct {
	dates   []time.Time
	columns []string
	values  [][]float64 // values[column][date]
}

func NewReturnPanel(dates []time.Time, columns []string, values [][]float64) (*ReturnPanel, error) {
	if len(values) != len(columns) {
		return nil, fmt.Errorf("panel has %d columns but %d value series", len(columns), len(values))
	}
	if e.HasDuplicates(columns) {
		return nil, fmt.Errorf("panel columns must be unique")
	}

	p := &ReturnPanel{
		dates:   make([]time.Time, len(dates)),
		columns: slices.Clone(columns),
		values:  make([][]float64, len(columns)),
	}
	for i, d := range dates {
		p.dates[i] = e.DateOnly(d)
		if i > 0 && !p.dates[i].After(p.dates[i-1]) {
			return nil, fmt.Errorf("panel dates must be strictly increasing, %s follows %s", e.FmtShort(p.dates[i]), e.FmtShort(p.dates[i-1]))
		}
	}
	for j, series := range values {
		if len(series) != len(dates) {
			return nil, fmt.Errorf("column %s has %d values for %d dates", columns[j], len(series), len(dates))
		}
		for _, v := range series {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("column %s has a missing value", columns[j])
			}
		}
		p.values[j] = slices.Clone(series)
	}

	return p, nil
}

func emptyPanel(columns []string) *ReturnPanel {
	return &ReturnPanel{columns: columns, values: make([][]float64, len(columns))}
}

func (p *ReturnPanel) Len() int { return len(p.dates) }

func (p *ReturnPanel) Width() int { return len(p.columns) }

// IsEmpty is true when there is no usable cell, either no dates or no columns
func (p *ReturnPanel) IsEmpty() bool {
	return p == nil || p.Len() == 0 || p.Width() == 0
}

func (p *ReturnPanel) Dates() []time.Time { return slices.Clone(p.dates) }

func (p *ReturnPanel) Columns() []string { return slices.Clone(p.columns) }

func (p *ReturnPanel) Series(column string) ([]float64, bool) {
	j := slices.Index(p.columns, column)
	if j < 0 {
		return nil, false
	}
	return slices.Clone(p.values[j]), true
}

// Matrix returns the panel as a dates × columns matrix
func (p *ReturnPanel) Matrix() *mat.Dense {
	res := mat.NewDense(p.Len(), p.Width(), nil)
	for j, series := range p.values {
		res.SetCol(j, series)
	}
	return res
}

// rows returns a new panel holding only the given date rows, in the given order
func (p *ReturnPanel) rows(idx []int) *ReturnPanel {
	res := &ReturnPanel{
		dates:   make([]time.Time, len(idx)),
		columns: slices.Clone(p.columns),
		values:  make([][]float64, len(p.columns)),
	}
	for i, k := range idx {
		res.dates[i] = p.dates[k]
	}
	for j, series := range p.values {
		res.values[j] = make([]float64, len(idx))
		for i, k := range idx {
			res.values[j][i] = series[k]
		}
	}
	return res
}

// observation is one long-format row pulled from a source
type observation struct {
	id    string
	date  time.Time
	value float64
}

// rawPanel is the pivoted, pre-clean panel, missing cells are invalid
type rawPanel struct {
	dates   []time.Time
	columns []string
	cells   [][]null.Float // cells[column][date]
}

// pivot builds a date × identifier panel. Columns follow the order of identifiers, identifiers
// without a single observation get no column and unrequested ids are appended sorted.
// A repeated (id, date) keeps the last value.
func pivot(observations []observation, identifiers []string) *rawPanel {
	seen := make(map[string]bool)
	dateSet := make(map[time.Time]bool)
	for _, o := range observations {
		seen[o.id] = true
		dateSet[e.DateOnly(o.date)] = true
	}

	columns := make([]string, 0, len(seen))
	for _, id := range e.Unique(identifiers) {
		if seen[id] {
			columns = append(columns, id)
			delete(seen, id)
		}
	}
	extra := make([]string, 0, len(seen))
	for id := range seen {
		extra = append(extra, id)
	}
	slices.Sort(extra)
	columns = append(columns, extra...)

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	dateIdx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dateIdx[d] = i
	}
	colIdx := make(map[string]int, len(columns))
	for j, c := range columns {
		colIdx[c] = j
	}

	cells := make([][]null.Float, len(columns))
	for j := range cells {
		cells[j] = make([]null.Float, len(dates))
	}
	for _, o := range observations {
		if math.IsNaN(o.value) || math.IsInf(o.value, 0) {
			continue
		}
		cells[colIdx[o.id]][dateIdx[e.DateOnly(o.date)]] = null.FloatFrom(o.value)
	}

	return &rawPanel{dates: dates, columns: columns, cells: cells}
}

// simpleReturns converts a price panel to returns p[t]/p[t-1]-1. The first date has no
// return and is dropped, a return next to a missing or zero price is missing.
func (r *rawPanel) simpleReturns() *rawPanel {
	if len(r.dates) < 2 {
		return &rawPanel{columns: r.columns, cells: make([][]null.Float, len(r.columns))}
	}

	res := &rawPanel{
		dates:   slices.Clone(r.dates[1:]),
		columns: r.columns,
		cells:   make([][]null.Float, len(r.columns)),
	}
	for j, prices := range r.cells {
		res.cells[j] = make([]null.Float, len(prices)-1)
		for t := 1; t < len(prices); t++ {
			prev, cur := prices[t-1], prices[t]
			if !prev.Valid || !cur.Valid || prev.Float64 == 0 {
				continue
			}
			res.cells[j][t-1] = null.FloatFrom(cur.Float64/prev.Float64 - 1)
		}
	}
	return res
}

// clean drops every column whose missing fraction exceeds threshold, then every date
// with a missing value in a surviving column
func (r *rawPanel) clean(threshold float64) *ReturnPanel {
	n := len(r.dates)
	if n == 0 {
		return emptyPanel(nil)
	}

	keep := make([]int, 0, len(r.columns))
	for j, cells := range r.cells {
		missing := 0
		for _, c := range cells {
			if !c.Valid {
				missing++
			}
		}
		if float64(missing)/float64(n) <= threshold {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return emptyPanel(nil)
	}

	columns := make([]string, len(keep))
	for i, j := range keep {
		columns[i] = r.columns[j]
	}

	dates := make([]time.Time, 0, n)
	values := make([][]float64, len(keep))
	for t := range n {
		complete := true
		for _, j := range keep {
			if !r.cells[j][t].Valid {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		dates = append(dates, r.dates[t])
		for i, j := range keep {
			values[i] = append(values[i], r.cells[j][t].Float64)
		}
	}

	if len(dates) == 0 {
		return emptyPanel(columns)
	}
	return &ReturnPanel{dates: dates, columns: columns, values: values}
}
