package hydro

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxInterpolationGap is the widest run of missing source samples the
// interpolation branch will bridge. Wider gaps stay missing.
const maxInterpolationGap = 10

// ParsePeriod converts a period string like "30T", "15min" or "2H" into a
// step duration. A bare unit means one of it.
func ParsePeriod(period string) (time.Duration, error) {
	n, unit, err := parsePeriodParts(period)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}

func parsePeriodParts(period string) (int, time.Duration, error) {
	s := strings.TrimSpace(period)
	if s == "" {
		return 0, 0, fmt.Errorf("empty resample period")
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	count := 1
	if i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("bad resample period %q", period)
		}
		count = n
	}
	switch strings.ToUpper(s[i:]) {
	case "T", "MIN":
		return count, time.Minute, nil
	case "H":
		return count, time.Hour, nil
	default:
		return 0, 0, fmt.Errorf("bad resample period %q (use T/min or H)", period)
	}
}

// Resample puts a table onto the uniform grid the directive describes.
//
// The grid is anchored at midnight of the first timestamp's day (in the
// table's zone) plus Base grid units, and extends to the last timestamp.
// When the source data is finer than the grid and the mode is mean, rows
// are averaged per grid interval, ignoring missing values. Otherwise values
// are linearly interpolated in elapsed time onto the grid points, bridging
// runs of up to maxInterpolationGap missing source samples and never
// extrapolating beyond the first or last sample.
func Resample(t *Table, d Directive) (*Table, error) {
	if t == nil || t.Len() < 2 {
		return nil, fmt.Errorf("resampling needs at least two rows")
	}
	dtNative := t.Times[1].Sub(t.Times[0])
	if dtNative <= 0 {
		return nil, fmt.Errorf("table timestamps must be strictly increasing")
	}

	count, unit, err := parsePeriodParts(d.Period)
	if err != nil {
		return nil, err
	}
	dtTarget := time.Duration(count) * unit

	how := d.How
	if how == "" {
		how = HowInstant
	}
	label := d.Label
	if label == "" {
		label = LabelLeft
	}
	switch how {
	case HowInstant, HowMean:
	default:
		return nil, fmt.Errorf("unknown resample mode %q", d.How)
	}
	switch label {
	case LabelLeft, LabelCenter:
	default:
		return nil, fmt.Errorf("unknown label placement %q", d.Label)
	}

	first := t.Times[0]
	last := t.Times[t.Len()-1]
	midnight := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, first.Location())
	anchor := midnight.Add(time.Duration(d.Base) * unit)

	if how == HowMean {
		if dtNative >= dtTarget {
			return nil, fmt.Errorf("mean resampling needs source data finer than the %s grid (native step %s)", d.Period, dtNative)
		}
		return resampleMean(t, anchor, dtTarget, label), nil
	}

	grid := buildGrid(anchor, dtTarget, last)
	return resampleInstant(t, grid), nil
}

// buildGrid lays out stamps every step from anchor through last.
func buildGrid(anchor time.Time, step time.Duration, last time.Time) []time.Time {
	var grid []time.Time
	for tm := anchor; !tm.After(last); tm = tm.Add(step) {
		grid = append(grid, tm)
	}
	return grid
}

// resampleMean averages rows into [start, start+step) intervals. The first
// interval is the one containing the first timestamp; the last contains the
// last. Intervals with no finite values average to NaN.
func resampleMean(t *Table, anchor time.Time, step time.Duration, label LabelPlacement) *Table {
	first := t.Times[0]
	last := t.Times[t.Len()-1]

	offset := first.Sub(anchor)
	steps := int64(offset / step)
	if offset%step != 0 && offset < 0 {
		steps--
	}
	start := anchor.Add(time.Duration(steps) * step)

	out := &Table{IndexName: t.IndexName, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = Column{Name: c.Name}
	}

	row := 0
	for bin := start; !bin.After(last); bin = bin.Add(step) {
		end := bin.Add(step)
		lo := row
		for row < t.Len() && t.Times[row].Before(end) {
			row++
		}

		stamp := bin
		if label == LabelCenter {
			stamp = bin.Add(step / 2)
		}
		out.Times = append(out.Times, stamp)
		for ci := range t.Columns {
			out.Columns[ci].Values = append(out.Columns[ci].Values, meanIgnoringNaN(t.Columns[ci].Values[lo:row]))
		}
	}
	return out
}

func meanIgnoringNaN(values []float64) float64 {
	sum := 0.0
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// resampleInstant interpolates column values onto the grid stamps. It works
// on the union of source and grid stamps so that source samples on either
// side of a grid point always take part, then keeps only the grid rows.
func resampleInstant(t *Table, grid []time.Time) *Table {
	union := unionTimes(t.Times, grid)
	sourceRow := timeIndex(t.Times)
	unionRow := timeIndex(union)

	out := &Table{IndexName: t.IndexName, Times: grid, Columns: make([]Column, len(t.Columns))}
	for ci, c := range t.Columns {
		vals := make([]float64, len(union))
		for ui, tm := range union {
			if ri, ok := sourceRow[tm.UnixNano()]; ok {
				vals[ui] = c.Values[ri]
			} else {
				vals[ui] = math.NaN()
			}
		}
		interpolateInTime(union, vals, sourceRow)

		selected := make([]float64, len(grid))
		for gi, tm := range grid {
			selected[gi] = vals[unionRow[tm.UnixNano()]]
		}
		out.Columns[ci] = Column{Name: c.Name, Values: selected}
	}
	return out
}

// interpolateInTime fills NaN runs in vals by linear interpolation between
// the surrounding known points, weighting by elapsed time. A run is bridged
// only when it is bounded on both sides and contains at most
// maxInterpolationGap source samples; stamps that exist only on the grid do
// not count toward the gap. Leading and trailing runs stay NaN.
func interpolateInTime(times []time.Time, vals []float64, sourceRow map[int64]int) {
	prevKnown := -1
	i := 0
	for i < len(vals) {
		if !math.IsNaN(vals[i]) {
			prevKnown = i
			i++
			continue
		}

		j := i
		missing := 0
		for j < len(vals) && math.IsNaN(vals[j]) {
			if _, ok := sourceRow[times[j].UnixNano()]; ok {
				missing++
			}
			j++
		}

		if prevKnown >= 0 && j < len(vals) && missing <= maxInterpolationGap {
			t0, v0 := times[prevKnown], vals[prevKnown]
			t1, v1 := times[j], vals[j]
			span := t1.Sub(t0).Seconds()
			for k := i; k < j; k++ {
				frac := times[k].Sub(t0).Seconds() / span
				vals[k] = v0 + (v1-v0)*frac
			}
		}
		i = j
	}
}

// ResampleProfile resamples a stacked per-depth profile table: rows are
// grouped by the key column's value, each group is resampled on its own,
// the groups are stacked back and rows are ordered by timestamp ascending
// with deeper-first ties.
func ResampleProfile(t *Table, d Directive, key string) (*Table, error) {
	if t == nil {
		return nil, fmt.Errorf("resampling needs at least two rows")
	}
	ki, ok := t.ColumnIndex(key)
	if !ok {
		return nil, fmt.Errorf("profile table has no %s column", key)
	}

	// Distinct key values in order of first appearance. Rows with a missing
	// key belong to no group and are dropped.
	var order []float64
	seen := make(map[float64]bool)
	for _, v := range t.Columns[ki].Values {
		if math.IsNaN(v) || seen[v] {
			continue
		}
		seen[v] = true
		order = append(order, v)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("profile table has no %s values", key)
	}

	out := &Table{IndexName: t.IndexName, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = Column{Name: c.Name}
	}

	for _, depth := range order {
		sub := subTableWhere(t, ki, depth)
		rs, err := Resample(sub, d)
		if err != nil {
			return nil, fmt.Errorf("resampling %s %g: %w", key, depth, err)
		}
		// The key must stay constant; the grid may have stamps the group
		// had no row for.
		for i := range rs.Columns[ki].Values {
			rs.Columns[ki].Values[i] = depth
		}
		out.Times = append(out.Times, rs.Times...)
		for ci := range out.Columns {
			out.Columns[ci].Values = append(out.Columns[ci].Values, rs.Columns[ci].Values...)
		}
	}

	keyVals := out.Columns[ki].Values
	out.sortRows(func(i, j int) bool {
		if !out.Times[i].Equal(out.Times[j]) {
			return out.Times[i].Before(out.Times[j])
		}
		return keyVals[i] > keyVals[j]
	})
	return out, nil
}

func subTableWhere(t *Table, col int, value float64) *Table {
	sub := &Table{IndexName: t.IndexName, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		sub.Columns[i] = Column{Name: c.Name}
	}
	for ri, v := range t.Columns[col].Values {
		if v != value {
			continue
		}
		sub.Times = append(sub.Times, t.Times[ri])
		for ci := range t.Columns {
			sub.Columns[ci].Values = append(sub.Columns[ci].Values, t.Columns[ci].Values[ri])
		}
	}
	return sub
}
