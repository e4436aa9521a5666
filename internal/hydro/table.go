package hydro

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Times) }

// IsEmpty reports whether the table holds no usable data.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Times) == 0 || len(t.Columns) == 0
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// RenameColumns replaces every column name positionally.
func (t *Table) RenameColumns(names []string) error {
	if len(names) != len(t.Columns) {
		return fmt.Errorf("got %d names for %d columns", len(names), len(t.Columns))
	}
	for i, n := range names {
		t.Columns[i].Name = n
	}
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		IndexName: t.IndexName,
		Times:     append([]time.Time(nil), t.Times...),
		Columns:   make([]Column, len(t.Columns)),
	}
	for i, c := range t.Columns {
		out.Columns[i] = Column{Name: c.Name, Values: append([]float64(nil), c.Values...)}
	}
	return out
}

// PrefixColumns prepends "<label>: " to every column name in place.
func (t *Table) PrefixColumns(label string) {
	for i := range t.Columns {
		t.Columns[i].Name = label + ": " + t.Columns[i].Name
	}
}

// Join outer-joins two tables on the union of their timestamps. Rows one
// side lacks are filled with NaN. Both tables must hold unique, sorted
// timestamps.
func (t *Table) Join(other *Table) *Table {
	if other == nil || (other.Len() == 0 && len(other.Columns) == 0) {
		return t.Clone()
	}
	if t.Len() == 0 && len(t.Columns) == 0 {
		out := other.Clone()
		if out.IndexName == "" {
			out.IndexName = t.IndexName
		}
		return out
	}

	union := unionTimes(t.Times, other.Times)
	out := &Table{IndexName: t.IndexName, Times: union}
	out.appendAligned(t, union)
	out.appendAligned(other, union)
	return out
}

func (t *Table) appendAligned(src *Table, union []time.Time) {
	idx := timeIndex(src.Times)
	for _, c := range src.Columns {
		vals := make([]float64, len(union))
		for ui, tm := range union {
			if ri, ok := idx[tm.UnixNano()]; ok {
				vals[ui] = c.Values[ri]
			} else {
				vals[ui] = math.NaN()
			}
		}
		t.Columns = append(t.Columns, Column{Name: c.Name, Values: vals})
	}
}

// Truncate returns the rows whose timestamps fall inside [start, end].
// Either bound may be nil to leave that side open; both are inclusive.
func (t *Table) Truncate(start, end *time.Time) *Table {
	out := &Table{IndexName: t.IndexName, Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = Column{Name: c.Name}
	}
	for ri, tm := range t.Times {
		if start != nil && tm.Before(*start) {
			continue
		}
		if end != nil && tm.After(*end) {
			continue
		}
		out.Times = append(out.Times, tm)
		for ci := range t.Columns {
			out.Columns[ci].Values = append(out.Columns[ci].Values, t.Columns[ci].Values[ri])
		}
	}
	return out
}

// ConvertZone returns a copy with every timestamp rendered in loc and the
// index label carrying the zone name. The instants themselves do not move.
func (t *Table) ConvertZone(loc *time.Location, zone string) *Table {
	out := t.Clone()
	for i := range out.Times {
		out.Times[i] = out.Times[i].In(loc)
	}
	out.IndexName = fmt.Sprintf("Dates [%s]", zone)
	return out
}

// SortByTime orders rows by ascending timestamp, keeping the input order of
// equal timestamps.
func (t *Table) SortByTime() {
	t.sortRows(func(i, j int) bool { return t.Times[i].Before(t.Times[j]) })
}

func (t *Table) sortRows(less func(i, j int) bool) {
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(idx[a], idx[b]) })

	times := make([]time.Time, t.Len())
	for p, i := range idx {
		times[p] = t.Times[i]
	}
	t.Times = times
	for ci := range t.Columns {
		vals := make([]float64, t.Len())
		for p, i := range idx {
			vals[p] = t.Columns[ci].Values[i]
		}
		t.Columns[ci].Values = vals
	}
}

// MarshalJSON renders missing values as null so the payload stays valid JSON.
func (t *Table) MarshalJSON() ([]byte, error) {
	type jsonColumn struct {
		Name   string     `json:"name"`
		Values []*float64 `json:"values"`
	}
	payload := struct {
		Index   string       `json:"index"`
		Times   []time.Time  `json:"times"`
		Columns []jsonColumn `json:"columns"`
	}{
		Index:   t.IndexName,
		Times:   t.Times,
		Columns: make([]jsonColumn, 0, len(t.Columns)),
	}
	for _, c := range t.Columns {
		jc := jsonColumn{Name: c.Name, Values: make([]*float64, len(c.Values))}
		for i, v := range c.Values {
			if !math.IsNaN(v) {
				v := v
				jc.Values[i] = &v
			}
		}
		payload.Columns = append(payload.Columns, jc)
	}
	return json.Marshal(payload)
}

// unionTimes merges two sorted, duplicate-free timestamp slices.
func unionTimes(a, b []time.Time) []time.Time {
	out := make([]time.Time, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Before(b[j]):
			out = append(out, a[i])
			i++
		case b[j].Before(a[i]):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func timeIndex(times []time.Time) map[int64]int {
	idx := make(map[int64]int, len(times))
	for i, tm := range times {
		idx[tm.UnixNano()] = i
	}
	return idx
}
