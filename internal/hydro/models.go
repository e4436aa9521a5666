package hydro

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultIndexName is the index label for tables whose timestamps are UTC.
	DefaultIndexName = "Dates [UTC]"

	// DepthColumn is the column that marks a table as stacked per-depth
	// profile data. Tables carrying it are resampled one depth at a time.
	DepthColumn = "Depth [m]"
)

// Gauge read frequencies understood by the stream-gauge source.
const (
	FreqInstantaneous = "iv"
	FreqDaily         = "dv"
)

// Gauge variables understood by the stream-gauge source.
const (
	VariableFlow    = "flow"
	VariableHeight  = "height"
	VariableStorage = "storage"
)

// Binning intervals understood by the water-data portal source.
const (
	BinningMonth  = "mon"
	BinningDay    = "day"
	BinningHour   = "hour"
	BinningMinute = "min"
)

// SurfaceLayer is the vertical model layer used when none is requested.
const SurfaceLayer = -1

// Column is a single named series of values, parallel to Table.Times.
// Missing values are math.NaN().
type Column struct {
	Name   string
	Values []float64
}

// Table is a time-indexed table of named numeric columns. Rows are kept in
// timestamp order; every column has exactly one value per timestamp.
type Table struct {
	IndexName string
	Times     []time.Time
	Columns   []Column
}

// How selects between instantaneous-value and interval-average resampling.
type How string

const (
	HowInstant How = "instant"
	HowMean    How = "mean"
)

// LabelPlacement selects where an output row's timestamp sits within its
// grid interval.
type LabelPlacement string

const (
	LabelLeft   LabelPlacement = "left"
	LabelCenter LabelPlacement = "center"
)

// Directive describes a requested uniform time grid: the step as a period
// string ("30T", "1H"), the anchor offset from midnight in whole grid
// units, the value mode and the label placement.
type Directive struct {
	Period string         `json:"period"`
	Base   int            `json:"base"`
	How    How            `json:"how"`
	Label  LabelPlacement `json:"label"`
}

// DefaultBuoyDirective is the grid applied to buoy reads when the caller
// does not ask for one: half-hour instants labelled on the left edge.
func DefaultBuoyDirective() Directive {
	return Directive{Period: "30T", Base: 0, How: HowInstant, Label: LabelLeft}
}

// ReadOptions carries everything a Read may be asked for beyond the station
// itself. The zero value is a usable "fetch as-is" request.
type ReadOptions struct {
	// Start and End bound the read, inclusive. Give both or neither.
	Start *time.Time
	End   *time.Time

	// Zone is the display timezone for the returned table ("US/Central").
	// Empty means UTC.
	Zone string

	// Resample, when set, puts the result onto a uniform grid.
	Resample *Directive

	// Freq and Variable steer stream-gauge reads (iv/dv, flow/height/storage).
	Freq     string
	Variable string

	// Binning steers water-data portal reads (mon/day/hour/min).
	Binning string

	// Model routes the read to the generic source's model output. Datum and
	// Layer qualify model reads; Layer zero means the surface layer.
	Model bool
	Datum string
	Layer int

	// Feed restricts a buoy read to one sub-table (met, salt, ven, wave).
	Feed string
}

// FetchRequest is the normalized request handed to a Source. Defaults have
// already been applied by the dispatcher.
type FetchRequest struct {
	IDs   []string
	Start *time.Time
	End   *time.Time

	Freq     string
	Variable string
	Binning  string
	Datum    string
	Feed     string
	Model    bool
	Layer    int
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
}

// ParseDate parses a calendar timestamp in any of the accepted layouts.
// Values without an explicit zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
