package hydro

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/txcoastal/station-data-aggregation/internal/common"
)

// Service routes reads to the right Source for a station, applies
// per-network defaults and puts the result onto the requested grid.
type Service struct {
	sources Sources
}

// NewService creates a new Service.
func NewService(sources Sources) *Service {
	return &Service{sources: sources}
}

// Read fetches, normalizes and optionally resamples the series for one
// station. Any failure (a misrouted id, an unreachable upstream, an empty
// result, a bad grid) is logged and collapses to a nil table, so callers
// only ever check for nil.
func (s *Service) Read(ctx context.Context, station StationID, opts ReadOptions) *Table {
	t, err := s.read(ctx, station, opts)
	if err != nil {
		log.Printf("hydro: read %s failed: %v", stationLabel(station), err)
		return nil
	}
	return t
}

func (s *Service) read(ctx context.Context, station StationID, opts ReadOptions) (*Table, error) {
	if station == nil {
		return nil, fmt.Errorf("no station id given")
	}
	if (opts.Start == nil) != (opts.End == nil) {
		return nil, fmt.Errorf("start and end dates must be given together")
	}
	if opts.Start != nil && opts.End.Before(*opts.Start) {
		return nil, fmt.Errorf("end date %s precedes start date %s", opts.End.Format("2006-01-02"), opts.Start.Format("2006-01-02"))
	}

	req := FetchRequest{
		Start:    opts.Start,
		End:      opts.End,
		Freq:     opts.Freq,
		Variable: opts.Variable,
		Binning:  opts.Binning,
		Datum:    opts.Datum,
		Feed:     opts.Feed,
		Model:    opts.Model,
		Layer:    opts.Layer,
	}
	if req.Freq == "" {
		req.Freq = FreqInstantaneous
	}
	if req.Variable == "" {
		req.Variable = VariableFlow
	}
	if req.Binning == "" {
		req.Binning = BinningHour
	}
	if req.Layer == 0 {
		req.Layer = SurfaceLayer
	}

	directive := opts.Resample

	var (
		src         Source
		needDates   = true
		buoyDefault bool
	)
	switch id := station.(type) {
	case BuoyID:
		req.IDs = []string{string(id)}
		src = s.sources.Buoy
		buoyDefault = true
	case GaugeIDList:
		req.IDs = append([]string(nil), id...)
		src = s.sources.Gauge
	case PortalID:
		req.IDs = []string{string(id)}
		src = s.sources.Portal
		needDates = false
	case GenericID:
		req.IDs = []string{string(id)}
		src = s.sources.Generic
		if common.HasAny(string(id), "full") {
			needDates = false
		}
	default:
		return nil, fmt.Errorf("unsupported station id %T", station)
	}

	// A model read always goes through the generic query page, with no
	// implied grid and explicit dates.
	if opts.Model {
		src = s.sources.Generic
		needDates = true
		buoyDefault = false
	}

	if buoyDefault && directive == nil {
		d := DefaultBuoyDirective()
		directive = &d
	}
	if needDates && opts.Start == nil {
		return nil, fmt.Errorf("start and end dates are required for this station")
	}
	if src == nil {
		return nil, fmt.Errorf("no source configured for %s", stationLabel(station))
	}

	t, err := src.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if t.IsEmpty() {
		return nil, fmt.Errorf("no data available for %s", stationLabel(station))
	}

	zone := opts.Zone
	if zone == "" {
		zone = "UTC"
	}
	loc := time.UTC
	if zone != "UTC" {
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", opts.Zone, err)
		}
	}
	t = t.ConvertZone(loc, zone)

	if directive != nil {
		// Stacked profile tables carry the depth column unprefixed and are
		// resampled one depth at a time.
		if t.HasColumn(DepthColumn) {
			t, err = ResampleProfile(t, *directive, DepthColumn)
		} else {
			t, err = Resample(t, *directive)
		}
		if err != nil {
			return nil, err
		}
		if t.IsEmpty() {
			return nil, fmt.Errorf("no data on the requested grid for %s", stationLabel(station))
		}
	}
	return t, nil
}

func stationLabel(station StationID) string {
	if station == nil {
		return "<nil>"
	}
	return station.String()
}
