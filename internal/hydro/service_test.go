package hydro

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource records the request it served and returns a canned table.
type fakeSource struct {
	name    string
	table   *Table
	err     error
	calls   int
	lastReq FetchRequest
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, req FetchRequest) (*Table, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.table.Clone(), nil
}

func datePair(start, end time.Time) (*time.Time, *time.Time) {
	return &start, &end
}

func TestReadAppliesDefaultBuoyGrid(t *testing.T) {
	buoy := &fakeSource{name: "buoy", table: seriesTable(testDay, 6*time.Minute, minuteRamp(21, 6*time.Minute))}
	svc := NewService(Sources{Buoy: buoy})

	start, end := datePair(testDay, testDay.AddDate(0, 0, 1))
	out := svc.Read(context.Background(), BuoyID("B"), ReadOptions{Start: start, End: end})
	if out == nil {
		t.Fatal("expected a table")
	}
	if out.Len() != 5 {
		t.Fatalf("expected 5 half-hour rows, got %d", out.Len())
	}
	if out.Times[1].Sub(out.Times[0]) != 30*time.Minute {
		t.Fatalf("expected a 30-minute grid, got %v", out.Times[1].Sub(out.Times[0]))
	}
	for i, v := range out.Columns[0].Values {
		if !almostEqual(v, float64(i*30)) {
			t.Fatalf("row %d: expected %d, got %v", i, i*30, v)
		}
	}
}

func TestReadBuoyHonorsExplicitGrid(t *testing.T) {
	buoy := &fakeSource{name: "buoy", table: seriesTable(testDay, 6*time.Minute, minuteRamp(121, 6*time.Minute))}
	svc := NewService(Sources{Buoy: buoy})

	start, end := datePair(testDay, testDay.AddDate(0, 0, 1))
	out := svc.Read(context.Background(), BuoyID("B"), ReadOptions{
		Start:    start,
		End:      end,
		Resample: &Directive{Period: "2H", How: HowMean, Label: LabelLeft},
	})
	if out == nil {
		t.Fatal("expected a table")
	}
	// 00:00 .. 12:00 of six-minute data averaged into two-hour bins.
	if out.Len() != 7 {
		t.Fatalf("expected 7 two-hour bins, got %d", out.Len())
	}
}

func TestReadRequiresDatesForBuoys(t *testing.T) {
	buoy := &fakeSource{name: "buoy", table: seriesTable(testDay, 6*time.Minute, minuteRamp(21, 6*time.Minute))}
	svc := NewService(Sources{Buoy: buoy})

	if out := svc.Read(context.Background(), BuoyID("B"), ReadOptions{}); out != nil {
		t.Fatal("expected nil without dates")
	}
	if buoy.calls != 0 {
		t.Fatalf("expected no fetch, got %d", buoy.calls)
	}
}

func TestReadRejectsMismatchedDates(t *testing.T) {
	portal := &fakeSource{name: "portal", table: seriesTable(testDay, time.Hour, []float64{1, 2})}
	svc := NewService(Sources{Portal: portal})

	start := testDay
	if out := svc.Read(context.Background(), PortalID("BOLI"), ReadOptions{Start: &start}); out != nil {
		t.Fatal("expected nil for a start without an end")
	}

	end := testDay.AddDate(0, 0, -1)
	if out := svc.Read(context.Background(), PortalID("BOLI"), ReadOptions{Start: &start, End: &end}); out != nil {
		t.Fatal("expected nil for an end before the start")
	}
}

func TestReadNilOnSourceFailure(t *testing.T) {
	gauge := &fakeSource{name: "gauge", err: errors.New("boom")}
	svc := NewService(Sources{Gauge: gauge})

	start, end := datePair(testDay, testDay.AddDate(0, 0, 1))
	if out := svc.Read(context.Background(), GaugeIDList{"08077637"}, ReadOptions{Start: start, End: end}); out != nil {
		t.Fatal("expected nil on source failure")
	}
}

func TestReadNilOnEmptyTable(t *testing.T) {
	gauge := &fakeSource{name: "gauge", table: &Table{IndexName: DefaultIndexName}}
	svc := NewService(Sources{Gauge: gauge})

	start, end := datePair(testDay, testDay.AddDate(0, 0, 1))
	if out := svc.Read(context.Background(), GaugeIDList{"08077637"}, ReadOptions{Start: start, End: end}); out != nil {
		t.Fatal("expected nil for an empty result")
	}
}

func TestReadNilForUnconfiguredSource(t *testing.T) {
	svc := NewService(Sources{})
	start, end := datePair(testDay, testDay.AddDate(0, 0, 1))
	if out := svc.Read(context.Background(), BuoyID("B"), ReadOptions{Start: start, End: end}); out != nil {
		t.Fatal("expected nil when no source is wired")
	}
	if out := svc.Read(context.Background(), nil, ReadOptions{Start: start, End: end}); out != nil {
		t.Fatal("expected nil for a nil station")
	}
}

func TestReadPortalWithoutDates(t *testing.T) {
	portal := &fakeSource{name: "portal", table: seriesTable(testDay, time.Hour, []float64{1, 2, 3})}
	svc := NewService(Sources{Portal: portal})

	out := svc.Read(context.Background(), PortalID("BOLI"), ReadOptions{})
	if out == nil {
		t.Fatal("expected a table")
	}
	// No implied grid for portal stations.
	if out.Len() != 3 {
		t.Fatalf("expected the native 3 rows, got %d", out.Len())
	}
	if out.IndexName != DefaultIndexName {
		t.Fatalf("expected %q, got %q", DefaultIndexName, out.IndexName)
	}
	if portal.lastReq.Binning != BinningHour {
		t.Fatalf("expected default hour binning, got %q", portal.lastReq.Binning)
	}
}

func TestReadGaugeDefaults(t *testing.T) {
	gauge := &fakeSource{name: "gauge", table: seriesTable(testDay, 15*time.Minute, []float64{1, 2, 3})}
	svc := NewService(Sources{Gauge: gauge})

	start, end := datePair(testDay, testDay.AddDate(0, 0, 1))
	out := svc.Read(context.Background(), GaugeIDList{"08077637", "08078000"}, ReadOptions{Start: start, End: end})
	if out == nil {
		t.Fatal("expected a table")
	}
	if gauge.lastReq.Freq != FreqInstantaneous {
		t.Fatalf("expected default freq iv, got %q", gauge.lastReq.Freq)
	}
	if gauge.lastReq.Variable != VariableFlow {
		t.Fatalf("expected default variable flow, got %q", gauge.lastReq.Variable)
	}
	if len(gauge.lastReq.IDs) != 2 {
		t.Fatalf("expected both sites forwarded, got %v", gauge.lastReq.IDs)
	}
	// No implied grid for gauges either.
	if out.Len() != 3 {
		t.Fatalf("expected the native 3 rows, got %d", out.Len())
	}
}

func TestReadModelRoutesToGenericSource(t *testing.T) {
	buoy := &fakeSource{name: "buoy", table: seriesTable(testDay, 6*time.Minute, minuteRamp(21, 6*time.Minute))}
	generic := &fakeSource{name: "generic", table: seriesTable(testDay, 6*time.Minute, minuteRamp(21, 6*time.Minute))}
	svc := NewService(Sources{Buoy: buoy, Generic: generic})

	start, end := datePair(testDay, testDay.AddDate(0, 0, 1))
	out := svc.Read(context.Background(), BuoyID("B"), ReadOptions{Start: start, End: end, Model: true})
	if out == nil {
		t.Fatal("expected a table")
	}
	if buoy.calls != 0 {
		t.Fatalf("expected the buoy source to be bypassed, got %d calls", buoy.calls)
	}
	if generic.calls != 1 {
		t.Fatalf("expected one generic fetch, got %d", generic.calls)
	}
	if !generic.lastReq.Model {
		t.Fatal("expected the model flag to be forwarded")
	}
	if generic.lastReq.Layer != SurfaceLayer {
		t.Fatalf("expected the surface layer by default, got %d", generic.lastReq.Layer)
	}
	// Model reads carry no implied buoy grid.
	if out.Len() != 21 {
		t.Fatalf("expected the native 21 rows, got %d", out.Len())
	}
}

func TestReadModelRequiresDates(t *testing.T) {
	generic := &fakeSource{name: "generic", table: seriesTable(testDay, time.Hour, []float64{1, 2})}
	svc := NewService(Sources{Generic: generic})

	if out := svc.Read(context.Background(), GenericID("g06010_full"), ReadOptions{Model: true}); out != nil {
		t.Fatal("expected nil for a model read without dates")
	}
}

func TestReadFullDailyFileWithoutDates(t *testing.T) {
	generic := &fakeSource{name: "generic", table: seriesTable(testDay, time.Hour, []float64{1, 2})}
	svc := NewService(Sources{Generic: generic})

	out := svc.Read(context.Background(), GenericID("g06010_full"), ReadOptions{})
	if out == nil {
		t.Fatal("expected a table")
	}
	if generic.lastReq.Start != nil {
		t.Fatal("expected no dates forwarded")
	}
}

func TestReadConvertsZone(t *testing.T) {
	if _, err := time.LoadLocation("US/Central"); err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	portal := &fakeSource{name: "portal", table: seriesTable(testDay.Add(12*time.Hour), time.Hour, []float64{1, 2})}
	svc := NewService(Sources{Portal: portal})

	out := svc.Read(context.Background(), PortalID("BOLI"), ReadOptions{Zone: "US/Central"})
	if out == nil {
		t.Fatal("expected a table")
	}
	if out.IndexName != "Dates [US/Central]" {
		t.Fatalf("expected a zone-labelled index, got %q", out.IndexName)
	}
	if !out.Times[0].Equal(testDay.Add(12 * time.Hour)) {
		t.Fatalf("instant moved to %v", out.Times[0])
	}

	if nilOut := svc.Read(context.Background(), PortalID("BOLI"), ReadOptions{Zone: "Mars/Olympus"}); nilOut != nil {
		t.Fatal("expected nil for an unknown zone")
	}
}

func TestReadResamplesProfilesPerDepth(t *testing.T) {
	profile := &Table{IndexName: DefaultIndexName, Columns: []Column{
		{Name: DepthColumn},
		{Name: "East [cm/s]"},
	}}
	for i := 0; i <= 10; i++ {
		tm := testDay.Add(time.Duration(i) * 6 * time.Minute)
		profile.Times = append(profile.Times, tm, tm)
		profile.Columns[0].Values = append(profile.Columns[0].Values, 10, 2)
		profile.Columns[1].Values = append(profile.Columns[1].Values, 100, 20)
	}
	generic := &fakeSource{name: "generic", table: profile}
	svc := NewService(Sources{Generic: generic})

	out := svc.Read(context.Background(), GenericID("g06010_full"), ReadOptions{
		Resample: &Directive{Period: "30T", How: HowInstant},
	})
	if out == nil {
		t.Fatal("expected a table")
	}
	if out.Len() != 6 {
		t.Fatalf("expected 3 grid stamps x 2 depths, got %d rows", out.Len())
	}
	di, _ := out.ColumnIndex(DepthColumn)
	if out.Columns[di].Values[0] != 10 || out.Columns[di].Values[1] != 2 {
		t.Fatalf("expected depths ordered deepest first, got %v then %v",
			out.Columns[di].Values[0], out.Columns[di].Values[1])
	}
}
