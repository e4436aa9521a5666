package sources

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"github.com/txcoastal/station-data-aggregation/internal/hydro"
)

const defaultTWDBBaseURL = "https://waterdatafortexas.org/coastal/api/stations"

// twdbParameters are the water-quality endpoints polled per station and the
// column name each one gets. Stations report a subset of these.
var twdbParameters = []struct {
	endpoint string
	column   string
}{
	{"seawater_salinity", "Salinity"},
	{"water_depth_nonvented", "Depth [m]"},
	{"water_temperature", "WaterT [deg C]"},
	{"water_dissolved_oxygen_concentration", "Dissolved oxygen concentration [mgl]"},
	{"water_dissolved_oxygen_percent_saturation", "Dissolved oxygen saturation concentration [%]"},
	{"water_ph", "pH level"},
	{"water_turbidity", "Turbidity [ntu]"},
}

// TWDBSource reads the state water-data portal's per-parameter CSV API and
// joins the parameters into one table per station.
type TWDBSource struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewTWDBSource creates a portal source. An empty baseURL selects the
// public API.
func NewTWDBSource(client *http.Client, baseURL string) *TWDBSource {
	if baseURL == "" {
		baseURL = defaultTWDBBaseURL
	}
	return &TWDBSource{
		name:    "twdb",
		baseURL: baseURL,
		client:  client,
		circuit: newCircuitBreaker("twdb"),
	}
}

func (s *TWDBSource) Name() string {
	return s.name
}

func (s *TWDBSource) Fetch(ctx context.Context, req hydro.FetchRequest) (*hydro.Table, error) {
	if len(req.IDs) != 1 {
		return nil, fmt.Errorf("twdb: expected exactly one station id, got %d", len(req.IDs))
	}
	station := req.IDs[0]

	binning := req.Binning
	if binning == "" {
		binning = hydro.BinningHour
	}

	merged := &hydro.Table{IndexName: hydro.DefaultIndexName}
	fetched := 0
	for _, p := range twdbParameters {
		pt, err := s.fetchParameter(ctx, station, p.endpoint, p.column, binning, req.Start, req.End)
		if err != nil {
			log.Printf("twdb: parameter %s unavailable for station %s: %v", p.endpoint, station, err)
			continue
		}
		merged = merged.Join(pt)
		fetched++
	}
	if fetched == 0 {
		return nil, fmt.Errorf("twdb: no parameters available for station %s", station)
	}

	merged.PrefixColumns(station)
	return merged, nil
}

func (s *TWDBSource) fetchParameter(ctx context.Context, station, endpoint, column, binning string, start, end *time.Time) (*hydro.Table, error) {
	values := url.Values{}
	values.Set("output_format", "csv")
	values.Set("binning", binning)
	if start != nil {
		values.Set("start_date", start.Format("2006-01-02"))
	}
	if end != nil {
		values.Set("end_date", end.Format("2006-01-02"))
	}

	body, err := fetchURL(ctx, s.client, s.circuit, s.baseURL+"/"+station+"/data/"+endpoint+"?"+values.Encode())
	if err != nil {
		return nil, err
	}
	return parseDelimited(bytes.NewReader(body), delimitedFormat{
		comma:    ',',
		comment:  '#',
		renameTo: []string{column},
	})
}
