package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/txcoastal/station-data-aggregation/internal/hydro"
)

const defaultUSGSBaseURL = "https://waterservices.usgs.gov"

const (
	cubicFootInCubicMeters = 0.3048 * 0.3048 * 0.3048
	footInMeters           = 0.3048
	acreFootInCubicMeters  = 1233.48
)

// usgsVariables maps the variable names callers use onto the gauge network's
// parameter codes, output column labels and imperial-to-metric factors.
var usgsVariables = map[string]struct {
	code   string
	column string
	factor float64
}{
	hydro.VariableFlow:    {"00060", "Flow rate [m^3/s]", cubicFootInCubicMeters},
	hydro.VariableHeight:  {"00065", "Gage height [m]", footInMeters},
	hydro.VariableStorage: {"00054", "Reservoir storage [m^3]", acreFootInCubicMeters},
}

// USGSSource reads the national stream-gauge network's JSON API. One request
// covers any number of sites; each site becomes one metric column named
// "<site>: <variable label>".
type USGSSource struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewUSGSSource creates a gauge source. An empty baseURL selects the public
// API.
func NewUSGSSource(client *http.Client, baseURL string) *USGSSource {
	if baseURL == "" {
		baseURL = defaultUSGSBaseURL
	}
	return &USGSSource{
		name:    "usgs",
		baseURL: baseURL,
		client:  client,
		circuit: newCircuitBreaker("usgs"),
	}
}

func (s *USGSSource) Name() string {
	return s.name
}

func (s *USGSSource) Fetch(ctx context.Context, req hydro.FetchRequest) (*hydro.Table, error) {
	if len(req.IDs) == 0 {
		return nil, fmt.Errorf("usgs: at least one site is required")
	}
	if req.Start == nil || req.End == nil {
		return nil, fmt.Errorf("usgs: start and end dates are required")
	}

	freq := req.Freq
	if freq == "" {
		freq = hydro.FreqInstantaneous
	}
	if freq != hydro.FreqInstantaneous && freq != hydro.FreqDaily {
		return nil, fmt.Errorf("usgs: unknown frequency %q (use iv or dv)", req.Freq)
	}

	variable := req.Variable
	if variable == "" {
		variable = hydro.VariableFlow
	}
	v, ok := usgsVariables[variable]
	if !ok {
		return nil, fmt.Errorf("usgs: unknown variable %q", req.Variable)
	}

	values := url.Values{}
	values.Set("format", "json")
	values.Set("sites", strings.Join(req.IDs, ","))
	values.Set("parameterCd", v.code)
	values.Set("startDT", req.Start.Format("2006-01-02"))
	values.Set("endDT", req.End.Format("2006-01-02"))

	body, err := fetchURL(ctx, s.client, s.circuit, s.baseURL+"/nwis/"+freq+"/?"+values.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		Value struct {
			TimeSeries []struct {
				SourceInfo struct {
					SiteCode []struct {
						Value string `json:"value"`
					} `json:"siteCode"`
				} `json:"sourceInfo"`
				Variable struct {
					NoDataValue *float64 `json:"noDataValue"`
				} `json:"variable"`
				Values []struct {
					Value []struct {
						Value    string `json:"value"`
						DateTime string `json:"dateTime"`
					} `json:"value"`
				} `json:"values"`
			} `json:"timeSeries"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("usgs: decoding response: %w", err)
	}
	if len(payload.Value.TimeSeries) == 0 {
		return nil, fmt.Errorf("usgs: no data returned for sites %s", strings.Join(req.IDs, ","))
	}

	merged := &hydro.Table{IndexName: hydro.DefaultIndexName}
	for _, series := range payload.Value.TimeSeries {
		site := "unknown"
		if len(series.SourceInfo.SiteCode) > 0 {
			site = series.SourceInfo.SiteCode[0].Value
		}

		st := &hydro.Table{IndexName: hydro.DefaultIndexName, Columns: []hydro.Column{
			{Name: site + ": " + v.column},
		}}
		for _, block := range series.Values {
			for _, point := range block.Value {
				ts, err := parseTimestamp(point.DateTime)
				if err != nil {
					continue
				}
				st.Times = append(st.Times, ts)
				st.Columns[0].Values = append(st.Columns[0].Values, convertReading(point.Value, series.Variable.NoDataValue, v.factor))
			}
		}
		st.SortByTime()
		merged = merged.Join(st)
	}
	return merged, nil
}

// convertReading parses one gauge reading and applies the metric factor.
// The no-data sentinel is only honored when the series actually carried one.
func convertReading(raw string, noData *float64, factor float64) float64 {
	val, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	if noData != nil && val == *noData {
		return math.NaN()
	}
	return val * factor
}
