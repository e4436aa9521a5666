package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"
	"github.com/txcoastal/station-data-aggregation/internal/common"
	"github.com/txcoastal/station-data-aggregation/internal/hydro"
)

// GenericSource reads everything the buoy query page serves beyond the
// buoys themselves: tide gauges with a selectable datum, model output at a
// chosen vertical layer, and the daily "_full" profile files.
type GenericSource struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewGenericSource creates a generic source. An empty baseURL selects the
// public query page.
func NewGenericSource(client *http.Client, baseURL string) *GenericSource {
	if baseURL == "" {
		baseURL = defaultTABSBaseURL
	}
	return &GenericSource{
		name:    "generic",
		baseURL: baseURL,
		client:  client,
		circuit: newCircuitBreaker("generic"),
	}
}

func (s *GenericSource) Name() string {
	return s.name
}

func (s *GenericSource) Fetch(ctx context.Context, req hydro.FetchRequest) (*hydro.Table, error) {
	if len(req.IDs) != 1 {
		return nil, fmt.Errorf("generic: expected exactly one station id, got %d", len(req.IDs))
	}
	id := req.IDs[0]

	if common.HasAny(id, "full") {
		return s.fetchDailyFile(ctx, id, req)
	}
	return s.fetchQueryPage(ctx, id, req)
}

// fetchDailyFile reads a whole "_all" daily profile file and trims it to
// the requested window afterwards; the file endpoint takes no dates. Column
// names are kept as-is so the depth column stays recognizable.
func (s *GenericSource) fetchDailyFile(ctx context.Context, id string, req hydro.FetchRequest) (*hydro.Table, error) {
	body, err := fetchURL(ctx, s.client, s.circuit, s.baseURL+"/daily/"+id+"_all")
	if err != nil {
		return nil, err
	}
	t, err := parseDelimited(bytes.NewReader(body), delimitedFormat{
		comma:   '\t',
		naValue: -999,
		hasNA:   true,
	})
	if err != nil {
		return nil, err
	}
	if req.Start != nil || req.End != nil {
		t = t.Truncate(req.Start, req.End)
	}
	return t, nil
}

func (s *GenericSource) fetchQueryPage(ctx context.Context, id string, req hydro.FetchRequest) (*hydro.Table, error) {
	if req.Start == nil || req.End == nil {
		return nil, fmt.Errorf("generic: start and end dates are required for %s", id)
	}

	values := url.Values{}
	values.Set("Buoyname", id)
	values.Set("Datatype", "download")
	values.Set("units", "M")
	values.Set("tz", "UTC")
	values.Set("datepicker", req.Start.Format("2006-01-02")+" - "+req.End.Format("2006-01-02"))
	if req.Model {
		values.Set("model", "True")
		values.Set("modelonly", "True")
		values.Set("s_rho", strconv.Itoa(req.Layer))
	} else {
		values.Set("model", "False")
		values.Set("modelonly", "False")
	}
	if req.Datum != "" {
		values.Set("datum", req.Datum)
	}

	body, err := fetchURL(ctx, s.client, s.circuit, s.baseURL+"/subpages/tabsquery.php?"+values.Encode())
	if err != nil {
		return nil, err
	}
	t, err := parseDelimited(bytes.NewReader(body), delimitedFormat{
		comma:   '\t',
		naValue: -999,
		hasNA:   true,
	})
	if err != nil {
		return nil, err
	}
	t.PrefixColumns(id)
	return t, nil
}
