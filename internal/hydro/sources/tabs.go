package sources

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/txcoastal/station-data-aggregation/internal/hydro"
)

const defaultTABSBaseURL = "http://pong.tamu.edu/tabswebsite"

// tabsFeeds are the per-buoy sub-tables, fetched and joined in this order.
// Not every buoy carries every feed.
var tabsFeeds = []string{"met", "salt", "ven", "wave"}

// TABSSource reads the Texas Automated Buoy System query page. A buoy read
// joins up to four feeds (meteorology, salinity, velocity, waves) into one
// table with the buoy name prefixed onto every column.
type TABSSource struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewTABSSource creates a buoy source. An empty baseURL selects the public
// query page.
func NewTABSSource(client *http.Client, baseURL string) *TABSSource {
	if baseURL == "" {
		baseURL = defaultTABSBaseURL
	}
	return &TABSSource{
		name:    "tabs",
		baseURL: baseURL,
		client:  client,
		circuit: newCircuitBreaker("tabs"),
	}
}

func (s *TABSSource) Name() string {
	return s.name
}

func (s *TABSSource) Fetch(ctx context.Context, req hydro.FetchRequest) (*hydro.Table, error) {
	if len(req.IDs) != 1 {
		return nil, fmt.Errorf("tabs: expected exactly one buoy id, got %d", len(req.IDs))
	}
	if req.Start == nil || req.End == nil {
		return nil, fmt.Errorf("tabs: start and end dates are required")
	}
	buoy := req.IDs[0]

	feeds := tabsFeeds
	if req.Feed != "" {
		feeds = []string{req.Feed}
	}

	merged := &hydro.Table{IndexName: hydro.DefaultIndexName}
	fetched := 0
	for _, feed := range feeds {
		ft, err := s.fetchFeed(ctx, buoy, feed, *req.Start, *req.End)
		if err != nil {
			// Buoys carry different instrument sets; a missing feed is
			// normal and must not sink the read.
			log.Printf("tabs: feed %s unavailable for buoy %s: %v", feed, buoy, err)
			continue
		}
		tagVelocityColumns(ft, feed)
		merged = merged.Join(ft)
		fetched++
	}
	if fetched == 0 {
		return nil, fmt.Errorf("tabs: no feeds available for buoy %s", buoy)
	}

	merged.PrefixColumns(buoy)
	return merged, nil
}

func (s *TABSSource) fetchFeed(ctx context.Context, buoy, feed string, start, end time.Time) (*hydro.Table, error) {
	values := url.Values{}
	values.Set("Buoyname", buoy)
	values.Set("table", feed)
	values.Set("Datatype", "download")
	values.Set("units", "M")
	values.Set("tz", "UTC")
	values.Set("model", "False")
	values.Set("datepicker", start.Format("2006-01-02")+" - "+end.Format("2006-01-02"))

	body, err := fetchURL(ctx, s.client, s.circuit, s.baseURL+"/subpages/tabsquery.php?"+values.Encode())
	if err != nil {
		return nil, err
	}
	return parseDelimited(bytes.NewReader(body), delimitedFormat{
		comma:   '\t',
		naValue: -999,
		hasNA:   true,
	})
}

// tagVelocityColumns disambiguates the velocity column names the velocity
// and meteorology feeds share (East, North, Speed, Dir).
func tagVelocityColumns(t *hydro.Table, feed string) {
	var tag string
	switch feed {
	case "ven":
		tag = " (water)"
	case "met":
		tag = " (air)"
	default:
		return
	}
	for i, c := range t.Columns {
		base := c.Name
		if j := strings.Index(base, " ["); j >= 0 {
			base = base[:j]
		}
		switch base {
		case "East", "North", "Speed", "Dir":
			t.Columns[i].Name = c.Name + tag
		}
	}
}
