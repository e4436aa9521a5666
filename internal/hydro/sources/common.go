package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/txcoastal/station-data-aggregation/internal/hydro"
)

var (
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// fetchURL issues a single GET through the circuit breaker and returns the
// response body. There is no retry; a failed call only feeds the breaker.
func fetchURL(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, rawURL string) ([]byte, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	result, err := cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}

// delimitedFormat describes one network's delimited payload shape.
type delimitedFormat struct {
	comma   rune
	comment rune

	// naValue marks missing readings numerically ("-999" in buoy feeds).
	// Blank and unparseable fields are always treated as missing.
	naValue float64
	hasNA   bool

	// renameTo overrides the value column names positionally; the payload's
	// own header names are discarded.
	renameTo []string
}

// parseDelimited reads a delimited time-series payload into a table. The
// first field of every row is the timestamp; all remaining fields are
// numeric. Rows whose timestamp does not parse are skipped, and the result
// is sorted by time.
func parseDelimited(r io.Reader, f delimitedFormat) (*hydro.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = f.comma
	if f.comment != 0 {
		cr.Comment = f.comment
	}
	cr.FieldsPerRecord = -1
	// TrimLeadingSpace would swallow the tab of a blank tab-delimited
	// field and shift the row; fields are trimmed as they are parsed.
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing delimited payload: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("delimited payload has no data rows")
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("delimited payload needs a timestamp and at least one value column")
	}
	names := header[1:]

	t := &hydro.Table{IndexName: hydro.DefaultIndexName, Columns: make([]hydro.Column, len(names))}
	for i, n := range names {
		t.Columns[i] = hydro.Column{Name: strings.TrimSpace(n)}
	}
	if len(f.renameTo) > 0 {
		if err := t.RenameColumns(f.renameTo); err != nil {
			return nil, fmt.Errorf("renaming payload columns: %w", err)
		}
	}

	for _, rec := range records[1:] {
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			continue
		}
		t.Times = append(t.Times, ts)
		for ci := range t.Columns {
			v := math.NaN()
			if ci+1 < len(rec) {
				v = f.parseValue(rec[ci+1])
			}
			t.Columns[ci].Values = append(t.Columns[ci].Values, v)
		}
	}
	t.SortByTime()
	return t, nil
}

func (f delimitedFormat) parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	if f.hasNA && v == f.naValue {
		return math.NaN()
	}
	return v
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp parses an upstream timestamp and normalizes it to UTC.
// Zone-less stamps are taken as UTC; the query pages are always asked for
// UTC output.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
