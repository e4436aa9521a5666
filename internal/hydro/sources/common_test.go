package sources

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestParseDelimitedTabPayload(t *testing.T) {
	payload := strings.Join([]string{
		"Date Time\tEast [cm/s]\tNorth [cm/s]",
		"2017-08-01 00:30\t-999\t5.5",
		"2017-08-01 00:00\t10.25\t4.0",
		"not a timestamp\t1\t2",
		"2017-08-01 01:00\t\t6.0",
	}, "\n")

	tbl, err := parseDelimited(strings.NewReader(payload), delimitedFormat{comma: '\t', naValue: -999, hasNA: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", tbl.Len())
	}
	// Rows come back sorted even though the payload was not.
	want := time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)
	if !tbl.Times[0].Equal(want) {
		t.Fatalf("expected first row at %v, got %v", want, tbl.Times[0])
	}
	if !math.IsNaN(tbl.Columns[0].Values[1]) {
		t.Fatalf("expected -999 to read as missing, got %v", tbl.Columns[0].Values[1])
	}
	if !math.IsNaN(tbl.Columns[0].Values[2]) {
		t.Fatalf("expected a blank field to read as missing, got %v", tbl.Columns[0].Values[2])
	}
	if got := tbl.Columns[1].Values[2]; got != 6.0 {
		t.Fatalf("expected the column after the blank to keep its own reading, got %v", got)
	}
	if tbl.Columns[1].Name != "North [cm/s]" {
		t.Fatalf("unexpected column name %q", tbl.Columns[1].Name)
	}
}

func TestParseDelimitedTrimsPaddedFields(t *testing.T) {
	payload := "datetime, salinity\n2017-08-01 00:00 , 33.5\n"

	tbl, err := parseDelimited(strings.NewReader(payload), delimitedFormat{comma: ','})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Columns[0].Name != "salinity" {
		t.Fatalf("expected a trimmed column name, got %q", tbl.Columns[0].Name)
	}
	if tbl.Columns[0].Values[0] != 33.5 {
		t.Fatalf("expected 33.5, got %v", tbl.Columns[0].Values[0])
	}
	if !tbl.Times[0].Equal(time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected a trimmed timestamp, got %v", tbl.Times[0])
	}
}

func TestParseDelimitedRenamesColumns(t *testing.T) {
	payload := "# water quality\ndatetime,value\n2017-08-01 00:00,33.5\n"

	tbl, err := parseDelimited(strings.NewReader(payload), delimitedFormat{
		comma:    ',',
		comment:  '#',
		renameTo: []string{"Salinity"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Columns[0].Name != "Salinity" {
		t.Fatalf("expected positional rename, got %q", tbl.Columns[0].Name)
	}

	if _, err := parseDelimited(strings.NewReader(payload), delimitedFormat{
		comma:    ',',
		comment:  '#',
		renameTo: []string{"a", "b"},
	}); err == nil {
		t.Fatal("expected an error for a rename width mismatch")
	}
}

func TestParseDelimitedRejectsEmptyPayload(t *testing.T) {
	if _, err := parseDelimited(strings.NewReader("Date Time\tEast [cm/s]\n"), delimitedFormat{comma: '\t'}); err == nil {
		t.Fatal("expected an error for a header-only payload")
	}
}

func TestParseTimestampNormalizesToUTC(t *testing.T) {
	ts, err := parseTimestamp("2017-08-01T00:00:00.000-06:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2017, 8, 1, 6, 0, 0, 0, time.UTC)
	if !ts.Equal(want) || ts.Location() != time.UTC {
		t.Fatalf("expected %v in UTC, got %v", want, ts)
	}
}
