package hydro

import (
	"fmt"
	"strings"
	"unicode"
)

// StationID identifies a station together with the network it belongs to.
// The concrete type decides which Source serves the read.
type StationID interface {
	fmt.Stringer
	stationID()
}

// BuoyID is a single-character coastal buoy name ("B", "F", "V").
type BuoyID string

// GaugeIDList is one or more 8-digit stream-gauge site numbers fetched in a
// single request.
type GaugeIDList []string

// PortalID is an all-letter water-data portal station name ("BOLI").
type PortalID string

// GenericID is any identifier matching no other convention; it is served by
// the generic query-page source (tide gauges, model points, daily files).
type GenericID string

func (BuoyID) stationID()      {}
func (GaugeIDList) stationID() {}
func (PortalID) stationID()    {}
func (GenericID) stationID()   {}

func (b BuoyID) String() string    { return string(b) }
func (p PortalID) String() string  { return string(p) }
func (g GenericID) String() string { return string(g) }

func (l GaugeIDList) String() string { return strings.Join(l, ",") }

// ClassifyStation maps raw station identifiers onto a network:
// several identifiers are always a gauge list, a single character is a buoy,
// eight characters are a gauge, all-letter names belong to the water-data
// portal and anything else goes to the generic source.
func ClassifyStation(ids ...string) (StationID, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		cleaned = append(cleaned, id)
	}

	switch len(cleaned) {
	case 0:
		return nil, fmt.Errorf("no station id given")
	case 1:
	default:
		return GaugeIDList(cleaned), nil
	}

	id := cleaned[0]
	switch {
	case len(id) == 1:
		return BuoyID(id), nil
	case len(id) == 8:
		return GaugeIDList{id}, nil
	case isAlphabetic(id):
		return PortalID(id), nil
	default:
		return GenericID(id), nil
	}
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
