package hydro

import (
	"context"
)

// Source abstracts one upstream network (the buoy query pages, the
// water-data portal, the stream-gauge API, the generic query pages).
// Implementations return a table in raw UTC with their network's column
// naming already applied.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) (*Table, error)
}

// Sources holds one Source per station network. Fields may be left nil in
// tests that never route to them.
type Sources struct {
	Buoy    Source
	Gauge   Source
	Portal  Source
	Generic Source
}
