package store

import (
	"errors"
	"sync"
	"time"

	"github.com/txcoastal/station-data-aggregation/internal/hydro"
)

var (
	// ErrNotFound is returned when no data is available for a given station.
	ErrNotFound = errors.New("no data for station")
)

// TableSnapshot is one fetched table together with when it was fetched.
type TableSnapshot struct {
	Station   string       `json:"station"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Table     *hydro.Table `json:"table"`
}

// snapshotHistory holds a fetch-ordered list of snapshots for a station.
type snapshotHistory struct {
	snapshots []TableSnapshot
}

// MemoryStore is a concurrency-safe in-memory history of fetched tables.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station label, value: history
	data map[string]*snapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per station
	maxAge     time.Duration // optional max age for snapshots
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*snapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveSnapshot appends a new snapshot for its station and enforces retention.
func (s *MemoryStore) SaveSnapshot(snapshot TableSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[snapshot.Station]
	if !ok {
		history = &snapshotHistory{}
		s.data[snapshot.Station] = history
	}

	history.snapshots = append(history.snapshots, snapshot)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.snapshots) > s.maxHistory {
		over := len(history.snapshots) - s.maxHistory
		history.snapshots = history.snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.snapshots); i++ {
			if !history.snapshots[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			history.snapshots = history.snapshots[i:]
		}
	}
}

// GetLatest returns the most recent snapshot for a station.
func (s *MemoryStore) GetLatest(station string) (TableSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[station]
	if !ok || len(history.snapshots) == 0 {
		return TableSnapshot{}, ErrNotFound
	}
	return history.snapshots[len(history.snapshots)-1], nil
}

// GetRange returns all snapshots for a station fetched between from and to
// (inclusive).
func (s *MemoryStore) GetRange(station string, from, to time.Time) ([]TableSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[station]
	if !ok || len(history.snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []TableSnapshot
	for _, snap := range history.snapshots {
		if (snap.FetchedAt.Equal(from) || snap.FetchedAt.After(from)) &&
			(snap.FetchedAt.Equal(to) || snap.FetchedAt.Before(to)) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
