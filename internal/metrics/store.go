package metrics

import (
	"sort"
	"sync"
	"time"
)

// DefaultHistorySize is the default number of samples retained per entity.
const DefaultHistorySize = 60

// Entity states tracked in the presence map.
const (
	StateRunning = "running"
	StatePaused  = "paused"
	StateExited  = "exited"
)

// Presence is what the store knows about an entity outside of its samples.
type Presence struct {
	ID    string
	Name  string
	State string
}

// Snapshot is an immutable copy of one entity's series taken at a single
// instant. Samples are oldest first.
type Snapshot struct {
	ID      string
	Name    string
	Samples []Sample
}

// Empty reports whether the snapshot holds no samples.
func (s Snapshot) Empty() bool { return len(s.Samples) == 0 }

// Latest returns the newest sample in the snapshot.
func (s Snapshot) Latest() (Sample, bool) {
	if len(s.Samples) == 0 {
		return Sample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}

// Frame is every series plus the presence map, copied under one lock so a
// render pass sees a consistent view.
type Frame struct {
	Taken    time.Time
	Series   []Snapshot // sorted by name, then id; excludes SystemID
	System   Snapshot
	Presence []Presence // sorted by name, then id
}

// Store manages one ring per entity. The ingestor is the only writer;
// readers receive copies and never iterate live rings.
type Store struct {
	mu       sync.RWMutex
	size     int
	series   map[string]*series
	presence map[string]Presence
}

type series struct {
	ring     *Ring[Sample]
	lastSeen time.Time
}

// NewStore creates a store whose rings hold size samples.
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Store{
		size:     size,
		series:   make(map[string]*series),
		presence: make(map[string]Presence),
	}
}

// Size returns the per-entity capacity.
func (s *Store) Size() int { return s.size }

// Push appends a sample to the entity's ring, creating the ring on first use.
// seen is the local arrival time and drives staleness; sample.Time comes
// from the engine's clock and only orders the series.
func (s *Store) Push(id string, sample Sample, seen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.getOrCreate(id, seen)
	sr.ring.Push(sample)
	if seen.After(sr.lastSeen) {
		sr.lastSeen = seen
	}
}

// Ensure creates an empty ring for id if none exists. now seeds the
// staleness clock so a ring that never receives samples still ages out.
func (s *Store) Ensure(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(id, now)
}

func (s *Store) getOrCreate(id string, now time.Time) *series {
	sr, ok := s.series[id]
	if !ok {
		sr = &series{ring: NewRing[Sample](s.size), lastSeen: now}
		s.series[id] = sr
	}
	return sr
}

// Has reports whether a ring exists for id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.series[id]
	return ok
}

// Clear drops the ring for id. It returns false when there was none.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.series[id]; !ok {
		return false
	}
	delete(s.series, id)
	return true
}

// Stale returns the ids, excluding SystemID, whose last sample arrived
// before cutoff.
func (s *Store) Stale(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, sr := range s.series {
		if id != SystemID && sr.lastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of rings, including the system series.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// Snapshot copies the series for id. An absent entity yields an empty
// snapshot rather than an error.
func (s *Store) Snapshot(id string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(id)
}

func (s *Store) snapshotLocked(id string) Snapshot {
	snap := Snapshot{ID: id, Name: id}
	if p, ok := s.presence[id]; ok && p.Name != "" {
		snap.Name = p.Name
	}
	if sr, ok := s.series[id]; ok {
		snap.Samples = sr.ring.Snapshot()
	}
	return snap
}

// Latest returns the newest sample for each entity, keyed by id.
func (s *Store) Latest() map[string]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Sample, len(s.series))
	for id, sr := range s.series {
		if id == SystemID {
			continue
		}
		if v, ok := sr.ring.Newest(); ok {
			out[id] = v
		}
	}
	return out
}

// Frame copies every series and the presence map at once. When ids is
// non-empty only those entities are included.
func (s *Store) Frame(now time.Time, ids ...string) Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := Frame{Taken: now, System: s.snapshotLocked(SystemID)}

	want := func(string) bool { return true }
	if len(ids) > 0 {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		want = func(id string) bool { return set[id] }
	}

	for id := range s.series {
		if id == SystemID || !want(id) {
			continue
		}
		f.Series = append(f.Series, s.snapshotLocked(id))
	}
	sort.Slice(f.Series, func(i, j int) bool {
		if f.Series[i].Name != f.Series[j].Name {
			return f.Series[i].Name < f.Series[j].Name
		}
		return f.Series[i].ID < f.Series[j].ID
	})

	for id, p := range s.presence {
		if want(id) {
			f.Presence = append(f.Presence, p)
		}
	}
	sort.Slice(f.Presence, func(i, j int) bool {
		if f.Presence[i].Name != f.Presence[j].Name {
			return f.Presence[i].Name < f.Presence[j].Name
		}
		return f.Presence[i].ID < f.Presence[j].ID
	})
	return f
}

// SetPresence records or replaces what is known about an entity.
func (s *Store) SetPresence(p Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.presence[p.ID]; ok && p.Name == "" {
		p.Name = old.Name
	}
	s.presence[p.ID] = p
}

// RemovePresence forgets an entity.
func (s *Store) RemovePresence(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presence, id)
}

// PresenceOf returns the presence entry for id.
func (s *Store) PresenceOf(id string) (Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presence[id]
	return p, ok
}

// Reset drops all rings and presence.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[string]*series)
	s.presence = make(map[string]Presence)
}
