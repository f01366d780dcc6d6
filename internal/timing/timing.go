// Package timing keeps per-request phase timings until the request is
// released.
package timing

import (
	"sync"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Phase names a span of the request pipeline.
type Phase string

const (
	PreAPI  Phase = "pre-api"
	API     Phase = "api"
	PostAPI Phase = "post-api"
)

// Phases lists the phases in pipeline order.
var Phases = []Phase{PreAPI, API, PostAPI}

// DefaultCapacity bounds the number of in-flight requests tracked.
const DefaultCapacity = 4096

// Record is the start and end of one phase, in milliseconds since the epoch.
type Record struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Total float64 `json:"total"`
}

// Complete reports whether both start and end were recorded.
func (r Record) Complete() bool { return r.Start > 0 && r.End > 0 }

// Duration returns End - Start in milliseconds.
func (r Record) Duration() float64 { return r.Total }

// Store maps request ids to phase records. Entries live until Release; when
// capacity is reached the oldest request is evicted.
type Store struct {
	mu       sync.Mutex
	capacity int
	now      func() time.Time
	entries  *orderedmap.OrderedMap[string, map[Phase]Record]
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store holding at most capacity requests.
func NewStore(capacity int, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		capacity: capacity,
		now:      time.Now,
		entries:  orderedmap.New[string, map[Phase]Record](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a fresh request id.
func NewID() string { return uuid.NewString() }

func (s *Store) stamp() float64 {
	return float64(s.now().UnixNano()) / float64(time.Millisecond)
}

// Start records the start of phase for id, resetting any previous record of
// that phase.
func (s *Store) Start(id string, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	phases := s.phasesLocked(id)
	phases[phase] = Record{Start: s.stamp()}
}

// End records the end of phase for id. Ending a phase that never started
// leaves Start at zero and Total at zero.
func (s *Store) End(id string, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	phases := s.phasesLocked(id)
	rec := phases[phase]
	rec.End = s.stamp()
	if rec.Start > 0 {
		rec.Total = rec.End - rec.Start
	}
	phases[phase] = rec
}

func (s *Store) phasesLocked(id string) map[Phase]Record {
	if phases, ok := s.entries.Get(id); ok {
		return phases
	}
	for s.entries.Len() >= s.capacity {
		oldest := s.entries.Oldest()
		if oldest == nil {
			break
		}
		s.entries.Delete(oldest.Key)
	}
	phases := make(map[Phase]Record, len(Phases))
	s.entries.Set(id, phases)
	return phases
}

// Get returns the record of one phase.
func (s *Store) Get(id string, phase Phase) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	phases, ok := s.entries.Get(id)
	if !ok {
		return Record{}, false
	}
	rec, ok := phases[phase]
	return rec, ok
}

// Snapshot returns a copy of every phase recorded for id.
func (s *Store) Snapshot(id string) map[Phase]Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Phase]Record, len(Phases))
	if phases, ok := s.entries.Get(id); ok {
		for k, v := range phases {
			out[k] = v
		}
	}
	return out
}

// RoundTrip returns post-api end minus pre-api start for id.
func (s *Store) RoundTrip(id string) (started, ended, total float64) {
	snap := s.Snapshot(id)
	started = snap[PreAPI].Start
	ended = snap[PostAPI].End
	if started > 0 && ended > 0 {
		total = ended - started
	}
	return started, ended, total
}

// Release drops every record of id.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Delete(id)
}

// Len returns the number of tracked requests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}
