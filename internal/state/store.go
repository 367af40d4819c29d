// Package state holds the UI-owned state of the camera app: whether capture
// is on and the current detection result set.
//
// Every Start bumps a generation counter. Results are applied only when they
// carry the current generation while capture is on, so a response that
// arrives after Stop (or after a restart) is discarded.
package state

import (
	"sync"

	"maskcam/internal/models"
)

// Snapshot is an immutable view of the store handed to subscribers.
type Snapshot struct {
	Active     bool
	Generation uint64
	Results    []models.DetectionResult
}

type Store struct {
	mu sync.RWMutex

	active     bool
	generation uint64
	results    []models.DetectionResult

	subsMu sync.Mutex
	subs   []func(Snapshot)
}

func New() *Store {
	return &Store{}
}

// Subscribe registers fn to be called after every state change.
// Callbacks run on the goroutine that made the change.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

// Begin marks capture as on and returns the new generation.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	s.active = true
	s.generation++
	s.results = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return snap.Generation
}

// End marks capture as off and clears the results. The generation is bumped
// so late responses from the finished session are rejected.
func (s *Store) End() {
	s.mu.Lock()
	s.active = false
	s.generation++
	s.results = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetResults replaces the result set wholesale. It returns false and leaves
// the store untouched when gen is stale or capture is off.
func (s *Store) SetResults(gen uint64, results []models.DetectionResult) bool {
	s.mu.Lock()
	if !s.active || gen != s.generation {
		s.mu.Unlock()
		return false
	}

	s.results = append([]models.DetectionResult(nil), results...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) Results() []models.DetectionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DetectionResult(nil), s.results...)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Active:     s.active,
		Generation: s.generation,
		Results:    append([]models.DetectionResult(nil), s.results...),
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subsMu.Lock()
	subs := make([]func(Snapshot), len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
