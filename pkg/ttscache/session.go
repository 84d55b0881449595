package ttscache

import (
	"context"
	"sync"
)

// sessionState holds one session's generation defaults and the order in
// which fingerprints were issued on it.
type sessionState struct {
	service     string
	language    string
	voice       string
	hasDefaults bool

	sequence []Fingerprint
}

// SequenceCoordinator tracks per-session defaults and issue order, and
// provides the barrier that delivers results in that order. Sessions have
// no ordering relationship with each other.
type SequenceCoordinator struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewSequenceCoordinator creates an empty coordinator.
func NewSequenceCoordinator() *SequenceCoordinator {
	return &SequenceCoordinator{sessions: make(map[string]*sessionState)}
}

func (sc *SequenceCoordinator) session(sessionID string) *sessionState {
	s, ok := sc.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		sc.sessions[sessionID] = s
	}
	return s
}

// RecordDefaults replaces the session's generation parameters, latest wins.
func (sc *SequenceCoordinator) RecordDefaults(sessionID, service, language, voice string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	s := sc.session(sessionID)
	s.service = service
	s.language = language
	s.voice = voice
	s.hasDefaults = true
}

// Defaults returns the session's recorded generation parameters.
func (sc *SequenceCoordinator) Defaults(sessionID string) (service, language, voice string, ok bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	s, found := sc.sessions[sessionID]
	if !found || !s.hasDefaults {
		return "", "", "", false
	}
	return s.service, s.language, s.voice, true
}

// Enqueue appends fp to the session's sequence unless it is already there.
func (sc *SequenceCoordinator) Enqueue(sessionID string, fp Fingerprint) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	s := sc.session(sessionID)
	for _, existing := range s.sequence {
		if existing == fp {
			return
		}
	}
	s.sequence = append(s.sequence, fp)
}

// Remove drops fp from every session sequence. Called when the cache evicts
// the fingerprint's entry.
func (sc *SequenceCoordinator) Remove(fp Fingerprint) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for _, s := range sc.sessions {
		for i, existing := range s.sequence {
			if existing == fp {
				s.sequence = append(s.sequence[:i], s.sequence[i+1:]...)
				break
			}
		}
	}
}

// predecessors returns a snapshot of the fingerprints preceding fp in the
// session's sequence. A fingerprint that is first in the sequence, or absent
// from it, has no predecessors.
func (sc *SequenceCoordinator) predecessors(sessionID string, fp Fingerprint) []Fingerprint {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	s, ok := sc.sessions[sessionID]
	if !ok {
		return nil
	}
	for i, existing := range s.sequence {
		if existing == fp {
			if i == 0 {
				return nil
			}
			prefix := make([]Fingerprint, i)
			copy(prefix, s.sequence[:i])
			return prefix
		}
	}
	return nil
}

// Barrier blocks until every fingerprint preceding fp in the session's
// sequence has reached a terminal status, as observed through settled.
// Failed predecessors never poison the wait for their successors: settled
// must swallow generation failures and report only ctx expiry. Predecessors
// evicted mid-wait count as settled.
func (sc *SequenceCoordinator) Barrier(ctx context.Context, sessionID string, fp Fingerprint, settled func(context.Context, Fingerprint) error) error {
	for _, pred := range sc.predecessors(sessionID, fp) {
		if err := settled(ctx, pred); err != nil {
			return err
		}
	}
	return nil
}

// Reset drops all session defaults and sequences.
func (sc *SequenceCoordinator) Reset() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.sessions = make(map[string]*sessionState)
}

// SessionCount returns the number of sessions with recorded state.
func (sc *SequenceCoordinator) SessionCount() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return len(sc.sessions)
}
