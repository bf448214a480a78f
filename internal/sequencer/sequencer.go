// Package sequencer orders dispatchable uploads and enforces that at most one
// job is in flight at a time. It holds no upload state of its own: callers
// feed it eligible ids from registry snapshots and report job completion.
package sequencer

import "sync"

// Phase describes what the sequencer is currently doing.
type Phase int

const (
	// PhaseIdle means no job is in flight and the queue may be empty.
	PhaseIdle Phase = iota
	// PhaseAwaitingResult means a job was handed out and has not finished.
	PhaseAwaitingResult
)

// Sequencer is a FIFO dispatch gate. All methods are safe for concurrent use.
type Sequencer struct {
	mu      sync.Mutex
	phase   Phase
	queue   []string
	queued  map[string]struct{}
	current string
}

// New constructs an empty Sequencer.
func New() *Sequencer {
	return &Sequencer{queued: make(map[string]struct{})}
}

// Offer merges eligible ids into the queue in the given order. Ids already
// queued or currently in flight are ignored, so re-offering the same snapshot
// is harmless; an id that previously left the queue re-enters at the tail.
func (s *Sequencer) Offer(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id == "" || id == s.current {
			continue
		}
		if _, ok := s.queued[id]; ok {
			continue
		}
		s.queued[id] = struct{}{}
		s.queue = append(s.queue, id)
	}
}

// Next hands out the head of the queue. It returns false while a job is in
// flight or the queue is empty.
func (s *Sequencer) Next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle || len(s.queue) == 0 {
		return "", false
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queued, id)
	s.current = id
	s.phase = PhaseAwaitingResult
	return id, true
}

// Done reports that the in-flight job finished, regardless of outcome. A
// stale id is ignored.
func (s *Sequencer) Done(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.current {
		return
	}
	s.current = ""
	s.phase = PhaseIdle
}

// Cancel removes an undispatched id from the queue. It reports false when the
// id is in flight or unknown; an in-flight job cannot be recalled.
func (s *Sequencer) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queued[id]; !ok {
		return false
	}
	delete(s.queued, id)
	for i, queued := range s.queue {
		if queued == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return true
}

// InFlight returns the id currently handed out, if any.
func (s *Sequencer) InFlight() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != ""
}

// Drained reports whether the queue is empty and nothing is in flight.
func (s *Sequencer) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && s.current == ""
}

// Len returns the number of queued, undispatched ids.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
