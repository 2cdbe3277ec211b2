package core

import (
	"sort"
	"sync"
	"time"
)

// Phase is the lifecycle phase of a conversation.
type Phase string

const (
	// PhaseIdle means no conversation is running; SendMessage is rejected.
	PhaseIdle Phase = "idle"
	// PhaseActive means a conversation was started and accepts messages.
	PhaseActive Phase = "active"
)

// DefaultHistoryWindow is the number of recent messages read when building an
// agent's context.
const DefaultHistoryWindow = 10

// State is the mutable record of one conversation: the append-only history,
// the set of active agents and the lifecycle phase. It is safe for concurrent
// access.
//
// Contract:
//   - the coordinator is always a member of the active set
//   - History/Recent return copies
//   - messages are only ever appended, never reordered or edited
type State struct {
	coordinator string
	phase       Phase
	history     []Message
	active      map[string]struct{}
	activatedAt map[string]int // history length when the agent was admitted
	updated     time.Time
	mu          sync.RWMutex
}

// NewState creates an idle state whose active set contains only coordinator.
func NewState(coordinator string) *State {
	s := &State{coordinator: coordinator}
	s.resetLocked()
	return s
}

func (s *State) resetLocked() {
	s.phase = PhaseIdle
	s.history = []Message{}
	s.active = map[string]struct{}{s.coordinator: {}}
	s.activatedAt = map[string]int{s.coordinator: 0}
	s.updated = time.Now()
}

// Reset clears history and returns the active set to exactly the coordinator.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Coordinator returns the id of the always-active coordinator.
func (s *State) Coordinator() string { return s.coordinator }

// Phase returns the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase moves the conversation to phase p.
func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	s.updated = time.Now()
}

// Append adds msg to the end of the history.
func (s *State) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	s.updated = time.Now()
}

// Len returns the number of messages in the history.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// History returns a copy of the full history in causal order.
func (s *State) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Recent returns a copy of the last k messages (all messages if k <= 0 or
// k exceeds the history length).
func (s *State) Recent(k int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if k > 0 && len(s.history) > k {
		start = len(s.history) - k
	}
	out := make([]Message, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// AuthoredInLast counts how many of the last n messages were written by author.
func (s *State) AuthoredInLast(author string, n int) int {
	count := 0
	for _, m := range s.Recent(n) {
		if m.Author == author {
			count++
		}
	}
	return count
}

// Activate adds id to the active set. It reports whether id was newly added.
func (s *State) Activate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; ok {
		return false
	}
	s.active[id] = struct{}{}
	s.activatedAt[id] = len(s.history)
	s.updated = time.Now()
	return true
}

// IsActive reports whether id is a member of the active set.
func (s *State) IsActive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[id]
	return ok
}

// ActiveAgents returns the active set ordered by admission (coordinator
// first), ties broken by id.
func (s *State) ActiveAgents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i] == s.coordinator {
			return true
		}
		if ids[j] == s.coordinator {
			return false
		}
		ai, aj := s.activatedAt[ids[i]], s.activatedAt[ids[j]]
		if ai != aj {
			return ai < aj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Updated returns the time of the last mutation.
func (s *State) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}
