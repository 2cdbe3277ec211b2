package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRegistry is a process local core.SessionRegistry. Tokens are
// allocated lazily and stay stable until Clear is called. It is safe for
// concurrent access.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	tokens map[string]string
	now    func() time.Time
	suffix func() string
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		tokens: make(map[string]string),
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// TokenFor returns the token of agentID, creating
// "<agentID>-<unix millis>-<random>" on first use.
func (r *InMemoryRegistry) TokenFor(agentID string) string {
	r.mu.RLock()
	tok, ok := r.tokens[agentID]
	r.mu.RUnlock()
	if ok {
		return tok
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another goroutine may have won the race
	if tok, ok := r.tokens[agentID]; ok {
		return tok
	}
	tok = fmt.Sprintf("%s-%d-%s", agentID, r.now().UnixMilli(), r.suffix())
	r.tokens[agentID] = tok
	return tok
}

// Clear drops all tokens.
func (r *InMemoryRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = make(map[string]string)
}

// Snapshot returns a copy of the allocated tokens.
func (r *InMemoryRegistry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.tokens))
	for k, v := range r.tokens {
		out[k] = v
	}
	return out
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
