package core

// SessionRegistry hands out one opaque session token per agent for the
// lifetime of a conversation. Tokens are passed to model backends so that
// provider-side caching is partitioned per agent and never leaks context
// between agents.
type SessionRegistry interface {
	// TokenFor returns the token of agentID, allocating it on first use.
	TokenFor(agentID string) string
	// Clear forgets every token; the next TokenFor call allocates afresh.
	Clear()
	// Snapshot returns a copy of all allocated tokens keyed by agent id.
	Snapshot() map[string]string
}
