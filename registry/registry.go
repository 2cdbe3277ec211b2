package registry

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/mention"
)

var (
	// ErrNoAgents is returned when a registry is built without descriptors.
	ErrNoAgents = errors.New("registry has no agents")
	// ErrInvalidID is returned for ids that cannot be @-mentioned.
	ErrInvalidID = errors.New("invalid agent id")
	// ErrDuplicateAgent is returned when two descriptors share an id.
	ErrDuplicateAgent = errors.New("duplicate agent id")
	// ErrCoordinator is returned unless exactly one descriptor is the coordinator.
	ErrCoordinator = errors.New("registry needs exactly one coordinator")
)

// Registry is an immutable, validated set of agent descriptors.
type Registry struct {
	agents      map[string]core.AgentDescriptor
	order       []string
	coordinator string
}

// New validates descriptors and builds a registry. Ids must be unique, usable
// in "@id" mentions and exactly one descriptor must be the coordinator.
// core.UserAuthor is reserved.
func New(descs ...core.AgentDescriptor) (*Registry, error) {
	if len(descs) == 0 {
		return nil, ErrNoAgents
	}

	r := &Registry{
		agents: make(map[string]core.AgentDescriptor, len(descs)),
		order:  make([]string, 0, len(descs)),
	}

	for _, d := range descs {
		if !mention.ValidID(d.ID) || d.ID == core.UserAuthor {
			return nil, fmt.Errorf("%w: %q", ErrInvalidID, d.ID)
		}
		if _, ok := r.agents[d.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAgent, d.ID)
		}
		if d.IsDefaultCoordinator {
			if r.coordinator != "" {
				return nil, fmt.Errorf("%w: both %q and %q", ErrCoordinator, r.coordinator, d.ID)
			}
			r.coordinator = d.ID
		}
		r.agents[d.ID] = d
		r.order = append(r.order, d.ID)
	}

	if r.coordinator == "" {
		return nil, fmt.Errorf("%w: none configured", ErrCoordinator)
	}

	return r, nil
}

// MustNew is like New but panics on error. Intended for tests and examples.
func MustNew(descs ...core.AgentDescriptor) *Registry {
	r, err := New(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the descriptor of id.
func (r *Registry) Lookup(id string) (core.AgentDescriptor, bool) {
	d, ok := r.agents[id]
	return d, ok
}

// Get returns the descriptor of id or core.ErrUnknownAgent.
func (r *Registry) Get(id string) (core.AgentDescriptor, error) {
	d, ok := r.agents[id]
	if !ok {
		return core.AgentDescriptor{}, fmt.Errorf("%w: %q", core.ErrUnknownAgent, id)
	}
	return d, nil
}

// IsMentionable reports whether id is known and may be drawn in by a mention.
func (r *Registry) IsMentionable(id string) bool {
	d, ok := r.agents[id]
	return ok && d.Mentionable
}

// Coordinator returns the default coordinator.
func (r *Registry) Coordinator() core.AgentDescriptor { return r.agents[r.coordinator] }

// All returns the descriptors in declaration order.
func (r *Registry) All() []core.AgentDescriptor {
	out := make([]core.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// IDs returns the agent ids in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of agents.
func (r *Registry) Len() int { return len(r.order) }
