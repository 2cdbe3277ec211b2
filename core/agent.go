package core

// UserAuthor is the author identifier of messages written by the human participant.
const UserAuthor = "user"

// AgentDescriptor describes one agent participating in a conversation.
//
// Descriptors are loaded once from external configuration and treated as
// immutable afterwards. Exactly one descriptor in a registry carries
// IsDefaultCoordinator; that agent is always part of the active set.
type AgentDescriptor struct {
	ID                   string `json:"id" yaml:"id"`
	DisplayName          string `json:"display_name" yaml:"display_name"`
	Title                string `json:"title" yaml:"title"`
	Mentionable          bool   `json:"mentionable" yaml:"mentionable"`
	IsDefaultCoordinator bool   `json:"coordinator" yaml:"coordinator"`

	// Specialty is a short free-text description used when asking the
	// decision oracle whether the agent should join in.
	Specialty string `json:"specialty,omitempty" yaml:"specialty,omitempty"`

	// Model optionally selects a named model backend. Empty means default.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

// Name returns the display name, falling back to the id.
func (d AgentDescriptor) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ID
}
