package prompt

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/internal/util"
)

// ErrNotFound is returned when a source has no prompt for an agent.
var ErrNotFound = errors.New("prompt not found")

// Source returns the system prompt of an agent.
type Source interface {
	PromptFor(agentID string) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Sources.
type Func func(agentID string) (string, error)

// PromptFor implements Source.
func (f Func) PromptFor(agentID string) (string, error) { return f(agentID) }

// Static is a fixed map of agent id to prompt.
type Static map[string]string

// PromptFor implements Source.
func (s Static) PromptFor(agentID string) (string, error) {
	if p, ok := s[agentID]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, agentID)
}

// Chain returns the first prompt found in sources. Errors other than
// ErrNotFound stop the search.
func Chain(sources ...Source) Source {
	return Func(func(agentID string) (string, error) {
		for _, s := range sources {
			p, err := s.PromptFor(agentID)
			if err == nil {
				return p, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return "", err
			}
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, agentID)
	})
}

// Agents resolves descriptors. *registry.Registry satisfies it.
type Agents interface {
	Lookup(id string) (core.AgentDescriptor, bool)
	All() []core.AgentDescriptor
}

// DefaultTemplate is used by Default to describe an agent that has no
// configured prompt.
const DefaultTemplate = `You are {{.DisplayName}}{{if .Title}}, {{.Title}}{{end}}, one member of a small team chatting with a user.
{{- if .Specialty}}
Your specialty: {{.Specialty}}.{{end}}
Your teammates: {{join ", " .Team}}.
Stay in character and keep replies short and concrete. Mention a teammate as @id only when you need their input.`

// Default synthesizes prompts from the descriptors in agents.
func Default(agents Agents) Source {
	return Templated(Func(func(agentID string) (string, error) {
		if _, ok := agents.Lookup(agentID); !ok {
			return "", fmt.Errorf("%w: %w: %s", ErrNotFound, core.ErrUnknownAgent, agentID)
		}
		return DefaultTemplate, nil
	}), agents)
}

// Templated renders prompts of next as templates. The data holds the agent's
// ID, DisplayName, Title and Specialty plus Team, the "Name (@id)" labels of
// all other agents.
func Templated(next Source, agents Agents) Source {
	return Func(func(agentID string) (string, error) {
		text, err := next.PromptFor(agentID)
		if err != nil {
			return "", err
		}
		out, err := util.RenderTemplate(text, templateData(agentID, agents))
		if err != nil {
			return "", fmt.Errorf("failed to render prompt for %s: %w", agentID, err)
		}
		return out, nil
	})
}

func templateData(agentID string, agents Agents) map[string]any {
	d, _ := agents.Lookup(agentID)
	team := make([]string, 0)
	for _, other := range agents.All() {
		if other.ID == agentID {
			continue
		}
		team = append(team, fmt.Sprintf("%s (@%s)", other.Name(), other.ID))
	}
	sort.Strings(team)
	return map[string]any{
		"ID":          agentID,
		"DisplayName": d.Name(),
		"Title":       d.Title,
		"Specialty":   d.Specialty,
		"Team":        team,
	}
}
