package registry

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/agentchat/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agent(id string, coordinator bool) core.AgentDescriptor {
	return core.AgentDescriptor{ID: id, Mentionable: true, IsDefaultCoordinator: coordinator}
}

func TestNew(t *testing.T) {
	r, err := New(agent("nova", true), agent("ops", false))
	require.NoError(t, err)

	assert.Equal(t, "nova", r.Coordinator().ID)
	assert.Equal(t, []string{"nova", "ops"}, r.IDs())
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.IsMentionable("ops"))
	assert.False(t, r.IsMentionable("ghost"))

	_, ok := r.Lookup("ops")
	assert.True(t, ok)

	_, err = r.Get("ghost")
	assert.True(t, errors.Is(err, core.ErrUnknownAgent))
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		descs []core.AgentDescriptor
		want  error
	}{
		{"empty", nil, ErrNoAgents},
		{"no coordinator", []core.AgentDescriptor{agent("ops", false)}, ErrCoordinator},
		{"two coordinators", []core.AgentDescriptor{agent("a", true), agent("b", true)}, ErrCoordinator},
		{"duplicate", []core.AgentDescriptor{agent("a", true), agent("a", false)}, ErrDuplicateAgent},
		{"bad id", []core.AgentDescriptor{agent("a b", true)}, ErrInvalidID},
		{"reserved id", []core.AgentDescriptor{agent(core.UserAuthor, true)}, ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.descs...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	r := MustNew(agent("nova", true))
	all := r.All()
	all[0].ID = "changed"
	assert.Equal(t, "nova", r.All()[0].ID)
}

func TestLoadFile(t *testing.T) {
	r, err := LoadFile(filepath.Join("testdata", "agents.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"nova", "ops", "data-eng", "auditor"}, r.IDs())
	assert.Equal(t, "nova", r.Coordinator().ID)
	assert.False(t, r.IsMentionable("auditor"))

	d, err := r.Get("data-eng")
	require.NoError(t, err)
	assert.Equal(t, "Dana", d.Name())
	assert.Equal(t, "gemini", d.Model)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoAgents)

	_, err = Load(strings.NewReader("agents:\n  - id: a\n    unknown_field: 1\n"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}
