package prompt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testAgents() *registry.Registry {
	return registry.MustNew(
		core.AgentDescriptor{ID: "nova", DisplayName: "Nova", Title: "Team Lead", Mentionable: true, IsDefaultCoordinator: true},
		core.AgentDescriptor{ID: "ops", DisplayName: "Ops", Mentionable: true, Specialty: "infrastructure"},
	)
}

func TestStatic(t *testing.T) {
	s := Static{"nova": "be nice"}

	p, err := s.PromptFor("nova")
	require.NoError(t, err)
	assert.Equal(t, "be nice", p)

	_, err = s.PromptFor("ops")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChain(t *testing.T) {
	boom := errors.New("boom")
	src := Chain(
		Static{"nova": "first"},
		Func(func(id string) (string, error) {
			if id == "broken" {
				return "", boom
			}
			return "", ErrNotFound
		}),
		Static{"nova": "shadowed", "ops": "second"},
	)

	p, err := src.PromptFor("nova")
	require.NoError(t, err)
	assert.Equal(t, "first", p)

	p, err = src.PromptFor("ops")
	require.NoError(t, err)
	assert.Equal(t, "second", p)

	_, err = src.PromptFor("broken")
	assert.ErrorIs(t, err, boom)

	_, err = src.PromptFor("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefault(t *testing.T) {
	src := Default(testAgents())

	p, err := src.PromptFor("ops")
	require.NoError(t, err)
	assert.Contains(t, p, "You are Ops, one member")
	assert.Contains(t, p, "Your specialty: infrastructure.")
	assert.Contains(t, p, "Your teammates: Nova (@nova).")

	p, err = src.PromptFor("nova")
	require.NoError(t, err)
	assert.Contains(t, p, "You are Nova, Team Lead")
	assert.NotContains(t, p, "specialty")

	_, err = src.PromptFor("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, core.ErrUnknownAgent)
}

func TestTemplated_RenderError(t *testing.T) {
	src := Templated(Static{"nova": "{{.Broken"}, testAgents())
	_, err := src.PromptFor("nova")
	assert.Error(t, err)
}

func TestDirectory(t *testing.T) {
	d, err := NewDirectory(filepath.Join("testdata", "prompts"))
	require.NoError(t, err)

	p, err := d.PromptFor("ops")
	require.NoError(t, err)
	assert.Equal(t, "You are Ops. You keep the lights on.", p)

	_, err = d.PromptFor("qa")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.PromptFor("../prompts/ops")
	assert.ErrorIs(t, err, ErrNotFound)

	templated := Templated(d, testAgents())
	p, err = templated.PromptFor("nova")
	require.NoError(t, err)
	assert.Equal(t, "You are Nova, the team lead.\nKeep everyone aligned.", p)
}

func TestNewDirectory_Invalid(t *testing.T) {
	_, err := NewDirectory(filepath.Join("testdata", "missing"))
	assert.Error(t, err)

	_, err = NewDirectory(filepath.Join("testdata", "prompts", "ops.txt"))
	assert.Error(t, err)
}

func TestDirectory_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nova.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	reloaded := make(chan string, 16)
	d, err := NewDirectory(dir, func(o *DirectoryOptions) {
		o.OnReload = func(id string) { reloaded <- id }
	})
	require.NoError(t, err)

	p, err := d.PromptFor("nova")
	require.NoError(t, err)
	assert.Equal(t, "v1", p)

	require.NoError(t, d.Watch(context.Background()))
	require.NoError(t, d.Watch(context.Background()))
	defer func() { require.NoError(t, d.Close()) }()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	select {
	case id := <-reloaded:
		assert.Equal(t, "nova", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	require.Eventually(t, func() bool {
		p, err := d.PromptFor("nova")
		return err == nil && p == "v2"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDirectory_InvalidationDuringRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nova.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	d, err := NewDirectory(dir)
	require.NoError(t, err)

	read := d.load
	d.load = func(agentID string) (string, error) {
		p, err := read(agentID)
		// the file changes after it was read but before the result is cached
		require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
		d.handle(fsnotify.Event{Name: path, Op: fsnotify.Write})
		return p, err
	}

	p, err := d.PromptFor("nova")
	require.NoError(t, err)
	assert.Equal(t, "v1", p)

	d.load = read
	p, err = d.PromptFor("nova")
	require.NoError(t, err)
	assert.Equal(t, "v2", p)
}

func TestDirectory_CloseWithoutWatch(t *testing.T) {
	d, err := NewDirectory(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}
