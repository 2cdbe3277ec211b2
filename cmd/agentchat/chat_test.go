package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/hupe1980/agentchat"
	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/engine"
	"github.com/hupe1980/agentchat/model"
	"github.com/hupe1980/agentchat/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func testRegistry() *registry.Registry {
	return registry.MustNew(
		core.AgentDescriptor{ID: "nova", DisplayName: "Nova", Title: "Lead", Mentionable: true, IsDefaultCoordinator: true},
		core.AgentDescriptor{ID: "ops", DisplayName: "Ops", Mentionable: true},
	)
}

func TestRenderer_Event(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, testRegistry())

	user := core.NewMessage(core.UserAuthor, "hi", nil)
	r.Event(core.NewMessageEvent(user))
	assert.Empty(t, buf.String())

	r.Event(core.NewMessageEvent(core.NewMessage("nova", "Hello there", nil)))
	assert.Contains(t, buf.String(), "Nova: Hello there")

	buf.Reset()
	r.Event(core.NewResetEvent())
	assert.Contains(t, buf.String(), "conversation reset")
}

func TestRenderer_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, testRegistry())
	msg := core.NewMessage("nova", "hello", nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.Event(core.NewMessageEvent(msg))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.Info("active: nova")
			r.Prompt()
		}
	}()
	wg.Wait()

	out := buf.String()
	assert.Equal(t, 100, strings.Count(out, "Nova: hello\n"))
	assert.Equal(t, 100, strings.Count(out, "active: nova\n"))
	assert.Equal(t, 100, strings.Count(out, "> "))
}

func TestChatLoop(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetFallback("Welcome!")

	chat, err := agentchat.New(testRegistry(), func(o *agentchat.Options) {
		o.Model = m
		o.Pacer = engine.NoPacing
	})
	require.NoError(t, err)
	defer chat.Close()

	var buf bytes.Buffer
	r := newRenderer(&buf, chat.Agents())
	in := strings.NewReader("hello\n/active\n/reset\n/quit\nnever sent\n")

	require.NoError(t, chatLoop(context.Background(), chat, in, r))
	assert.Contains(t, buf.String(), "active: nova")
	assert.Equal(t, core.PhaseIdle, chat.Phase())
	assert.Len(t, m.Requests(), 1)
}

func TestPrintAgents(t *testing.T) {
	var buf bytes.Buffer
	agentsCmd.SetOut(&buf)
	require.NoError(t, printAgents(agentsCmd, testRegistry()))
	out := buf.String()
	assert.Contains(t, out, "@nova")
	assert.Contains(t, out, "coordinator")
	assert.Contains(t, out, "@ops")
}
