package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/hupe1980/agentchat"
	"github.com/hupe1980/agentchat/core"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the configured team.

Commands:
  /reset    clear the conversation
  /active   list the agents taking part
  /tokens   show the per-agent session tokens
  /quit     leave`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chat, err := agentchat.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer chat.Close()

	out := cmd.OutOrStdout()
	r := newRenderer(out, chat.Agents())

	events, _ := chat.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			r.Event(ev)
		}
	}()

	r.Banner()
	err = chatLoop(ctx, chat, cmd.InOrStdin(), r)

	closeErr := chat.Close()
	<-done
	return errors.Join(err, closeErr)
}

func chatLoop(ctx context.Context, chat *agentchat.Chat, in io.Reader, r *renderer) error {
	scanner := bufio.NewScanner(in)
	for {
		r.Prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			chat.Reset()
			continue
		case "/active":
			r.Info("active: " + strings.Join(chat.ActiveAgents(), ", "))
			continue
		case "/tokens":
			for id, tok := range chat.SessionTokens() {
				r.Info(fmt.Sprintf("%s: %s", id, tok))
			}
			continue
		}

		var err error
		if chat.Phase() == core.PhaseIdle {
			err = chat.StartConversation(ctx, line)
		} else {
			err = chat.SendMessage(ctx, line, core.UserAuthor)
		}

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			return nil
		default:
			r.Error(err)
		}
	}
}

// renderer prints conversation events with one color per speaker. It is
// shared by the input loop and the event goroutine: writeMu serializes
// output, colorMu guards the palette assignment.
type renderer struct {
	writeMu sync.Mutex
	w       io.Writer
	agents  interface {
		Lookup(id string) (core.AgentDescriptor, bool)
	}

	colorMu sync.Mutex
	colors  map[string]*color.Color
	next    int
}

var palette = []color.Attribute{color.FgGreen, color.FgYellow, color.FgMagenta, color.FgBlue, color.FgRed}

func newRenderer(w io.Writer, agents interface {
	Lookup(id string) (core.AgentDescriptor, bool)
}) *renderer {
	return &renderer{
		w:      w,
		agents: agents,
		colors: map[string]*color.Color{core.UserAuthor: color.New(color.FgCyan, color.Bold)},
	}
}

func (r *renderer) colorFor(author string) *color.Color {
	r.colorMu.Lock()
	defer r.colorMu.Unlock()
	if c, ok := r.colors[author]; ok {
		return c
	}
	c := color.New(palette[r.next%len(palette)], color.Bold)
	r.next++
	r.colors[author] = c
	return c
}

func (r *renderer) nameOf(id string) string {
	if d, ok := r.agents.Lookup(id); ok {
		return d.Name()
	}
	return id
}

// write prints s as one unit.
func (r *renderer) write(s string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	fmt.Fprint(r.w, s)
}

func (r *renderer) Banner() {
	r.write(color.New(color.Faint).Sprint("Type a message, @mention a teammate, or /quit.") + "\n")
}

func (r *renderer) Prompt() {
	r.write(r.colorFor(core.UserAuthor).Sprint("> "))
}

// Event prints a single conversation event. The user's own messages are not
// echoed.
func (r *renderer) Event(ev core.Event) {
	switch ev.Type {
	case core.EventReset:
		r.write(color.New(color.Faint).Sprint("-- conversation reset --") + "\n")
	case core.EventMessage:
		msg := ev.Message
		if msg == nil || msg.IsUser() {
			return
		}
		speaker := core.Speaker(msg.Author, r.nameOf)
		if msg.IsSystem {
			r.write(color.New(color.Faint).Sprintf("[%s] %s", speaker, msg.Content) + "\n")
			return
		}
		r.write(fmt.Sprintf("\n%s %s\n", r.colorFor(msg.Author).Sprintf("%s:", speaker), msg.Content))
	}
}

func (r *renderer) Info(s string) {
	r.write(color.New(color.Faint).Sprint(s) + "\n")
}

func (r *renderer) Error(err error) {
	r.write(color.New(color.FgRed).Sprintf("error: %v", err) + "\n")
}
