// Package engine implements the conversation orchestrator of agentchat.
//
// The Engine owns one conversation: its history, the set of active agents
// and the per-agent session tokens. For every incoming message it runs a
// turn:
//
//  1. the message is parsed for @mentions and appended to the history
//  2. the activation policy admits mentioned agents and picks at most one
//     natural respondent (see package policy)
//  3. the Dispatcher invokes the chosen agents one after another, each with
//     its own system prompt, session token and a rendered context of the
//     recent history
//  4. every reply is appended, published, and the agents it mentions are
//     admitted for the next turn
//
// # Concurrency
//
// Turns are strictly sequential. Starting a new turn (SendMessage,
// StartConversation) or calling Reset cancels the turn in flight and waits for
// it to unwind before proceeding; the cancelled call returns
// core.ErrTurnSuperseded and leaves no partial reply behind. Every model call
// carries its own deadline (Config.CallTimeout). Read accessors (History,
// ActiveAgents, Phase, SessionTokens) are safe from any goroutine.
//
// # Events
//
// Two delivery mechanisms exist side by side:
//
//   - Subscribe returns a channel of core.Event values in publish order.
//     Slow subscribers are buffered, never dropped.
//   - Observers run synchronously on the turn goroutine at defined hook
//     points (decision, before/after agent, message, reset). A
//     HookBeforeAgent observer may veto an invocation by returning an error.
//
// # Usage
//
//	reg, _ := registry.LoadFile("agents.yaml")
//	eng, _ := engine.New(reg, func(o *engine.Options) {
//	    o.Model = anthropic.NewModel()
//	})
//	defer eng.Close()
//
//	events, cancel := eng.Subscribe()
//	defer cancel()
//	go func() {
//	    for ev := range events {
//	        fmt.Println(ev.Type, ev.Message)
//	    }
//	}()
//
//	if err := eng.StartConversation(ctx, "Hello team!"); err != nil {
//	    return err
//	}
//	_ = eng.SendMessage(ctx, "@ops is the deploy done?", core.UserAuthor)
package engine
