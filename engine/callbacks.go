package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentchat/core"
)

// HookType defines the specific lifecycle points where observers run.
//
// Observers provide a synchronous way to hook into turn processing without
// modifying the engine. Unlike Bus subscriptions they run inline, in
// registration order, before the engine moves on.
//
// Available hook types:
//   - HookDecision: after the activation decision of an incoming message
//   - HookBeforeAgent/HookAfterAgent: around one agent invocation
//   - HookMessage: after a message was appended to the history
//   - HookReset: after the conversation was reset
type HookType string

const (
	// HookDecision is triggered once per incoming message with the decision.
	HookDecision HookType = "decision"

	// HookBeforeAgent is triggered before an agent is invoked.
	// Returning an error skips that agent for this turn.
	HookBeforeAgent HookType = "before_agent"

	// HookAfterAgent is triggered after an agent invocation, successful or not.
	HookAfterAgent HookType = "after_agent"

	// HookMessage is triggered for every appended message, user and agent.
	HookMessage HookType = "message"

	// HookReset is triggered after a reset.
	HookReset HookType = "reset"
)

// HookContext carries what an observer may inspect. Fields that do not apply
// to a hook type are nil or empty.
type HookContext struct {
	Type     HookType
	AgentID  string
	Kind     core.TriggerKind
	Trigger  *core.Message
	Message  *core.Message
	Decision *core.ActivationDecision
	// Err is the invocation failure for HookAfterAgent.
	Err error
}

// Observer is a synchronous lifecycle hook.
//
// Implementations should be fast: they run on the turn's goroutine. Errors
// returned from HookBeforeAgent observers veto the invocation; errors from
// all other hooks are logged and otherwise ignored.
type Observer interface {
	Type() HookType
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionObserver wraps a function as an observer implementation.
//
// Example:
//
//	obs := NewFunctionObserver(HookMessage, func(ctx context.Context, hc *HookContext) error {
//	    fmt.Printf("%s: %s\n", hc.Message.Author, hc.Message.Content)
//	    return nil
//	})
type FunctionObserver struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewFunctionObserver creates a new function-based observer.
func NewFunctionObserver(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionObserver {
	return &FunctionObserver{hookType: hookType, fn: fn}
}

// Type returns the hook type this function handles.
func (o *FunctionObserver) Type() HookType { return o.hookType }

// Execute calls the wrapped function.
func (o *FunctionObserver) Execute(ctx context.Context, hc *HookContext) error {
	return o.fn(ctx, hc)
}

// ObserverManager routes hooks to registered observers.
//
// Registration is not synchronized; register everything before the first
// turn. Execution is safe for concurrent use afterwards.
type ObserverManager struct {
	observers map[HookType][]Observer
}

// NewObserverManager creates an empty manager.
func NewObserverManager() *ObserverManager {
	return &ObserverManager{observers: make(map[HookType][]Observer)}
}

// Register adds an observer for its hook type.
func (m *ObserverManager) Register(o Observer) {
	m.observers[o.Type()] = append(m.observers[o.Type()], o)
}

// Execute runs all observers of hc.Type in registration order and stops at
// the first error.
func (m *ObserverManager) Execute(ctx context.Context, hc *HookContext) error {
	for _, o := range m.observers[hc.Type] {
		if err := o.Execute(ctx, hc); err != nil {
			return fmt.Errorf("%s observer: %w", hc.Type, err)
		}
	}
	return nil
}

// LoggingObserver forwards hook summaries to a print function.
//
// Example:
//
//	obs := NewLoggingObserver(HookAfterAgent, func(s string) { log.Println(s) })
type LoggingObserver struct {
	hookType HookType
	printf   func(message string)
}

// NewLoggingObserver creates a new logging observer.
func NewLoggingObserver(hookType HookType, printf func(message string)) *LoggingObserver {
	return &LoggingObserver{hookType: hookType, printf: printf}
}

// Type returns the hook type this logger handles.
func (o *LoggingObserver) Type() HookType { return o.hookType }

// Execute formats the hook context. It never fails.
func (o *LoggingObserver) Execute(_ context.Context, hc *HookContext) error {
	if o.printf == nil {
		return nil
	}
	msg := fmt.Sprintf("[%s] agent=%s", hc.Type, hc.AgentID)
	if hc.Message != nil {
		msg += fmt.Sprintf(" author=%s content=%q", hc.Message.Author, hc.Message.Content)
	}
	if hc.Decision != nil {
		msg += fmt.Sprintf(" agents=%v", hc.Decision.Agents())
	}
	if hc.Err != nil {
		msg += fmt.Sprintf(" err=%v", hc.Err)
	}
	o.printf(msg)
	return nil
}
