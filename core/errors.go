package core

import "errors"

var (
	// ErrConversationActive is returned when starting a conversation that is already running.
	ErrConversationActive = errors.New("conversation already active")
	// ErrConversationIdle is returned when sending into a conversation that was not started.
	ErrConversationIdle = errors.New("conversation not started")
	// ErrTurnSuperseded is returned by a turn that was cancelled by a newer message or a reset.
	ErrTurnSuperseded = errors.New("turn superseded")
	// ErrUnknownAgent is returned when an agent id is not part of the registry.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrModelBudgetExceeded is returned once a turn has used up its model calls.
	ErrModelBudgetExceeded = errors.New("model call budget exceeded")
)
