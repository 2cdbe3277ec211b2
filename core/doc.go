// Package core provides the foundational domain types shared by every layer of
// agentchat. It defines:
//
//   - AgentDescriptor (immutable identity of a conversation participant)
//   - Message (an append-only conversation entry with parsed mentions)
//   - State (history, active agent set and conversation phase)
//   - ActivationDecision (the ordered agents that must reply to one message)
//   - Event (typed notifications published to external subscribers)
//   - ModelLimiter (per-turn model call budget)
//
// The package keeps orchestration, parsing and provider concerns out of scope
// so that policy, engine and adapters can evolve independently.
package core
