// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside agentchat.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Carry a per-agent session id so providers can partition caching
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (Anthropic, OpenAI, Gemini) implement the Model interface from this
// package so higher layers (policy, engine) remain decoupled from vendor SDKs.
package model
