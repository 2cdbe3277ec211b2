// Package logging provides a minimal logging interface and adapters for agentchat.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, policy and dispatcher use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	chat, err := agentchat.New(reg, func(o *agentchat.Options) {
//		o.Model = m
//		o.Logger = logging.With(logger, "conversation", "standup")
//	})
package logging
