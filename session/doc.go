// Package session houses concrete implementations of core.SessionRegistry.
// The interface lives in the core package; engines only depend on it, and the
// wiring layer decides which implementation to instantiate.
package session
