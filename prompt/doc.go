// Package prompt supplies the system prompt of each agent.
//
// Sources compose: a Directory (one file per agent, hot reloaded) can be
// chained in front of a Default source that synthesizes a prompt from the
// agent descriptor, and Templated renders {{.DisplayName}}-style placeholders
// with descriptor data.
package prompt
