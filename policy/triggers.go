package policy

import (
	"strings"
	"unicode"

	"github.com/hupe1980/agentchat/core"
)

// Triggers is the word list that lets the coordinator answer without asking
// the decision oracle. Entries may be single words or short phrases and are
// matched on whole words, case-insensitively.
type Triggers struct {
	Greetings []string `mapstructure:"greetings" yaml:"greetings"`
	Keywords  []string `mapstructure:"keywords" yaml:"keywords"`
}

// DefaultTriggers returns the built-in greeting and help/team vocabulary.
func DefaultTriggers() Triggers {
	return Triggers{
		Greetings: []string{
			"hi", "hello", "hey", "hiya", "howdy", "greetings", "yo",
			"good morning", "good afternoon", "good evening",
		},
		Keywords: []string{
			"help", "team", "everyone", "everybody", "anyone", "anybody",
			"who can", "who is here", "all of you",
		},
	}
}

// Match reports whether text greets, directly addresses coordinator (by id or
// display name) or contains a help/team keyword.
func (t Triggers) Match(text string, coordinator core.AgentDescriptor) bool {
	norm := normalize(text)
	if norm == "  " {
		return false
	}

	phrases := make([]string, 0, len(t.Greetings)+len(t.Keywords)+2)
	phrases = append(phrases, t.Greetings...)
	phrases = append(phrases, t.Keywords...)
	phrases = append(phrases, coordinator.ID, coordinator.DisplayName)

	for _, p := range phrases {
		np := strings.TrimSpace(normalize(p))
		if np == "" {
			continue
		}
		if strings.Contains(norm, " "+np+" ") {
			return true
		}
	}
	return false
}

// normalize lowercases s, replaces everything but letters and digits with a
// single space and pads the result so whole words can be found with
// strings.Contains(" word ").
func normalize(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	if b.Len() == 1 {
		b.WriteByte(' ')
	}
	return b.String()
}
