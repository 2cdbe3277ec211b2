package mention

import (
	"strings"

	"github.com/hupe1980/agentchat/core"
)

// Resolver looks up agent descriptors by id.
type Resolver interface {
	Lookup(id string) (core.AgentDescriptor, bool)
}

// Parser turns message text into the list of referenced agent ids.
type Parser struct {
	resolver Resolver
}

// NewParser creates a parser validating tokens against resolver.
func NewParser(resolver Resolver) *Parser {
	return &Parser{resolver: resolver}
}

// ExtractMentions returns the known agent ids referenced in text, in order of
// appearance. Unknown ids are dropped silently.
func (p *Parser) ExtractMentions(text string) []string {
	tokens := Tokens(text)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if p.resolver == nil {
			continue
		}
		if _, ok := p.resolver.Lookup(tok); ok {
			out = append(out, tok)
		}
	}
	return out
}

// Tokens returns every "@identifier" candidate in text without validation.
func Tokens(text string) []string {
	var out []string
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '@' {
			continue
		}
		j := i + 1
		for j < len(rs) && IsIdentRune(rs[j]) {
			j++
		}
		tok := strings.TrimRight(string(rs[i+1:j]), "-")
		if tok != "" {
			out = append(out, tok)
		}
		i = j - 1
	}
	return out
}

// IsIdentRune reports whether r may appear in an agent identifier.
func IsIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// ValidID reports whether id can be referenced with "@id" in message text.
func ValidID(id string) bool {
	if id == "" || strings.HasSuffix(id, "-") {
		return false
	}
	for _, r := range id {
		if !IsIdentRune(r) {
			return false
		}
	}
	return true
}
