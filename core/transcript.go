package core

import "strings"

// UserDisplayName is how the human participant is rendered in transcripts.
const UserDisplayName = "User"

// Transcript renders msgs as "speaker: content" lines. nameOf maps an agent id
// to its display name; it may be nil.
func Transcript(msgs []Message, nameOf func(id string) string) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(Speaker(m.Author, nameOf))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// Speaker returns the rendered name of author.
func Speaker(author string, nameOf func(id string) string) string {
	if author == UserAuthor {
		return UserDisplayName
	}
	if nameOf != nil {
		if n := nameOf(author); n != "" {
			return n
		}
	}
	return author
}
