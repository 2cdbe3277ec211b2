// Package mention extracts explicit agent references ("@id") from message
// text.
//
// The tokenizer is a plain rune scanner: an '@' immediately followed by a run
// of identifier characters ([A-Za-z0-9_-]) forms a candidate token, a trailing
// '-' is not part of the token, and candidates are kept only if the Resolver
// knows them. Lookup is case-sensitive, order is first occurrence and
// duplicates are preserved.
package mention
