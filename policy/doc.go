// Package policy decides which agents reply to an incoming message.
//
// A decision always schedules every mentioned, mentionable agent (in mention
// order) and then asks a Selector for at most one natural respondent among
// the remaining active agents. The default HeuristicSelector applies, per
// shuffled candidate, a recency throttle, system-message suppression, a
// coordinator fast-path and finally a YES/NO decision oracle.
package policy
