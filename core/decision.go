package core

// TriggerKind tells an agent why it is being asked to respond.
type TriggerKind string

const (
	// TriggerMention means the agent was explicitly @-mentioned.
	TriggerMention TriggerKind = "mention"
	// TriggerNatural means the agent chose (or was chosen) to join in.
	TriggerNatural TriggerKind = "natural"
)

// ActivationDecision is the ordered set of agents that must reply to one
// incoming message: all mentioned agents in mention order, followed by at most
// one natural respondent.
type ActivationDecision struct {
	Mentioned []string `json:"mentioned"`
	Natural   string   `json:"natural,omitempty"`
}

// Agents returns the full invocation order.
func (d ActivationDecision) Agents() []string {
	out := make([]string, 0, len(d.Mentioned)+1)
	out = append(out, d.Mentioned...)
	if d.Natural != "" {
		out = append(out, d.Natural)
	}
	return out
}

// KindFor returns the trigger kind of id within this decision.
func (d ActivationDecision) KindFor(id string) TriggerKind {
	if id == d.Natural && d.Natural != "" {
		return TriggerNatural
	}
	return TriggerMention
}

// Empty reports whether nobody has to respond.
func (d ActivationDecision) Empty() bool { return len(d.Mentioned) == 0 && d.Natural == "" }
