package policy

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/hupe1980/agentchat/core"
	"github.com/hupe1980/agentchat/logging"
	"github.com/hupe1980/agentchat/model"
)

// Oracle answers whether a candidate should join the conversation after trigger.
type Oracle interface {
	ShouldRespond(ctx context.Context, candidate core.AgentDescriptor, trigger core.Message, recent []core.Message) (bool, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(ctx context.Context, candidate core.AgentDescriptor, trigger core.Message, recent []core.Message) (bool, error)

// ShouldRespond implements Oracle.
func (f OracleFunc) ShouldRespond(ctx context.Context, candidate core.AgentDescriptor, trigger core.Message, recent []core.Message) (bool, error) {
	return f(ctx, candidate, trigger, recent)
}

// ModelOracleOptions configures the model backed oracle.
type ModelOracleOptions struct {
	// Temperature for the YES/NO call. Defaults to 0.1.
	Temperature float64
	// MaxOutputTokens bounds the answer. Defaults to 10.
	MaxOutputTokens int
	// Timeout is the per-call deadline. Zero disables it.
	Timeout time.Duration
	// NameOf renders authors in the context block.
	NameOf func(id string) string
	Logger logging.Logger
}

// ModelOracle asks a chat model for a one word YES/NO verdict.
type ModelOracle struct {
	model model.Model
	opts  ModelOracleOptions
}

// NewModelOracle creates an oracle backed by m.
func NewModelOracle(m model.Model, optFns ...func(o *ModelOracleOptions)) *ModelOracle {
	opts := ModelOracleOptions{
		Temperature:     0.1,
		MaxOutputTokens: 10,
		Timeout:         60 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &ModelOracle{model: m, opts: opts}
}

const oracleSystemPrompt = `You decide whether a team member should reply in a group chat.
Reply YES only if the new message concerns their specialty or clearly needs their input.
Answer with a single word: YES or NO.`

// ShouldRespond implements Oracle. The call draws from the turn's model
// budget when one is attached to ctx.
func (o *ModelOracle) ShouldRespond(ctx context.Context, candidate core.AgentDescriptor, trigger core.Message, recent []core.Message) (bool, error) {
	if o.model == nil {
		return false, fmt.Errorf("no decision model configured")
	}
	if err := core.ModelLimiterFromContext(ctx).Acquire(); err != nil {
		return false, err
	}

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := model.Complete(ctx, o.model, model.Request{
		SystemPrompt:    oracleSystemPrompt,
		Content:         o.buildPrompt(candidate, trigger, recent),
		Temperature:     model.Float(o.opts.Temperature),
		MaxOutputTokens: o.opts.MaxOutputTokens,
	})
	logging.LogModelCall(o.opts.Logger, o.model.Info().Name, "oracle", time.Since(start), err, "agent.id", candidate.ID)
	if err != nil {
		return false, err
	}

	return IsAffirmative(text), nil
}

func (o *ModelOracle) buildPrompt(candidate core.AgentDescriptor, trigger core.Message, recent []core.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team member: %s", candidate.Name())
	if candidate.Title != "" {
		fmt.Fprintf(&b, " (%s)", candidate.Title)
	}
	b.WriteByte('\n')
	if candidate.Specialty != "" {
		fmt.Fprintf(&b, "Specialty: %s\n", candidate.Specialty)
	}
	if len(recent) > 0 {
		b.WriteString("\nRecent conversation:\n")
		b.WriteString(core.Transcript(recent, o.opts.NameOf))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nNew message from %s: %s\n", core.Speaker(trigger.Author, o.opts.NameOf), trigger.Content)
	fmt.Fprintf(&b, "\nShould %s respond? Answer YES or NO.", candidate.Name())
	return b.String()
}

// IsAffirmative reports whether the leading token of text is "yes",
// ignoring case and surrounding punctuation.
func IsAffirmative(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	tok := strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.EqualFold(tok, "YES")
}
