package hooks

import (
	"context"
	"sort"
	"strings"

	"github.com/agentruntime/core/state"
)

// Message is a minimal chat message used by prompt contribution. The full
// message/transcript model is owned by the chat-completion provider (out of
// scope, spec.md §1); this is the slice the hook pipeline touches.
type Message struct {
	Role    string
	Content string
}

// Contribution is what a single PromptContributor emits.
type Contribution struct {
	SystemPrepend     string
	SystemAppend      string
	MessagesPrepend   []Message
	MessagesAppend    []Message
}

// PromptContributor is a specialized hook family invoked at BEFORE_MODEL
// that assembles additional system/user text from state (spec.md §4.3).
type PromptContributor interface {
	// Priority orders contributors ascending; lower runs first.
	Priority() int
	// Name identifies the contributor for logging.
	Name() string
	// Contribute inspects state and returns this contributor's addition.
	Contribute(ctx context.Context, st *state.Map) (Contribution, error)
}

// PromptContributorManager aggregates contributors sorted by ascending
// priority and assembles a single combined Contribution.
type PromptContributorManager struct {
	contributors []PromptContributor
}

// NewPromptContributorManager constructs an empty manager.
func NewPromptContributorManager() *PromptContributorManager {
	return &PromptContributorManager{}
}

// Register adds contributor to the manager.
func (m *PromptContributorManager) Register(contributor PromptContributor) {
	m.contributors = append(m.contributors, contributor)
}

// Assemble runs every registered contributor (sorted by ascending priority)
// and merges their contributions into one: system texts are concatenated
// with a blank-line separator, and prepend/append message lists are
// concatenated in contributor order (spec.md §4.3).
func (m *PromptContributorManager) Assemble(ctx context.Context, st *state.Map) Contribution {
	ordered := make([]PromptContributor, len(m.contributors))
	copy(ordered, m.contributors)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority() < ordered[j].Priority() })

	var out Contribution
	var systemParts []string
	var systemAppendParts []string
	for _, c := range ordered {
		contrib, err := c.Contribute(ctx, st)
		if err != nil {
			continue // a failing contributor must not block the others or the turn
		}
		if contrib.SystemPrepend != "" {
			systemParts = append(systemParts, contrib.SystemPrepend)
		}
		if contrib.SystemAppend != "" {
			systemAppendParts = append(systemAppendParts, contrib.SystemAppend)
		}
		out.MessagesPrepend = append(out.MessagesPrepend, contrib.MessagesPrepend...)
		out.MessagesAppend = append(out.MessagesAppend, contrib.MessagesAppend...)
	}
	out.SystemPrepend = strings.Join(systemParts, "\n\n")
	out.SystemAppend = strings.Join(systemAppendParts, "\n\n")
	return out
}

// PromptInterceptor merges an assembled Contribution into the outgoing
// system text, concatenating with a blank-line separator and never
// injecting additional system messages into the message list (spec.md
// §4.3).
func PromptInterceptor(systemText string, contribution Contribution) (mergedSystemText string, messages []Message) {
	var parts []string
	if contribution.SystemPrepend != "" {
		parts = append(parts, contribution.SystemPrepend)
	}
	if systemText != "" {
		parts = append(parts, systemText)
	}
	if contribution.SystemAppend != "" {
		parts = append(parts, contribution.SystemAppend)
	}
	merged := strings.Join(parts, "\n\n")

	out := make([]Message, 0, len(contribution.MessagesPrepend)+len(contribution.MessagesAppend))
	out = append(out, contribution.MessagesPrepend...)
	out = append(out, contribution.MessagesAppend...)
	return merged, out
}
