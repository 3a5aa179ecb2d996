package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agentruntime/core/errs"
	"github.com/agentruntime/core/experience"
	"github.com/agentruntime/core/model"
	"github.com/agentruntime/core/state"
)

// extractionSystemPrompt is the fixed system prompt sent to the judge,
// enumerating the experience categories exactly as spec.md §4.5 requires.
const extractionSystemPrompt = `You are an experience extractor for a code-acting agent runtime.
Given a record of one agent turn, decide whether it contains a reusable
experience worth remembering. Categories: CODE, COMMON, REACT.

Respond with a JSON array. Each element must have the fields:
  "type": one of "CODE", "COMMON", "REACT"
  "title": a short title
  "content": the experience body (may be blank if an artifact carries it)
  "language": the programming language, if applicable
  "tags": an array of string tags

Respond with an empty array "[]" if nothing in the turn is worth keeping.`

const (
	maxGeneratedCodeEntries = 2
	maxGeneratedCodeChars   = 500
	maxConversationTurns    = 4
)

// judgeExperience is the wire shape the judge is asked to emit; it is
// promoted to an experience.Experience after parsing.
type judgeExperience struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
}

// ModelExtractor is the default Extractor: it assembles a prompt from the
// trigger context and sends it to a judge model.Client (spec.md §4.5
// Extraction).
type ModelExtractor struct {
	judge model.Client
	model string
}

// NewModelExtractor constructs an Extractor backed by judge, using
// modelID for every request (empty defers to the client's own default).
func NewModelExtractor(judge model.Client, modelID string) *ModelExtractor {
	return &ModelExtractor{judge: judge, model: modelID}
}

// Extract assembles the extraction prompt, calls the judge, and parses its
// JSON array response into candidate experiences.
func (x *ModelExtractor) Extract(ctx context.Context, tc TriggerContext) ([]*experience.Experience, error) {
	prompt := BuildExtractionPrompt(tc)
	resp, err := x.judge.Complete(ctx, model.Request{
		System: extractionSystemPrompt,
		Prompt: prompt,
		Model:  x.model,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindLearning, "judge completion failed", err)
	}
	return ParseJudgeResponse(resp.Text)
}

// BuildExtractionPrompt composes the prompt summarizing the user's
// request, a digest of generated code (first two entries, each
// truncated), the last four conversation turns, and a tool-usage summary
// (spec.md §4.5 Extraction).
func BuildExtractionPrompt(tc TriggerContext) string {
	var b strings.Builder

	b.WriteString("## User request\n")
	if userMsg := lastUserMessage(tc.ConversationTurns); userMsg != "" {
		b.WriteString(userMsg)
	} else {
		b.WriteString("(none)")
	}
	b.WriteString("\n\n")

	b.WriteString("## Generated code\n")
	codeEntries := generatedCodeEntries(tc.State)
	if len(codeEntries) == 0 {
		b.WriteString("(none)\n")
	}
	for i, entry := range codeEntries {
		if i >= maxGeneratedCodeEntries {
			break
		}
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, truncate(entry, maxGeneratedCodeChars)))
	}
	b.WriteString("\n")

	b.WriteString("## Recent conversation\n")
	turns := tc.ConversationTurns
	if len(turns) > maxConversationTurns {
		turns = turns[len(turns)-maxConversationTurns:]
	}
	for _, t := range turns {
		b.WriteString(fmt.Sprintf("%s: %s\n", t.Role, t.Content))
	}
	b.WriteString("\n")

	b.WriteString("## Tool usage\n")
	if len(tc.ToolCalls) == 0 {
		b.WriteString("(none)\n")
	}
	for _, call := range tc.ToolCalls {
		status := "failed"
		if call.Success {
			status = "succeeded"
		}
		b.WriteString(fmt.Sprintf("- %s: %s\n", call.ToolName, status))
	}

	return b.String()
}

func lastUserMessage(turns []ConversationTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			return turns[i].Content
		}
	}
	return ""
}

func generatedCodeEntries(st *state.Map) []string {
	if st == nil {
		return nil
	}
	raw, ok := st.Get(state.KeyGeneratedCode)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	default:
		return nil
	}
}

// truncate cuts s to at most n bytes without splitting a multi-byte UTF-8
// rune, backing off to the nearest preceding rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// ParseJudgeResponse parses the judge's JSON array response and promotes
// each element to an Experience: scope GLOBAL, the tag "llm_generated"
// added, and timestamps set to now (spec.md §4.5 Extraction).
func ParseJudgeResponse(text string) ([]*experience.Experience, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var raw []judgeExperience
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errs.Wrap(errs.KindLearning, "judge response is not a valid JSON array", err)
	}

	now := time.Now()
	out := make([]*experience.Experience, 0, len(raw))
	for _, j := range raw {
		e := &experience.Experience{
			Type:     experience.Type(j.Type),
			Title:    j.Title,
			Content:  j.Content,
			Language: j.Language,
			Tags:     append(append([]string{}, j.Tags...), "llm_generated"),
			Scope:    experience.ScopeGlobal,
		}
		experience.StampTimestamps(e, now)
		out = append(out, e)
	}
	return out, nil
}
