// Package experience implements the Experience Store & Query component
// (C6): persistence and scoped retrieval of learned experiences (spec.md
// §4.6).
package experience

import "time"

// Type classifies an experience by the agent mode it applies to.
type Type string

const (
	TypeCode   Type = "CODE"
	TypeReact  Type = "REACT"
	TypeCommon Type = "COMMON"
)

// Scope is the visibility/specificity level of an experience.
type Scope string

const (
	ScopeGlobal  Scope = "GLOBAL"
	ScopeTeam    Scope = "TEAM"
	ScopeUser    Scope = "USER"
	ScopeProject Scope = "PROJECT"
)

// ArtifactKind distinguishes structured artifacts attached to an
// experience.
type ArtifactKind string

const (
	ArtifactKindCode        ArtifactKind = "code"
	ArtifactKindToolSequence ArtifactKind = "tool_sequence"
)

// Artifact is the optional structured payload an experience carries: either
// a code snippet or a planned tool sequence.
type Artifact struct {
	Kind        ArtifactKind
	Language    string
	Body        string // code body, when Kind == ArtifactKindCode
	Description string
	ToolNames   []string // planned tool sequence, when Kind == ArtifactKindToolSequence
}

// FastIntentRule is an optional cheap pre-match condition that lets a
// caller short-circuit full retrieval for an obvious repeat intent.
type FastIntentRule struct {
	Kind  string // "metadata_equals" or "message_prefix"
	Key   string // metadata key, when Kind == "metadata_equals"
	Value string
}

// Matches reports whether rule fires against the supplied context.
func (r FastIntentRule) Matches(metadata map[string]string, lastUserMessage string) bool {
	switch r.Kind {
	case "metadata_equals":
		return metadata[r.Key] == r.Value
	case "message_prefix":
		return len(lastUserMessage) >= len(r.Value) && lastUserMessage[:len(r.Value)] == r.Value
	default:
		return false
	}
}

// Attribution identifies who/what an experience belongs to. Owner holds a
// user id for USER-scoped experiences and a team id for TEAM-scoped ones.
type Attribution struct {
	Owner   string
	Project string
	Repo    string
}

// Experience is a single learned, reusable record (spec.md §3 Experience).
type Experience struct {
	ID              string
	Type            Type
	Title           string
	Content         string
	Artifact        *Artifact
	FastIntentRule  *FastIntentRule
	Scope           Scope
	Attribution     Attribution
	Language        string
	Tags            []string
	Metadata        map[string]string
	Confidence      float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasTag reports whether tag is present in e.Tags.
func (e *Experience) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EffectiveContent implements the effective-content synthesis rule (spec.md
// §4.6): if Content is blank and a code artifact is present, synthesize a
// description line plus a fenced code block; otherwise Content verbatim.
func (e *Experience) EffectiveContent() string {
	if e.Content != "" {
		return e.Content
	}
	if e.Artifact == nil || e.Artifact.Kind != ArtifactKindCode {
		return e.Content
	}
	out := ""
	if e.Artifact.Description != "" {
		out += e.Artifact.Description + "\n\n"
	}
	out += "```" + e.Artifact.Language + "\n" + e.Artifact.Body + "\n```"
	return out
}

// Query selects experiences for retrieval.
type Query struct {
	Type   Type
	Language string
	Tags   []string
	Scope  Scope // zero value means no scope filter
}

// QueryContext is the caller's situational context used to rank results by
// scope specificity (spec.md §4.6 Scope resolution priority).
type QueryContext struct {
	UserID    string
	TeamID    string
	ProjectID string
	RepoID    string
	TaskID    string
	Language  string
}
