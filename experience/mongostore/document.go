package mongostore

import (
	"time"

	"github.com/agentruntime/core/experience"
)

// document mirrors experience.Experience as a bson-tagged wire type,
// following the teacher's runDocument/eventDocument split between the
// domain type and its stored shape.
type document struct {
	ID              string            `bson:"_id"`
	Type            string            `bson:"type"`
	Title           string            `bson:"title"`
	Content         string            `bson:"content"`
	Artifact        *artifactDocument `bson:"artifact,omitempty"`
	FastIntentRule  *fastIntentDoc    `bson:"fast_intent_rule,omitempty"`
	Scope           string            `bson:"scope"`
	Owner           string            `bson:"owner,omitempty"`
	Project         string            `bson:"project,omitempty"`
	Repo            string            `bson:"repo,omitempty"`
	Language        string            `bson:"language,omitempty"`
	Tags            []string          `bson:"tags,omitempty"`
	Metadata        map[string]string `bson:"metadata,omitempty"`
	Confidence      float64           `bson:"confidence,omitempty"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

type artifactDocument struct {
	Kind        string   `bson:"kind"`
	Language    string   `bson:"language,omitempty"`
	Body        string   `bson:"body,omitempty"`
	Description string   `bson:"description,omitempty"`
	ToolNames   []string `bson:"tool_names,omitempty"`
}

type fastIntentDoc struct {
	Kind  string `bson:"kind"`
	Key   string `bson:"key,omitempty"`
	Value string `bson:"value,omitempty"`
}

func toDocument(e *experience.Experience) document {
	d := document{
		ID:         e.ID,
		Type:       string(e.Type),
		Title:      e.Title,
		Content:    e.Content,
		Scope:      string(e.Scope),
		Owner:      e.Attribution.Owner,
		Project:    e.Attribution.Project,
		Repo:       e.Attribution.Repo,
		Language:   e.Language,
		Tags:       e.Tags,
		Metadata:   e.Metadata,
		Confidence: e.Confidence,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	if e.Artifact != nil {
		d.Artifact = &artifactDocument{
			Kind:        string(e.Artifact.Kind),
			Language:    e.Artifact.Language,
			Body:        e.Artifact.Body,
			Description: e.Artifact.Description,
			ToolNames:   e.Artifact.ToolNames,
		}
	}
	if e.FastIntentRule != nil {
		d.FastIntentRule = &fastIntentDoc{
			Kind:  e.FastIntentRule.Kind,
			Key:   e.FastIntentRule.Key,
			Value: e.FastIntentRule.Value,
		}
	}
	return d
}

func fromDocument(d document) *experience.Experience {
	e := &experience.Experience{
		ID:      d.ID,
		Type:    experience.Type(d.Type),
		Title:   d.Title,
		Content: d.Content,
		Scope:   experience.Scope(d.Scope),
		Attribution: experience.Attribution{
			Owner:   d.Owner,
			Project: d.Project,
			Repo:    d.Repo,
		},
		Language:   d.Language,
		Tags:       d.Tags,
		Metadata:   d.Metadata,
		Confidence: d.Confidence,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.Artifact != nil {
		e.Artifact = &experience.Artifact{
			Kind:        experience.ArtifactKind(d.Artifact.Kind),
			Language:    d.Artifact.Language,
			Body:        d.Artifact.Body,
			Description: d.Artifact.Description,
			ToolNames:   d.Artifact.ToolNames,
		}
	}
	if d.FastIntentRule != nil {
		e.FastIntentRule = &experience.FastIntentRule{
			Kind:  d.FastIntentRule.Kind,
			Key:   d.FastIntentRule.Key,
			Value: d.FastIntentRule.Value,
		}
	}
	return e
}
