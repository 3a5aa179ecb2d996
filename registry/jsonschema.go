package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/agentruntime/core/errs"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// shapeToJSONSchema renders a Shape as a JSON-Schema document (spec.md §3
// "Serializable to JSON-Schema").
func shapeToJSONSchema(s *Shape) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	switch s.Kind {
	case KindPrimitive:
		return map[string]any{"type": jsonSchemaType(s.Primitive)}
	case KindArray:
		return map[string]any{"type": "array", "items": shapeToJSONSchema(s.Item)}
	case KindObject:
		props := make(map[string]any, len(s.Fields))
		var required []string
		for _, name := range s.FieldOrder {
			field := s.Fields[name]
			props[name] = shapeToJSONSchema(field)
			if field == nil || !field.Optional {
				required = append(required, name)
			}
		}
		doc := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			doc["required"] = required
		}
		return doc
	default:
		return map[string]any{}
	}
}

func jsonSchemaType(t ScalarType) string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeString:
		return "string"
	case TypeNull:
		return "null"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	default:
		// "unknown" has no direct JSON-Schema analogue; omit the type
		// constraint entirely so any value validates.
		return ""
	}
}

// paramTreeToJSONSchema renders a tool's parameter tree as a JSON-Schema
// object document (spec.md §3 Parameter Tree).
func paramTreeToJSONSchema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		props[p.Name] = paramToJSONSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func paramToJSONSchema(p Param) map[string]any {
	doc := map[string]any{}
	if t := jsonSchemaType(p.Type); t != "" {
		doc["type"] = t
	}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if p.Default != nil {
		doc["default"] = p.Default
	}
	if len(p.Enum) > 0 {
		doc["enum"] = p.Enum
	}
	switch p.Type {
	case TypeObject:
		if len(p.Children) > 0 {
			child := paramTreeToJSONSchema(p.Children)
			doc["properties"] = child["properties"]
			if req, ok := child["required"]; ok {
				doc["required"] = req
			}
		}
	case TypeArray:
		if p.Items != nil {
			doc["items"] = paramToJSONSchema(*p.Items)
		}
	}
	return doc
}

// validateShapeSchema compiles the JSON-Schema rendering of a declared
// return shape with santhosh-tekuri/jsonschema to catch malformed schemas
// synchronously at registration time (spec.md §7 Validation errors).
func validateShapeSchema(toolName string, shape *Shape) error {
	doc := shapeToJSONSchema(shape)
	raw, err := json.Marshal(doc)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "declared return schema is not serializable", err).WithField("tool", toolName)
	}
	compiler := jsonschema.NewCompiler()
	resourceName := fmt.Sprintf("agentruntime://tools/%s/return.json", toolName)
	unmarshaled, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return errs.Wrap(errs.KindValidation, "declared return schema is not valid JSON", err).WithField("tool", toolName)
	}
	if err := compiler.AddResource(resourceName, unmarshaled); err != nil {
		return errs.Wrap(errs.KindValidation, "declared return schema failed to register", err).WithField("tool", toolName)
	}
	if _, err := compiler.Compile(resourceName); err != nil {
		return errs.Wrap(errs.KindValidation, "declared return schema failed to compile", err).WithField("tool", toolName)
	}
	return nil
}
