package registry

import (
	"encoding/json"
)

// shapeOf infers a Shape from a decoded JSON value (the result of
// json.Unmarshal into an any).
func shapeOf(v any) *Shape {
	switch t := v.(type) {
	case nil:
		return &Shape{Kind: KindPrimitive, Primitive: TypeNull}
	case bool:
		return &Shape{Kind: KindPrimitive, Primitive: TypeBoolean}
	case float64:
		return &Shape{Kind: KindPrimitive, Primitive: TypeNumber}
	case string:
		return &Shape{Kind: KindPrimitive, Primitive: TypeString}
	case []any:
		item := (*Shape)(nil)
		for _, elem := range t {
			item = mergeShape(item, shapeOf(elem))
		}
		if item == nil {
			item = &Shape{Kind: KindPrimitive, Primitive: TypeUnknown}
		}
		return &Shape{Kind: KindArray, Item: item}
	case map[string]any:
		s := &Shape{Kind: KindObject, Fields: make(map[string]*Shape, len(t))}
		for k, val := range t {
			s.Fields[k] = shapeOf(val)
			s.FieldOrder = append(s.FieldOrder, k)
		}
		return s
	default:
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown}
	}
}

// shapeFromJSON decodes payload and infers its Shape. An empty or
// unparseable payload yields an optional-unknown shape, and the JSON literal
// null yields an optional null shape (which mergeShape treats as absent),
// rather than an error: schema observation never fails the caller (spec.md
// §4.1 "Observation errors are swallowed").
func shapeFromJSON(payload []byte) *Shape {
	var v any
	if len(payload) == 0 {
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown, Optional: true}
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown, Optional: true}
	}
	if v == nil {
		return &Shape{Kind: KindPrimitive, Primitive: TypeNull, Optional: true}
	}
	return shapeOf(v)
}

// mergeShape implements the merge rules from spec.md §4.1:
//
//	primitive ⊔ primitive of same type      → the primitive
//	primitive ⊔ primitive of different type → primitive(unknown)
//	object ⊔ object                         → union of fields; fields present
//	                                           in only one side become optional
//	array ⊔ array                           → array of merged item shapes
//	shape ⊔ null (absent)                   → shape marked optional
//
// Merging never forgets a field or value type once observed: the result
// always covers the union of both inputs.
func mergeShape(a, b *Shape) *Shape {
	if a == nil {
		return cloneShape(b)
	}
	if b == nil {
		return cloneShape(a)
	}
	if isAbsent(a) {
		out := cloneShape(b)
		out.Optional = true
		return out
	}
	if isAbsent(b) {
		out := cloneShape(a)
		out.Optional = true
		return out
	}
	if a.Kind != b.Kind {
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown, Optional: a.Optional || b.Optional}
	}
	switch a.Kind {
	case KindPrimitive:
		if a.Primitive == b.Primitive {
			return &Shape{Kind: KindPrimitive, Primitive: a.Primitive, Optional: a.Optional || b.Optional}
		}
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown, Optional: a.Optional || b.Optional}
	case KindArray:
		return &Shape{Kind: KindArray, Item: mergeShape(a.Item, b.Item), Optional: a.Optional || b.Optional}
	case KindObject:
		return mergeObjectShape(a, b)
	default:
		return &Shape{Kind: KindPrimitive, Primitive: TypeUnknown}
	}
}

func isAbsent(s *Shape) bool {
	return s != nil && s.Kind == KindPrimitive && s.Primitive == TypeNull
}

func mergeObjectShape(a, b *Shape) *Shape {
	out := &Shape{Kind: KindObject, Fields: make(map[string]*Shape)}
	seen := make(map[string]struct{})
	for _, name := range a.FieldOrder {
		seen[name] = struct{}{}
		out.FieldOrder = append(out.FieldOrder, name)
		bField, inB := b.Fields[name]
		if !inB {
			clone := cloneShape(a.Fields[name])
			clone.Optional = true
			out.Fields[name] = clone
			continue
		}
		out.Fields[name] = mergeShape(a.Fields[name], bField)
	}
	for _, name := range b.FieldOrder {
		if _, ok := seen[name]; ok {
			continue
		}
		out.FieldOrder = append(out.FieldOrder, name)
		clone := cloneShape(b.Fields[name])
		clone.Optional = true
		out.Fields[name] = clone
	}
	out.Optional = a.Optional || b.Optional
	return out
}

func cloneShape(s *Shape) *Shape {
	if s == nil {
		return nil
	}
	out := &Shape{Kind: s.Kind, Primitive: s.Primitive, Optional: s.Optional}
	if s.Item != nil {
		out.Item = cloneShape(s.Item)
	}
	if s.Fields != nil {
		out.Fields = make(map[string]*Shape, len(s.Fields))
		out.FieldOrder = append([]string(nil), s.FieldOrder...)
		for k, v := range s.Fields {
			out.Fields[k] = cloneShape(v)
		}
	}
	return out
}

// Equal reports whether two shapes describe the same structure, ignoring
// field ordering but not ignoring optionality.
func (s *Shape) Equal(other *Shape) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Kind != other.Kind || s.Optional != other.Optional {
		return false
	}
	switch s.Kind {
	case KindPrimitive:
		return s.Primitive == other.Primitive
	case KindArray:
		return s.Item.Equal(other.Item)
	case KindObject:
		if len(s.Fields) != len(other.Fields) {
			return false
		}
		for k, v := range s.Fields {
			ov, ok := other.Fields[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}
