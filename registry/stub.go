package registry

import (
	"fmt"
	"sort"
	"strings"
)

// GenerateStructuredToolPrompt returns rendered stubs for every tool
// supporting lang, grouped by tool family (TargetClass), suitable for
// insertion into a model prompt (spec.md §4.1).
func (r *Registry) GenerateStructuredToolPrompt(lang string) string {
	records := r.GetToolsForLanguage(lang)
	sort.Slice(records, func(i, j int) bool { return records[i].Definition.Name < records[j].Definition.Name })

	groups := make(map[string][]*Record)
	var ungroupedOrder []string
	var groupOrder []string
	seenGroup := make(map[string]struct{})
	for _, rec := range records {
		class := rec.Definition.Meta.TargetClass
		if class == "" {
			ungroupedOrder = append(ungroupedOrder, rec.Definition.Name)
			groups[""] = append(groups[""], rec)
			continue
		}
		if _, ok := seenGroup[class]; !ok {
			seenGroup[class] = struct{}{}
			groupOrder = append(groupOrder, class)
		}
		groups[class] = append(groups[class], rec)
	}

	var b strings.Builder
	for _, rec := range groups[""] {
		b.WriteString(renderStub(r, rec, lang))
		b.WriteString("\n\n")
	}
	_ = ungroupedOrder
	for _, class := range groupOrder {
		b.WriteString(renderClass(r, class, groups[class], lang))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderClass(r *Registry, class string, recs []*Record, lang string) string {
	var b strings.Builder
	switch lang {
	case "python":
		fmt.Fprintf(&b, "class %s:\n", class)
		for _, rec := range recs {
			method := renderFunctionSignature(rec.Definition, lang, true)
			b.WriteString(indent(method, "    "))
			b.WriteString("\n")
			b.WriteString(indent(renderDocstring(r, rec.Definition, lang), "        "))
			b.WriteString("\n")
		}
	default: // javascript and any other target render a const-bound namespace object
		fmt.Fprintf(&b, "const %s = {\n", class)
		for i, rec := range recs {
			sig := renderFunctionSignature(rec.Definition, lang, false)
			b.WriteString(indent(sig+" {", "  "))
			b.WriteString("\n")
			b.WriteString(indent(renderDocComment(r, rec.Definition, lang), "    "))
			b.WriteString(indent("}", "  "))
			if i < len(recs)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString("};")
	}
	return b.String()
}

func renderStub(r *Registry, rec *Record, lang string) string {
	def := rec.Definition
	sig := renderFunctionSignature(def, lang, true)
	switch lang {
	case "python":
		return fmt.Sprintf("%s\n%s", sig, indent(renderDocstring(r, def, lang), "    "))
	default:
		return fmt.Sprintf("%s\n%s", renderDocComment(r, def, lang), sig)
	}
}

// renderFunctionSignature emits a function signature in the target language
// from the parameter tree, with required parameters first and optional
// parameters (carrying defaults) after (spec.md §4.1).
func renderFunctionSignature(def Definition, lang string, asDef bool) string {
	required, optional := splitParams(def.Params)
	switch lang {
	case "python":
		parts := make([]string, 0, len(required)+len(optional))
		for _, p := range required {
			parts = append(parts, fmt.Sprintf("%s: %s", p.Name, pythonTypeHint(p)))
		}
		for _, p := range optional {
			parts = append(parts, fmt.Sprintf("%s: %s = %s", p.Name, pythonTypeHint(p), pythonLiteral(p.Default)))
		}
		prefix := "def "
		if !asDef {
			prefix = ""
		}
		return fmt.Sprintf("%s%s(%s):", prefix, def.Name, strings.Join(parts, ", "))
	default: // javascript
		parts := make([]string, 0, len(required)+len(optional))
		for _, p := range required {
			parts = append(parts, p.Name)
		}
		for _, p := range optional {
			parts = append(parts, fmt.Sprintf("%s = %s", p.Name, jsLiteral(p.Default)))
		}
		return fmt.Sprintf("function %s(%s)", def.Name, strings.Join(parts, ", "))
	}
}

func splitParams(params []Param) (required, optional []Param) {
	for _, p := range params {
		if p.Required {
			required = append(required, p)
		} else {
			optional = append(optional, p)
		}
	}
	return
}

// renderDocstring emits a docstring in the fixed grammar: one-line
// description, an Args section, a Returns section derived from the current
// return schema, and up to three few-shot examples (spec.md §4.1).
func renderDocstring(r *Registry, def Definition, lang string) string {
	var b strings.Builder
	b.WriteString(`"""`)
	b.WriteString(firstLine(def.Description))
	b.WriteString("\n\n")
	writeArgsSection(&b, def.Params, "Args:")
	b.WriteString("\n")
	writeReturnsSection(&b, r, def, "Returns:")
	writeExamplesSection(&b, def)
	b.WriteString(`"""`)
	return b.String()
}

func renderDocComment(r *Registry, def Definition, lang string) string {
	var b strings.Builder
	b.WriteString("/**\n")
	fmt.Fprintf(&b, " * %s\n", firstLine(def.Description))
	b.WriteString(" *\n")
	var args strings.Builder
	writeArgsSection(&args, def.Params, "")
	for _, line := range strings.Split(strings.TrimRight(args.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, " * @param %s\n", line)
	}
	var ret strings.Builder
	writeReturnsSection(&ret, r, def, "")
	for _, line := range strings.Split(strings.TrimRight(ret.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, " * @returns %s\n", line)
	}
	b.WriteString(" */")
	return b.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func writeArgsSection(b *strings.Builder, params []Param, header string) {
	if len(params) == 0 {
		return
	}
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n")
	}
	for _, p := range params {
		optMarker := ""
		if !p.Required {
			optMarker = ", optional"
		}
		defaultPart := ""
		if !p.Required && p.Default != nil {
			defaultPart = fmt.Sprintf(" (default: %v)", p.Default)
		}
		desc := p.Description
		if desc != "" {
			desc = ": " + desc
		}
		fmt.Fprintf(b, "    %s (%s%s)%s%s\n", p.Name, p.Type, optMarker, desc, defaultPart)
	}
}

// writeReturnsSection derives the Returns body from the tool's current
// effective return schema, expanding objects up to two nested levels and
// describing arrays by their item shape (spec.md §4.1). When no schema is
// available it falls back to a best-effort default type hint.
func writeReturnsSection(b *strings.Builder, r *Registry, def Definition, header string) {
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n")
	}
	var schema *ReturnSchema
	if r != nil {
		schema, _ = r.GetReturnSchema(def.Name)
	}
	if schema == nil || schema.Success == nil {
		b.WriteString("    Result of unknown shape (no schema observed yet).\n")
		return
	}
	b.WriteString(describeShape(schema.Success, 0, 2))
}

func describeShape(s *Shape, depth, maxDepth int) string {
	var b strings.Builder
	indentStr := strings.Repeat("    ", depth+1)
	switch s.Kind {
	case KindPrimitive:
		fmt.Fprintf(&b, "%s%s\n", indentStr, s.Primitive)
	case KindArray:
		fmt.Fprintf(&b, "%sarray of %s\n", indentStr, describeItemInline(s.Item))
	case KindObject:
		fmt.Fprintf(&b, "%sobject:\n", indentStr)
		if depth < maxDepth {
			for _, name := range s.FieldOrder {
				field := s.Fields[name]
				optMarker := ""
				if field != nil && field.Optional {
					optMarker = ", optional"
				}
				fmt.Fprintf(&b, "%s    %s (%s%s)\n", indentStr, name, shapeKindLabel(field), optMarker)
				if field != nil && field.Kind == KindObject && depth+1 < maxDepth {
					// Expand the nested object's fields under this line,
					// dropping its own "object:" header.
					nested := describeShape(field, depth+1, maxDepth)
					if i := strings.IndexByte(nested, '\n'); i >= 0 {
						b.WriteString(nested[i+1:])
					}
				}
			}
		}
	}
	return b.String()
}

func describeItemInline(s *Shape) string {
	if s == nil {
		return "unknown"
	}
	return shapeKindLabel(s)
}

func shapeKindLabel(s *Shape) string {
	if s == nil {
		return "unknown"
	}
	switch s.Kind {
	case KindPrimitive:
		return string(s.Primitive)
	case KindArray:
		return "array of " + shapeKindLabel(s.Item)
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

func writeExamplesSection(b *strings.Builder, def Definition) {
	examples := def.Meta.Examples
	if len(examples) > 3 {
		examples = examples[:3]
	}
	if len(examples) == 0 {
		return
	}
	b.WriteString("\nExamples:\n")
	for _, ex := range examples {
		if ex.Description != "" {
			fmt.Fprintf(b, "    # %s\n", ex.Description)
		}
		fmt.Fprintf(b, "    %s\n", ex.Call)
	}
}

func pythonTypeHint(p Param) string {
	switch p.Type {
	case TypeInteger:
		return "int"
	case TypeNumber:
		return "float"
	case TypeBoolean:
		return "bool"
	case TypeString:
		return "str"
	case TypeObject:
		return "dict"
	case TypeArray:
		return "list"
	default:
		return "Any"
	}
}

func pythonLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func jsLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
