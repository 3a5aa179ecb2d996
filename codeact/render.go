package codeact

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RenderFunctionCall emits a syntactically valid call to function in the
// target language, converting the argument map's values to target-language
// literals (spec.md §4.2 "Function-call rendering"). Map keys are rendered
// in sorted order for determinism.
func RenderFunctionCall(language, function string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch language {
	case "python":
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, pythonLiteral(args[k])))
		}
		return fmt.Sprintf("%s(%s)", function, strings.Join(parts, ", "))
	default: // javascript
		obj := jsLiteral(mapToOrdered(args, keys))
		return fmt.Sprintf("%s(%s)", function, obj)
	}
}

func mapToOrdered(m map[string]any, keys []string) orderedMap {
	return orderedMap{keys: keys, values: m}
}

type orderedMap struct {
	keys   []string
	values map[string]any
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
		return pythonStringLiteral(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = pythonLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(t)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", pythonStringLiteral(k), pythonLiteral(t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func jsLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return jsStringLiteral(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = jsLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(t)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", jsStringLiteral(k), jsLiteral(t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case orderedMap:
		parts := make([]string, len(t.keys))
		for i, k := range t.keys {
			parts[i] = fmt.Sprintf("%s: %s", jsStringLiteral(k), jsLiteral(t.values[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pythonStringLiteral(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
	return "'" + escaped + "'"
}

func jsStringLiteral(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
	return `"` + escaped + `"`
}
