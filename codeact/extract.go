package codeact

import (
	"fmt"
	"regexp"

	"github.com/agentruntime/core/errs"
)

var (
	pythonFuncRe     = regexp.MustCompile(`(?m)^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	jsFunctionDeclRe = regexp.MustCompile(`(?m)^\s*function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	jsConstArrowRe   = regexp.MustCompile(`(?m)^\s*(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:function\s*\(|\([^)]*\)\s*=>|async\s*\()`)
)

// ExtractFunctionName parses source and recovers the top-level function
// identifier used as the handle in the function table. Failure to extract
// is a hard error: the snippet cannot be registered (spec.md §4.2
// "Function-name extraction").
func ExtractFunctionName(language, source string) (string, error) {
	var re *regexp.Regexp
	switch language {
	case "python":
		re = pythonFuncRe
	default: // javascript
		if m := jsFunctionDeclRe.FindStringSubmatch(source); m != nil {
			return m[1], nil
		}
		re = jsConstArrowRe
	}
	m := re.FindStringSubmatch(source)
	if m == nil {
		return "", errs.New(errs.KindCodeExecution, fmt.Sprintf("could not extract a top-level function name for language %q", language))
	}
	return m[1], nil
}
