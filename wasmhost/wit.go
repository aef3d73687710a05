package wasmhost

import (
	"regexp"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/jsbridge/errors"
)

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// parseWIT extracts function signatures from WIT text.
// Pattern: [export] name: func(params) -> result;
func parseWIT(text string) (map[string]signature, error) {
	sigs := make(map[string]signature)

	for _, match := range funcPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		paramsStr := strings.TrimSpace(match[2])
		resultStr := strings.TrimSpace(match[3])

		var sig signature
		for _, p := range splitParams(paramsStr) {
			typStr := p
			if idx := strings.LastIndex(p, ":"); idx != -1 {
				typStr = p[idx+1:]
			}
			t, err := parseType(typStr)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse param type of "+name)
			}
			sig.params = append(sig.params, t)
		}

		if resultStr != "" && resultStr != "()" {
			parts := []string{resultStr}
			if strings.HasPrefix(resultStr, "(") && strings.HasSuffix(resultStr, ")") {
				parts = splitParams(resultStr[1 : len(resultStr)-1])
			}
			for _, part := range parts {
				if idx := strings.LastIndex(part, ":"); idx != -1 {
					part = part[idx+1:]
				}
				t, err := parseType(part)
				if err != nil {
					return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse result type of "+name)
				}
				sig.results = append(sig.results, t)
			}
		}

		sigs[name] = sig
	}

	if len(sigs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no functions found in WIT text")
	}
	return sigs, nil
}

// splitParams splits a parameter list, handling nested angle brackets
// and parens.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
		case ')', '>':
			depth--
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
				continue
			}
		}
		current.WriteRune(ch)
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}
	return result
}

func parseType(s string) (wit.Type, error) {
	return wit.ParseType(strings.TrimSpace(s))
}
