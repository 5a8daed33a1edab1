// Package adapter turns the generation engine's loosely-structured output
// into the entity shapes the repository requires. Extraction is a fixed
// chain of parser attempts; normalization is per-entity and per-record —
// one malformed record never blocks the rest.
package adapter

import (
	"encoding/json"
	"strings"
)

// parserAttempt is one stage of the extraction chain.
type parserAttempt struct {
	name  string
	parse func(string) (any, bool)
}

// extractionChain is tried in order; the first success wins.
var extractionChain = []parserAttempt{
	{"strict", parseStrict},
	{"fenced", parseFenced},
	{"lenient", parseLenient},
}

// Extract attempts structured-data extraction from raw engine output.
// On failure it returns the original text and ok=false — the caller logs
// and skips, extraction never errors.
func Extract(raw string) (value any, parser string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	for _, attempt := range extractionChain {
		if v, parsed := attempt.parse(trimmed); parsed {
			return v, attempt.name, true
		}
	}
	return raw, "", false
}

func parseStrict(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	// A bare string or number is not a usable structured result.
	return nil, false
}

// parseFenced strips one enclosing Markdown code fence and retries the
// strict parse, then the lenient one.
func parseFenced(s string) (any, bool) {
	body, found := stripFence(s)
	if !found {
		return nil, false
	}
	if v, ok := parseStrict(body); ok {
		return v, true
	}
	return parseLenient(body)
}

func stripFence(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	// Drop the info string (```json, ```python, ...).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// parseLenient tolerates the pseudo-JSON the engine sometimes emits:
// trailing commas, single-quoted strings, Python booleans and None, and
// line comments.
func parseLenient(s string) (any, bool) {
	// Narrow to the outermost object or array if prose surrounds it.
	s = clipToLiteral(s)
	if s == "" {
		return nil, false
	}
	return parseStrict(string(sanitizeLiteral(s)))
}

// clipToLiteral returns the substring from the first '{' or '[' to the
// matching last '}' or ']'.
func clipToLiteral(s string) string {
	open := strings.IndexAny(s, "{[")
	if open < 0 {
		return ""
	}
	var closer byte = '}'
	if s[open] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= open {
		return ""
	}
	return s[open : end+1]
}

// sanitizeLiteral rewrites a permissive literal into strict JSON. It walks
// the input byte-wise tracking string state so replacements never touch
// string contents.
func sanitizeLiteral(s string) []byte {
	var out []byte
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '"':
			j := skipString(s, i, '"')
			out = append(out, s[i:j]...)
			i = j
		case c == '\'':
			// Re-quote single-quoted strings, escaping interior double quotes.
			j := skipString(s, i, '\'')
			out = append(out, '"')
			inner := s[i+1 : j-1]
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			inner = strings.ReplaceAll(inner, `"`, `\"`)
			out = append(out, inner...)
			out = append(out, '"')
			i = j
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			i = skipLine(s, i)
		case c == '#':
			i = skipLine(s, i)
		case c == ',':
			// Drop trailing commas before a closing bracket.
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				i++
				continue
			}
			out = append(out, c)
			i++
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdent(s[j]) {
				j++
			}
			switch s[i:j] {
			case "True":
				out = append(out, "true"...)
			case "False":
				out = append(out, "false"...)
			case "None":
				out = append(out, "null"...)
			default:
				out = append(out, s[i:j]...)
			}
			i = j
		default:
			out = append(out, c)
			i++
		}
	}
	return out
}

// skipString returns the index just past the closing quote, honoring
// backslash escapes. An unterminated string runs to end of input.
func skipString(s string, start int, quote byte) int {
	i := start + 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipLine(s string, start int) int {
	if nl := strings.IndexByte(s[start:], '\n'); nl >= 0 {
		return start + nl
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_'
}

func isIdent(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
