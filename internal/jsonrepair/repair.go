// Package jsonrepair recovers JSON documents from model replies that are fenced,
// broken across lines, or truncated by the output token limit.
package jsonrepair

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Layer names the recovery step that produced a document
type Layer string

const (
	LayerDirect    Layer = "direct"
	LayerFixed     Layer = "fixed"
	LayerExtracted Layer = "extracted"
	LayerSalvaged  Layer = "salvaged"
)

// maxTrim bounds how far salvage walks back through truncated text
const maxTrim = 500

// ErrUnrecoverable is wrapped by every ParseError
var ErrUnrecoverable = errors.New("no recovery layer produced valid JSON")

// ParseError reports a reply that no layer could recover
type ParseError struct {
	Length  int
	Snippet string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonrepair: %d chars starting %q: %v", e.Length, e.Snippet, e.Cause)
}

func (e *ParseError) Unwrap() []error { return []error{ErrUnrecoverable, e.Cause} }

// Parse returns the first layer's result that is valid JSON
func Parse(text string) (json.RawMessage, Layer, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), LayerDirect, nil
	}

	fixed := Fix(trimmed)
	if fixed != "" && json.Valid([]byte(fixed)) {
		return json.RawMessage(fixed), LayerFixed, nil
	}

	if raw, err := ExtractFirstObject(fixed); err == nil {
		return raw, LayerExtracted, nil
	}

	if raw, ok := Salvage(fixed); ok {
		return raw, LayerSalvaged, nil
	}

	snippet := trimmed
	if len(snippet) > 80 {
		snippet = snippet[:80]
	}
	var syntaxErr error = errors.New("empty reply")
	if trimmed != "" {
		var v any
		syntaxErr = json.Unmarshal([]byte(fixed), &v)
	}
	return nil, "", &ParseError{Length: len(text), Snippet: snippet, Cause: syntaxErr}
}

// Fix strips code fences, joins string literals broken across lines and drops
// trailing commas. Quote and escape state is tracked so string contents are
// never rewritten except for raw newlines.
func Fix(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString && c == '\n':
			c = ' '
		case inString && c == '\r':
			continue
		case !inString && c == ',' && closesNext(text, i+1):
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesNext(text string, from int) bool {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}

// ExtractFirstObject decodes the first complete object in text and ignores
// whatever follows it
func ExtractFirstObject(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, errors.New("no object start")
	}
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Salvage closes a truncated object. It first closes any open string and the
// unmatched openers in reverse nesting order; if that is still invalid it walks
// back through the last few hundred characters, recounting at each position.
func Salvage(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	text = text[start:]

	st := scan(text)
	if len(st.stack) == 0 && !st.inString && json.Valid([]byte(text)) {
		return json.RawMessage(text), true
	}

	candidate := strings.TrimRight(text, " \t\r\n")
	if st.inString && !strings.HasSuffix(candidate, `"`) {
		candidate += `"`
	}
	candidate = strings.TrimRight(candidate, ", \t\r\n")
	if out := closeAll(candidate, st.stack); json.Valid(out) {
		return out, true
	}

	floor := len(text) - maxTrim
	if floor < 0 {
		floor = 0
	}
	for pos := len(text) - 1; pos > floor; pos-- {
		candidate := strings.TrimRight(strings.TrimRight(text[:pos], " \t\r\n"), ", \t\r\n")
		st := scan(candidate)
		if st.inString {
			candidate += `"`
		}
		if out := closeAll(candidate, st.stack); json.Valid(out) {
			return out, true
		}
	}
	return nil, false
}

type scanState struct {
	stack    []byte
	inString bool
}

func scan(text string) scanState {
	var st scanState
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			st.inString = !st.inString
			continue
		}
		if st.inString {
			continue
		}
		switch c {
		case '{', '[':
			st.stack = append(st.stack, c)
		case '}', ']':
			if len(st.stack) > 0 {
				st.stack = st.stack[:len(st.stack)-1]
			}
		}
	}
	return st
}

func closeAll(text string, stack []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(text) + len(stack))
	buf.WriteString(text)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			buf.WriteByte('}')
		} else {
			buf.WriteByte(']')
		}
	}
	return buf.Bytes()
}
