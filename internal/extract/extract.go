// Package extract pulls structured values out of free-form model output.
//
// Models are asked for a single JSON object but routinely wrap it in code
// fences or surround it with prose. JSON tries the raw text first, then the
// text with fences removed, then the outermost {...} block.
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrUnparsable is returned by Parsed.Get when no value could be decoded.
var ErrUnparsable = errors.New("no JSON object in text")

// Parsed is the result of a best-effort extraction: either a decoded value or
// the reason nothing could be decoded.
type Parsed[T any] struct {
	value T
	ok    bool
	err   error
}

// Get returns the value or an error wrapping ErrUnparsable.
func (p Parsed[T]) Get() (T, error) {
	if p.ok {
		return p.value, nil
	}
	return p.value, p.err
}

func unparsable[T any](cause error) Parsed[T] {
	if cause == nil {
		return Parsed[T]{err: ErrUnparsable}
	}
	return Parsed[T]{err: errors.Join(ErrUnparsable, cause)}
}

var fenceRe = regexp.MustCompile("(?m)^\\s*```[a-zA-Z0-9_-]*\\s*$")

// StripFences removes ``` markers (with optional language tag) from s.
func StripFences(s string) string {
	s = fenceRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ObjectBlock returns the text between the first '{' and the last '}'.
func ObjectBlock(s string) (string, bool) {
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first < 0 || last <= first {
		return "", false
	}
	return s[first : last+1], true
}

// JSON decodes the single JSON object carried in text into a T.
func JSON[T any](text string) Parsed[T] {
	text = strings.TrimSpace(text)
	if text == "" {
		return unparsable[T](nil)
	}

	var firstErr error
	for _, candidate := range candidates(text) {
		var v T
		err := json.Unmarshal([]byte(candidate), &v)
		if err == nil {
			return Parsed[T]{value: v, ok: true}
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return unparsable[T](firstErr)
}

func candidates(text string) []string {
	out := []string{}
	if strings.HasPrefix(text, "{") {
		out = append(out, text)
	}
	stripped := StripFences(text)
	if stripped != text && strings.HasPrefix(stripped, "{") {
		out = append(out, stripped)
	}
	if block, ok := ObjectBlock(stripped); ok {
		out = append(out, block)
	}
	return out
}
