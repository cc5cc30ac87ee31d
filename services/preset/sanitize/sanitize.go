// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sanitize cleans untrusted free text before it reaches a prompt or
// a cache key.
//
// # Description
//
// Text removes characters that could break prompt framing or JSON
// delimiters (angle brackets, braces, control characters) and truncates the
// result. It is deterministic and total: it never fails.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxLength is the maximum number of characters (runes) kept by Text.
const MaxLength = 5000

var (
	// delimiterPattern matches prompt/JSON framing characters.
	delimiterPattern = regexp.MustCompile(`[<>{}]`)

	// controlPattern matches C0 controls except tab and newline, plus DEL.
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0B-\x1F\x7F]`)
)

// Text returns s with unsafe characters removed, surrounding whitespace
// trimmed, and at most MaxLength runes.
//
// # Examples
//
//	sanitize.Text("<b>Build {x}</b>\x00") // "bBuild x/b"
func Text(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	s = delimiterPattern.ReplaceAllString(s, "")
	s = controlPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return truncate(s, MaxLength)
}

// Answers returns a copy of answers with Text applied to every string
// value, including strings nested in maps and slices. Keys are sanitized
// too. A nil map stays nil.
func Answers(answers map[string]any) map[string]any {
	if answers == nil {
		return nil
	}
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		out[Text(k)] = value(v)
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case map[string]any:
		return Answers(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = value(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = Text(item)
		}
		return out
	default:
		return v
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
