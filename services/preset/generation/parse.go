// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("```(?:json|JSON)?\\s*\\n([\\s\\S]*?)```")

// ExtractJSON returns the JSON object embedded in a model completion.
//
// # Description
//
// Models often wrap JSON in markdown fences or surround it with prose.
// ExtractJSON prefers the first fenced block and otherwise returns the
// first balanced {...} object. Braces inside JSON strings are ignored when
// balancing.
//
// # Outputs
//
//   - string: The object text, or "" when no object is found.
func ExtractJSON(content string) string {
	if m := codeFencePattern.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// decodeCompletion extracts and decodes the JSON object in a completion.
func decodeCompletion(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return errors.New("no JSON object in completion")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	return nil
}
