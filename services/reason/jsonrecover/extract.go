// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jsonrecover recovers well-formed JSON from the raw text a small
// local language model produces. Model output is routinely wrapped in prose,
// truncated at the generation token limit, or followed by hallucinated
// duplicate objects; this package extracts the first balanced object and,
// when the object is cut off mid-stream, repairs it into parseable JSON.
//
// Thread Safety:
//
//	All functions are pure and safe for concurrent use.
package jsonrecover

import "strings"

// ExtractFirstObject scans text for the first balanced JSON object.
//
// # Description
//
// Locates the first '{' and walks forward tracking string and escape state
// so that braces inside string literals never affect the depth count
// (`{"a":"}"}` is one complete object, not a truncated one). When the depth
// returns to zero the object is complete; anything after the matching '}'
// is discarded — the model sometimes emits duplicate or follow-up objects
// and only the first is trusted.
//
// # Inputs
//
//   - text: Raw model output. May be empty, prose, or multiple objects.
//
// # Outputs
//
//   - string: The object fragment. Runs from the first '{' to the matching
//     '}' when complete, or to end-of-input when truncated. Empty when the
//     text contains no '{'.
//   - bool: True when the fragment is a balanced object.
//
// # Thread Safety
//
// Stateless. Safe for concurrent use.
func ExtractFirstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// Braces inside string literals do not count.
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	// Input ended with the object still open: return what we have so the
	// repairer can close it.
	return text[start:], false
}
