// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jsonrecover

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Truncation Pattern Table
// =============================================================================

// truncationRepair completes a known dangling tail left when generation stops
// at the token limit. The model truncates mid-key-name or mid-value; each
// entry recognizes one tail and replaces it with the most probable completed
// key/value pair.
type truncationRepair struct {
	// suffix is the dangling tail to recognize at the end of the fragment.
	suffix string

	// keep is how many bytes of the matched suffix to keep. Zero drops the
	// whole suffix; len(suffix) keeps it and only appends.
	keep int

	// completion is appended after trimming.
	completion string
}

// truncationRepairs lists the known truncation tails, first match wins.
// The partial-key entries cover the analysis schema the shopping prompt asks
// the model to emit; adding a field means adding a row here, not a branch.
var truncationRepairs = []truncationRepair{
	// Dangling partial keys: an opening quote plus the start of a known key.
	{suffix: `"ui`, keep: 0, completion: `"ui_handlers":[]`},
	{suffix: `"var`, keep: 0, completion: `"variants":[]`},
	{suffix: `"con`, keep: 0, completion: `"confidence":0.9`},
	{suffix: `"cat`, keep: 0, completion: `"categories":[]`},
	{suffix: `"pro`, keep: 0, completion: `"product_items":[]`},

	// Keys cut off right after the colon, before any value appeared.
	{suffix: `"rating":`, keep: len(`"rating":`), completion: `4`},
	{suffix: `"price":`, keep: len(`"price":`), completion: `{}`},
}

// =============================================================================
// Repair
// =============================================================================

// Repair turns a possibly-truncated JSON fragment into valid JSON text.
//
// # Description
//
// Total function: the result always parses, worst case "{}". Already-valid
// input is returned byte-for-byte, so Repair is idempotent on anything the
// parser accepts. Otherwise the fragment is patched in three passes:
//
//  1. Complete a dangling tail using the truncation pattern table (a key cut
//     mid-name, a key with colon but no value, a trailing comma).
//  2. Re-walk the fragment with the same string/escape awareness as
//     ExtractFirstObject, tracking a stack of open '{' and '[' delimiters.
//  3. Close every unmatched delimiter innermost-first, so a bracket opened
//     inside an object is closed before the object itself.
//
// If the patched result still fails to parse the data is considered lost and
// "{}" is returned — the caller degrades to its fallback plan rather than
// surfacing a parse error.
//
// # Inputs
//
//   - fragment: Truncated fragment from ExtractFirstObject, or raw model
//     text when no balanced object was found at all.
//
// # Outputs
//
//   - string: Valid JSON text. Never empty, never unparseable.
//
// # Thread Safety
//
// Stateless. Safe for concurrent use.
func Repair(fragment string) string {
	if json.Valid([]byte(fragment)) {
		return fragment
	}
	if strings.TrimSpace(fragment) == "" {
		return "{}"
	}

	start := strings.IndexByte(fragment, '{')
	if start < 0 {
		return "{}"
	}

	candidate := strings.TrimSpace(fragment[start:])
	candidate = completeDanglingTail(candidate)
	candidate = closeOpenDelimiters(candidate)

	if json.Valid([]byte(candidate)) {
		return candidate
	}
	return "{}"
}

// completeDanglingTail patches the end of a truncated fragment using the
// truncation pattern table, then the two generic rules: a bare trailing
// colon gets a null value, a trailing comma is stripped.
func completeDanglingTail(fragment string) string {
	fragment = strings.TrimRight(fragment, " \t\r\n")

	for _, r := range truncationRepairs {
		if strings.HasSuffix(fragment, r.suffix) {
			return fragment[:len(fragment)-len(r.suffix)+r.keep] + r.completion
		}
	}

	switch {
	case strings.HasSuffix(fragment, ":"):
		return fragment + "null"
	case strings.HasSuffix(fragment, ","):
		return fragment[:len(fragment)-1]
	}
	return fragment
}

// closeOpenDelimiters appends the closers for every unmatched '{' and '['.
//
// A stack of open delimiters (not independent counts) preserves nesting:
// walking left-to-right, any unmatched '[' inside an unmatched '{' sits
// above it on the stack and is therefore closed first.
func closeOpenDelimiters(fragment string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(fragment)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			sb.WriteByte(']')
		} else {
			sb.WriteByte('}')
		}
	}
	return sb.String()
}
