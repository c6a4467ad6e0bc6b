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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFirstObject_ValidObjectRoundTrips(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"intent":"product_search"}`,
		`{"a":{"b":{"c":[1,2,3]}}}`,
		`{"constraints":{"price":{"max":100}},"rating":4}`,
	}
	for _, in := range inputs {
		got, complete := ExtractFirstObject(in)
		assert.True(t, complete, "input %q", in)
		assert.Equal(t, in, got, "input %q", in)
	}
}

func TestExtractFirstObject_BracesInsideStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "closing brace in value",
			input: `{"a":"}"}`,
			want:  `{"a":"}"}`,
		},
		{
			name:  "opening brace in value",
			input: `{"text":"a { b"}`,
			want:  `{"text":"a { b"}`,
		},
		{
			name:  "escaped quote before brace",
			input: `{"a":"say \"}\" loud"}`,
			want:  `{"a":"say \"}\" loud"}`,
		},
		{
			name:  "both braces in value",
			input: `{"tpl":"{user_query}"} trailing`,
			want:  `{"tpl":"{user_query}"}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, complete := ExtractFirstObject(tc.input)
			require.True(t, complete)
			assert.Equal(t, tc.want, got)
			assert.True(t, json.Valid([]byte(got)))
		})
	}
}

func TestExtractFirstObject_SurroundingProseDiscarded(t *testing.T) {
	input := `I think the answer is {"intent":"general_chat","message":"Ask me about products!"} Hope that helps!`

	got, complete := ExtractFirstObject(input)

	require.True(t, complete)
	assert.Equal(t, `{"intent":"general_chat","message":"Ask me about products!"}`, got)
}

func TestExtractFirstObject_OnlyFirstOfTwoObjects(t *testing.T) {
	input := `{"intent":"product_search","categories":["electronics"]}{"intent":"general_chat","message":"better formed"}`

	got, complete := ExtractFirstObject(input)

	require.True(t, complete)
	assert.Equal(t, `{"intent":"product_search","categories":["electronics"]}`, got)
}

func TestExtractFirstObject_Truncated(t *testing.T) {
	input := `Sure: {"intent":"product_search","categories":["electronics"]`

	got, complete := ExtractFirstObject(input)

	assert.False(t, complete)
	assert.Equal(t, `{"intent":"product_search","categories":["electronics"]`, got)
}

func TestExtractFirstObject_NoObject(t *testing.T) {
	for _, in := range []string{"", "no json here", `["array","only"]`} {
		got, complete := ExtractFirstObject(in)
		assert.False(t, complete, "input %q", in)
		assert.Empty(t, got, "input %q", in)
	}
}

func TestExtractFirstObject_TruncatedInsideString(t *testing.T) {
	// Cut mid-string: the walk must not mistake the unterminated literal
	// for structure.
	input := `{"message":"I can help with`

	got, complete := ExtractFirstObject(input)

	assert.False(t, complete)
	assert.Equal(t, input, got)
}
