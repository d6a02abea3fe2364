package jsonx

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLargestBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "fenced json block",
			input: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:  `{"a": 1}`,
			ok:    true,
		},
		{
			name:  "fenced block without language tag",
			input: "```\n[1, 2, 3]\n```",
			want:  `[1, 2, 3]`,
			ok:    true,
		},
		{
			name:  "bare object in prose",
			input: `The result is {"level": "Apply", "confidence": 0.9} as requested.`,
			want:  `{"level": "Apply", "confidence": 0.9}`,
			ok:    true,
		},
		{
			name:  "bare array",
			input: `answer: [{"id": 1}, {"id": 2}]`,
			want:  `[{"id": 1}, {"id": 2}]`,
			ok:    true,
		},
		{
			name:  "largest of several candidates wins",
			input: `{"a": 1} and also {"a": 1, "b": 2, "c": 3}`,
			want:  `{"a": 1, "b": 2, "c": 3}`,
			ok:    true,
		},
		{
			name:  "nested object returned whole",
			input: `{"outer": {"inner": [1, 2]}}`,
			want:  `{"outer": {"inner": [1, 2]}}`,
			ok:    true,
		},
		{
			name:  "brackets inside string literals",
			input: `{"text": "an { unmatched brace and ] bracket", "n": 1}`,
			want:  `{"text": "an { unmatched brace and ] bracket", "n": 1}`,
			ok:    true,
		},
		{
			name:  "escaped quotes inside strings",
			input: `{"text": "she said \"hi {\" loudly"}`,
			want:  `{"text": "she said \"hi {\" loudly"}`,
			ok:    true,
		},
		{
			name:  "no json at all",
			input: "I could not produce a structured answer, sorry.",
			ok:    false,
		},
		{
			name:  "unbalanced braces only",
			input: `{"a": 1`,
			ok:    false,
		},
		{
			name:  "invalid fenced block falls back to bare scan",
			input: "```json\nnot json\n```\nbut {\"ok\": true} elsewhere",
			want:  `{"ok": true}`,
			ok:    true,
		},
		{
			name:  "empty input",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractLargestBlock(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
				assert.True(t, json.Valid([]byte(got)), "returned fragment must parse")
			}
		})
	}
}

// The returned fragment must be at least as large (re-serialized) as every
// other parseable candidate in the same input.
func TestExtractLargestBlockIsMaximal(t *testing.T) {
	small := `{"x": 1}`
	large := `{"x": 1, "y": "a much longer payload with more content"}`
	input := fmt.Sprintf("first %s then ```json\n%s\n``` trailing", small, large)

	got, ok := ExtractLargestBlock(input)
	require.True(t, ok)

	var gotVal, largeVal any
	require.NoError(t, json.Unmarshal([]byte(got), &gotVal))
	require.NoError(t, json.Unmarshal([]byte(large), &largeVal))
	assert.Equal(t, largeVal, gotVal)
}
