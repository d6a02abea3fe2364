// Package jsonx extracts machine-readable JSON from LLM responses that wrap
// it in prose or markdown fencing.
package jsonx

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractLargestBlock returns the largest syntactically valid JSON fragment
// found in content, or ok=false when no candidate parses. Candidates are
// collected from fenced code blocks and from a bracket-depth scan of the raw
// text; "largest" is measured by the length of the re-serialized value, so a
// fenced fragment and a bare fragment of the same value tie rather than
// compete on whitespace.
func ExtractLargestBlock(content string) (string, bool) {
	var candidates []string

	for _, m := range fencedBlock.FindAllStringSubmatch(content, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	candidates = append(candidates, scanBracketed(content)...)

	best := ""
	bestSize := 0
	found := false
	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		serialized, err := json.Marshal(parsed)
		if err != nil {
			continue
		}
		if !found || len(serialized) > bestSize {
			best = candidate
			bestSize = len(serialized)
			found = true
		}
	}
	return best, found
}

// scanBracketed collects every balanced {...} or [...] span in content.
// Depth is tracked per bracket kind, and brackets inside JSON string
// literals (including escaped quotes) are ignored.
func scanBracketed(content string) []string {
	var candidates []string
	for i := 0; i < len(content); i++ {
		open := content[i]
		if open != '{' && open != '[' {
			continue
		}
		if candidate, ok := matchSpan(content, i, open); ok {
			candidates = append(candidates, candidate)
		}
	}
	return candidates
}

func matchSpan(content string, start int, open byte) (string, bool) {
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for j := start; j < len(content); j++ {
		ch := content[j]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(content[start : j+1]), true
			}
		}
	}
	return "", false
}
