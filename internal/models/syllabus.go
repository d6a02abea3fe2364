package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SyllabusItem is one curriculum objective candidates are drawn from.
type SyllabusItem struct {
	Topic     string `json:"topic"`
	Objective string `json:"objective"`
}

// SyllabusMatch is one objective the model judged relevant. ID is 1-based
// into the candidate list the model was shown.
type SyllabusMatch struct {
	ID     int    `json:"id"`
	Reason string `json:"reason"`
}

// SyllabusMatchError records an LLM response that could not be parsed. The
// raw text is kept so the failure stays inspectable all the way to the
// report.
type SyllabusMatchError struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// SyllabusMatches is a tagged union: either a list of matches or a parse
// error envelope. Exactly one side is set. It serializes as the original
// wire shape (a JSON array, or an {error, raw} object) so the distinction
// survives storage and rendering without shape-sniffing by consumers.
type SyllabusMatches struct {
	Items []SyllabusMatch
	Err   *SyllabusMatchError
}

// Matched builds the success variant.
func Matched(items []SyllabusMatch) SyllabusMatches {
	if items == nil {
		items = []SyllabusMatch{}
	}
	return SyllabusMatches{Items: items}
}

// MatchFailed builds the error variant.
func MatchFailed(msg, raw string) SyllabusMatches {
	return SyllabusMatches{Err: &SyllabusMatchError{Error: msg, Raw: raw}}
}

// Failed reports whether this is the error variant.
func (m SyllabusMatches) Failed() bool { return m.Err != nil }

func (m SyllabusMatches) MarshalJSON() ([]byte, error) {
	if m.Err != nil {
		return json.Marshal(m.Err)
	}
	items := m.Items
	if items == nil {
		items = []SyllabusMatch{}
	}
	return json.Marshal(items)
}

func (m *SyllabusMatches) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty syllabus match document")
	}
	switch trimmed[0] {
	case '[':
		m.Err = nil
		return json.Unmarshal(trimmed, &m.Items)
	case '{':
		m.Items = nil
		m.Err = &SyllabusMatchError{}
		return json.Unmarshal(trimmed, m.Err)
	default:
		return fmt.Errorf("syllabus match document is neither array nor object")
	}
}

// SyllabusMappingResult is the per-lesson-task mapping outcome.
type SyllabusMappingResult struct {
	TaskTitle    string          `json:"task_title"`
	EventSummary string          `json:"event_summary"`
	Matched      SyllabusMatches `json:"matched"`
}

// ClassInfo is the deduplicated session-level summary built from all
// syllabus matches.
type ClassInfo struct {
	Subject            string   `json:"subject"`
	Level              string   `json:"level"`
	KnowledgePoints    []string `json:"knowledgePoints"`
	TeachingObjectives []string `json:"teachingObjectives"`
	Curriculum         string   `json:"curriculum"`
	Confidence         float64  `json:"confidence"`
}
