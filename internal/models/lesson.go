package models

// Event is one teaching activity (explanation, Q&A, transition, ...) inside
// a lesson task. Sentences are time-ordered; the event spans from the first
// sentence's start to the last sentence's end.
type Event struct {
	EventType string     `json:"event_type"`
	Summary   string     `json:"summary"`
	Sentences []Sentence `json:"sentences"`
}

// Span returns the event's [start, end] in seconds. ok is false when the
// event has no sentences and therefore no defined timing.
func (e Event) Span() (start, end float64, ok bool) {
	if len(e.Sentences) == 0 {
		return 0, 0, false
	}
	return e.Sentences[0].Start, e.Sentences[len(e.Sentences)-1].End, true
}

// Excerpt returns the event summary, falling back to the concatenated
// sentence text when no summary was produced.
func (e Event) Excerpt() string {
	if e.Summary != "" {
		return e.Summary
	}
	text := ""
	for i, s := range e.Sentences {
		if i > 0 {
			text += " "
		}
		text += s.Text
	}
	return text
}

// LessonTask is a segmented pedagogical unit of the session. Distinct from a
// pipeline task (a submission); a session usually has 3-5 of these.
type LessonTask struct {
	TaskTitle string  `json:"task_title"`
	Summary   string  `json:"summary,omitempty"`
	Events    []Event `json:"events"`
}
