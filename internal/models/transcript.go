// Package models defines the documents that flow between pipeline stages.
package models

// SpeakerProbabilities is the per-sentence teacher/student attribution
// produced by transcript preprocessing. The two values sum to ~1.
type SpeakerProbabilities struct {
	Teacher float64 `json:"teacher"`
	Student float64 `json:"student"`
}

// Sentence is one time-stamped utterance of the cleaned transcript.
type Sentence struct {
	Start                float64              `json:"start"`
	End                  float64              `json:"end"`
	Text                 string               `json:"text"`
	SpeakerProbabilities SpeakerProbabilities `json:"speaker_probabilities"`
}

// Speaker labels used in prompts and rendered reports.
const (
	SpeakerTeacher = "教师"
	SpeakerStudent = "学生"
)

// Speaker returns the inferred speaker role. Ties go to the teacher.
func (s Sentence) Speaker() string {
	if s.SpeakerProbabilities.Teacher >= s.SpeakerProbabilities.Student {
		return SpeakerTeacher
	}
	return SpeakerStudent
}
