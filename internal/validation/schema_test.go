package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptSchema(t *testing.T) {
	valid := `[
		{"start": 0.0, "end": 4.0, "text": "同学们好",
		 "speaker_probabilities": {"teacher": 1.0, "student": 0.0}}
	]`
	assert.Nil(t, CheckBytes(Transcript, []byte(valid)))

	missingProbs := `[{"start": 0, "end": 1, "text": "hi"}]`
	assert.NotEmpty(t, CheckBytes(Transcript, []byte(missingProbs)))

	notArray := `{"start": 0}`
	assert.NotEmpty(t, CheckBytes(Transcript, []byte(notArray)))
}

func TestLessonTasksSchema(t *testing.T) {
	valid := `[
		{"task_title": "声音的产生", "events": [
			{"event_type": "教师讲解", "summary": "介绍振动",
			 "sentences": [
				{"start": 0, "end": 3, "text": "声音由振动产生",
				 "speaker_probabilities": {"teacher": 0.9, "student": 0.1}}
			]}
		]}
	]`
	assert.Nil(t, CheckBytes(LessonTasks, []byte(valid)))

	missingTitle := `[{"events": []}]`
	assert.NotEmpty(t, CheckBytes(LessonTasks, []byte(missingTitle)))
}

func TestBloomEventSchema(t *testing.T) {
	valid := `{"bloom_level": "Apply", "reasoning": "学生动手操作", "confidence": 0.8}`
	assert.Nil(t, CheckBytes(BloomEvent, []byte(valid)))

	badLevel := `{"bloom_level": "Transcend", "reasoning": "x", "confidence": 0.5}`
	errs := CheckBytes(BloomEvent, []byte(badLevel))
	require.NotEmpty(t, errs)

	badConfidence := `{"bloom_level": "Apply", "reasoning": "x", "confidence": 1.5}`
	assert.NotEmpty(t, CheckBytes(BloomEvent, []byte(badConfidence)))
}

func TestICAPResultSchema(t *testing.T) {
	valid := `{"ICAP_mode": "Interactive", "reasoning": "师生互相回应", "confidence": 0.7}`
	assert.Nil(t, CheckBytes(ICAPResult, []byte(valid)))

	assert.NotEmpty(t, CheckBytes(ICAPResult, []byte(`{"ICAP_mode": "Osmotic", "reasoning": "x", "confidence": 0.5}`)))
}

func TestSyllabusMatchesSchema(t *testing.T) {
	assert.Nil(t, CheckBytes(SyllabusMatches, []byte(`[{"id": 1, "reason": "相关"}]`)))
	assert.Nil(t, CheckBytes(SyllabusMatches, []byte(`[]`)))
	assert.NotEmpty(t, CheckBytes(SyllabusMatches, []byte(`[{"id": 0, "reason": "相关"}]`)))
	assert.NotEmpty(t, CheckBytes(SyllabusMatches, []byte(`[{"reason": "相关"}]`)))
}

func TestErrWrapper(t *testing.T) {
	assert.NoError(t, Err(BloomOverall, []byte(`{"overall_summary": "s", "predominant_level": "Create"}`)))
	assert.Error(t, Err(BloomOverall, []byte(`{}`)))
	assert.Error(t, Err(BloomOverall, []byte(`not json`)))
}
