package stages

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedge-tech/lessonlens/internal/llm"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return st
}

func sentenceJSON(text string) string {
	return fmt.Sprintf(`[{"start": 0.0, "end": 2.0, "text": %q,
		"speaker_probabilities": {"teacher": 1.0, "student": 0.0}}]`, text)
}

func TestSplitSegments(t *testing.T) {
	raw := "0.0s - 4.0s: 第一句\n多行续写\n4.0s - 8.0s: 第二句\n8.5s - 9.0s: 第三句"
	segments := splitSegments(raw)
	require.Len(t, segments, 3)
	assert.Equal(t, "0.0s - 4.0s: 第一句\n多行续写", segments[0])
	assert.Equal(t, "4.0s - 8.0s: 第二句", segments[1])

	// Leading lines without a timestamp stay with the first segment.
	segments = splitSegments("开场白\n0.0s - 4.0s: 正文")
	require.Len(t, segments, 1)
	assert.Equal(t, "开场白\n0.0s - 4.0s: 正文", segments[0])
}

func TestPreprocessCleansInBatches(t *testing.T) {
	st := newTestStore(t)
	stub := &llm.StubClient{Respond: func(call llm.Call) (string, error) {
		return "```json\n" + sentenceJSON("修正后") + "\n```", nil
	}}

	p := NewPreprocess(st, stub, logger.Discard(), 2)
	p.retryWait, p.batchDelay = 0, 0

	require.NoError(t, st.SaveFile("t1", FileInput,
		[]byte("0.0s - 2.0s: 一\n2.0s - 4.0s: 二\n4.0s - 6.0s: 三")))
	require.NoError(t, p.Handle(context.Background(), "t1"))

	// 3 segments at batch size 2 = 2 batches = 2 completions.
	assert.Len(t, stub.Calls(), 2)
	assert.True(t, st.Exists("t1", BatchFile(1)))
	assert.True(t, st.Exists("t1", BatchRawFile(1)))
	assert.True(t, st.Exists("t1", BatchFile(2)))

	var merged []models.Sentence
	require.NoError(t, st.ReadJSON("t1", FileCleanedTranscript, &merged))
	require.Len(t, merged, 2)
	assert.Equal(t, "修正后", merged[0].Text)
}

func TestPreprocessReusesExistingBatch(t *testing.T) {
	st := newTestStore(t)
	stub := &llm.StubClient{Respond: func(call llm.Call) (string, error) {
		return sentenceJSON("新批次"), nil
	}}

	p := NewPreprocess(st, stub, logger.Discard(), 1)
	p.retryWait, p.batchDelay = 0, 0

	cached := []models.Sentence{{Start: 0, End: 2, Text: "缓存批次",
		SpeakerProbabilities: models.SpeakerProbabilities{Teacher: 1}}}
	require.NoError(t, st.SaveJSON("t1", BatchFile(1), cached))
	require.NoError(t, st.SaveFile("t1", FileInput,
		[]byte("0.0s - 2.0s: 一\n2.0s - 4.0s: 二")))

	require.NoError(t, p.Handle(context.Background(), "t1"))

	// Batch 1 came from disk; only batch 2 hit the model.
	assert.Len(t, stub.Calls(), 1)

	var merged []models.Sentence
	require.NoError(t, st.ReadJSON("t1", FileCleanedTranscript, &merged))
	require.Len(t, merged, 2)
	assert.Equal(t, "缓存批次", merged[0].Text)
	assert.Equal(t, "新批次", merged[1].Text)
}

func TestPreprocessDropsExhaustedBatch(t *testing.T) {
	st := newTestStore(t)
	stub := &llm.StubClient{Respond: func(call llm.Call) (string, error) {
		if strings.Contains(call.User, "坏批次") {
			return "这不是 JSON", nil
		}
		return sentenceJSON("好批次"), nil
	}}

	p := NewPreprocess(st, stub, logger.Discard(), 1)
	p.retryWait, p.batchDelay = 0, 0

	require.NoError(t, st.SaveFile("t1", FileInput,
		[]byte("0.0s - 2.0s: 坏批次\n2.0s - 4.0s: 好批次")))
	require.NoError(t, p.Handle(context.Background(), "t1"))

	// 3 failed attempts for batch 1, one success for batch 2.
	assert.Len(t, stub.Calls(), 4)
	assert.False(t, st.Exists("t1", BatchFile(1)))

	var merged []models.Sentence
	require.NoError(t, st.ReadJSON("t1", FileCleanedTranscript, &merged))
	require.Len(t, merged, 1)
	assert.Equal(t, "好批次", merged[0].Text)
}

func TestPreprocessRejectsInvalidSentenceShape(t *testing.T) {
	st := newTestStore(t)
	stub := &llm.StubClient{
		// Missing speaker_probabilities, schema must reject every attempt.
		Responses: []string{`[{"start": 0, "end": 2, "text": "缺字段"}]`},
	}

	p := NewPreprocess(st, stub, logger.Discard(), 10)
	p.retryWait, p.batchDelay = 0, 0

	require.NoError(t, st.SaveFile("t1", FileInput, []byte("0.0s - 2.0s: 一")))
	require.NoError(t, p.Handle(context.Background(), "t1"))

	assert.Len(t, stub.Calls(), 3)

	var merged []models.Sentence
	require.NoError(t, st.ReadJSON("t1", FileCleanedTranscript, &merged))
	assert.Empty(t, merged)
}

func TestPreprocessRequiresInput(t *testing.T) {
	st := newTestStore(t)
	p := NewPreprocess(st, &llm.StubClient{}, logger.Discard(), 10)
	assert.Error(t, p.Handle(context.Background(), "t1"))
}

func TestPreprocessPromptContainsBatchText(t *testing.T) {
	prompt := preprocessPrompt("0.0s - 2.0s: 声音由振动产生")
	assert.Contains(t, prompt, "0.0s - 2.0s: 声音由振动产生")
	assert.NotContains(t, prompt, "<<<TRANSCRIPT>>>")
}
