package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/store"
)

type fakeItem struct {
	name    string
	deps    []models.Stage
	outputs []string
	err     error
	ran     int
}

func (f *fakeItem) Name() string              { return f.name }
func (f *fakeItem) DependsOn() []models.Stage { return f.deps }
func (f *fakeItem) Outputs() []string         { return f.outputs }
func (f *fakeItem) Analyze(context.Context, string) error {
	f.ran++
	return f.err
}

func segmentRegistry() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	reg.Register(pipeline.Spec{
		Name:    models.StageSegment,
		Outputs: []string{FileTaskEvents},
		Handler: pipeline.HandlerFunc(func(context.Context, string) error { return nil }),
	})
	return reg
}

func writeTaskEvents(t *testing.T, st *store.Store, taskID string) {
	t.Helper()
	require.NoError(t, st.SaveJSON(taskID, FileTaskEvents, soundLessonTasks()))
}

func TestDeepAnalyzeRunsAllByDefault(t *testing.T) {
	st := newTestStore(t)
	writeTaskEvents(t, st, "t1")

	a := &fakeItem{name: "a", deps: []models.Stage{models.StageSegment}}
	b := &fakeItem{name: "b", deps: []models.Stage{models.StageSegment}}

	d := NewDeepAnalyze(st, segmentRegistry(), logger.Discard(), []Item{a, b})
	require.NoError(t, d.Handle(context.Background(), "t1"))

	assert.Equal(t, 1, a.ran)
	assert.Equal(t, 1, b.ran)
}

func TestDeepAnalyzeHonorsAllowList(t *testing.T) {
	st := newTestStore(t)
	writeTaskEvents(t, st, "t1")
	require.NoError(t, st.SaveJSON("t1", FileTaskConfig, map[string]any{
		"deepAnalyze": []string{"b"},
	}))

	a := &fakeItem{name: "a", deps: []models.Stage{models.StageSegment}}
	b := &fakeItem{name: "b", deps: []models.Stage{models.StageSegment}}

	d := NewDeepAnalyze(st, segmentRegistry(), logger.Discard(), []Item{a, b})
	require.NoError(t, d.Handle(context.Background(), "t1"))

	assert.Equal(t, 0, a.ran)
	assert.Equal(t, 1, b.ran)
}

func TestDeepAnalyzeEmptyAllowListRunsNothing(t *testing.T) {
	st := newTestStore(t)
	writeTaskEvents(t, st, "t1")
	require.NoError(t, st.SaveJSON("t1", FileTaskConfig, map[string]any{
		"deepAnalyze": []string{},
	}))

	a := &fakeItem{name: "a", deps: []models.Stage{models.StageSegment}}

	d := NewDeepAnalyze(st, segmentRegistry(), logger.Discard(), []Item{a})
	require.NoError(t, d.Handle(context.Background(), "t1"))
	assert.Equal(t, 0, a.ran)
}

func TestDeepAnalyzeSkipsOnMissingPrerequisite(t *testing.T) {
	st := newTestStore(t)
	// FileTaskEvents deliberately not written.

	a := &fakeItem{name: "a", deps: []models.Stage{models.StageSegment}}

	d := NewDeepAnalyze(st, segmentRegistry(), logger.Discard(), []Item{a})
	require.NoError(t, d.Handle(context.Background(), "t1"))
	assert.Equal(t, 0, a.ran)
}

func TestDeepAnalyzeIsolatesItemFailures(t *testing.T) {
	st := newTestStore(t)
	writeTaskEvents(t, st, "t1")

	broken := &fakeItem{name: "broken", deps: []models.Stage{models.StageSegment},
		err: errors.New("model meltdown")}
	healthy := &fakeItem{name: "healthy", deps: []models.Stage{models.StageSegment}}

	d := NewDeepAnalyze(st, segmentRegistry(), logger.Discard(), []Item{broken, healthy})
	require.NoError(t, d.Handle(context.Background(), "t1"))

	assert.Equal(t, 1, broken.ran)
	assert.Equal(t, 1, healthy.ran)

	logContent, err := st.ReadText("t1", "task.log")
	require.NoError(t, err)
	assert.Contains(t, logContent, "broken")
	assert.Contains(t, logContent, "model meltdown")
}

func TestEchoCountsTasks(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveJSON("t1", FileTaskEvents, []models.LessonTask{
		{TaskTitle: "一"}, {TaskTitle: "二"},
	}))

	e := NewEcho(st)
	require.NoError(t, e.Analyze(context.Background(), "t1"))

	var out map[string]int
	require.NoError(t, st.ReadJSON("t1", FileEcho, &out))
	assert.Equal(t, 2, out["tasksCount"])
}
