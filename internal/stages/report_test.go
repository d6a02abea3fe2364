package stages

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kedge-tech/lessonlens/internal/models"
)

// headings parses markdown and returns (level, text) for every heading.
func headings(t *testing.T, source []byte) [][2]any {
	t.Helper()
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var out [][2]any
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			var buf bytes.Buffer
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if txt, ok := c.(*ast.Text); ok {
					buf.Write(txt.Value(source))
				}
			}
			out = append(out, [2]any{h.Level, buf.String()})
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	return out
}

func TestReportStructure(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveJSON("t1", FileTaskEvents, analysisLessonTasks()))
	require.NoError(t, st.SaveJSON("t1", FileMappedSyllabus, []models.SyllabusMappingResult{
		{
			TaskTitle:    "声音的产生",
			EventSummary: "通过实验理解振动发声",
			Matched:      models.Matched([]models.SyllabusMatch{{ID: 1, Reason: "直接相关"}}),
		},
	}))

	bloom := &fakeItem{name: "bloom-taxonomy", outputs: []string{FileBloomTaxonomy}}
	echo := &fakeItem{name: "echo", outputs: []string{FileEcho}}
	require.NoError(t, st.SaveFile("t1", FileBloomTaxonomy, []byte(`{"eventResults": []}`)))
	// echo.json absent: its section must not appear.

	r := NewReport(st, []Item{bloom, echo})
	require.NoError(t, r.Handle(context.Background(), "t1"))

	report, err := st.ReadText("t1", FileReport)
	require.NoError(t, err)

	hs := headings(t, []byte(report))
	assert.Contains(t, hs, [2]any{1, "课堂结构报告"})
	assert.Contains(t, hs, [2]any{2, "教学目标匹配"})
	assert.Contains(t, hs, [2]any{2, "教学任务 1：声音的产生"})
	assert.Contains(t, hs, [2]any{3, "教学环节 1：教师讲解"})
	assert.Contains(t, hs, [2]any{1, "深度分析"})
	assert.Contains(t, hs, [2]any{2, "bloom-taxonomy"})
	assert.NotContains(t, hs, [2]any{2, "echo"})

	assert.Contains(t, report, "- [0s - 3s] **教师**：声音由振动产生")
	assert.Contains(t, report, "- [3s - 6s] **学生**：我觉得是空气在动")
	assert.Contains(t, report, "```json")
	assert.Contains(t, report, "目标 1：直接相关")
}

func TestReportWithoutOptionalSections(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveJSON("t1", FileTaskEvents, analysisLessonTasks()))

	r := NewReport(st, nil)
	require.NoError(t, r.Handle(context.Background(), "t1"))

	report, err := st.ReadText("t1", FileReport)
	require.NoError(t, err)

	assert.NotContains(t, report, "教学目标匹配")
	assert.NotContains(t, report, "深度分析")
	assert.Contains(t, report, "# 课堂结构报告")
}

func TestReportSurfacesMatchFailure(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveJSON("t1", FileTaskEvents, analysisLessonTasks()))
	require.NoError(t, st.SaveJSON("t1", FileMappedSyllabus, []models.SyllabusMappingResult{
		{
			TaskTitle: "声音的产生",
			Matched:   models.MatchFailed("Failed to parse model response", "抱歉"),
		},
	}))

	r := NewReport(st, nil)
	require.NoError(t, r.Handle(context.Background(), "t1"))

	report, err := st.ReadText("t1", FileReport)
	require.NoError(t, err)
	assert.Contains(t, report, "匹配失败：Failed to parse model response")
}

func TestReportRequiresLessonTasks(t *testing.T) {
	st := newTestStore(t)
	r := NewReport(st, nil)
	assert.Error(t, r.Handle(context.Background(), "t1"))
}
