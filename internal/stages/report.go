package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/store"
)

// Report renders the lesson structure, syllabus matches, and every
// available deep-analysis output into one markdown document.
type Report struct {
	store *store.Store
	items []Item
}

func NewReport(st *store.Store, items []Item) *Report {
	return &Report{store: st, items: items}
}

func (r *Report) Handle(_ context.Context, taskID string) error {
	var tasks []models.LessonTask
	if err := r.store.ReadJSON(taskID, FileTaskEvents, &tasks); err != nil {
		return fmt.Errorf("read lesson tasks: %w", err)
	}

	var b strings.Builder
	b.WriteString("# 课堂结构报告\n\n")

	r.renderSyllabus(taskID, &b)

	for ti, task := range tasks {
		fmt.Fprintf(&b, "## 教学任务 %d：%s\n\n", ti+1, task.TaskTitle)
		for ei, event := range task.Events {
			fmt.Fprintf(&b, "### 教学环节 %d：%s\n", ei+1, event.EventType)
			fmt.Fprintf(&b, "**环节概述：** %s\n\n", event.Summary)
			for _, s := range event.Sentences {
				fmt.Fprintf(&b, "- [%vs - %vs] **%s**：%s\n", s.Start, s.End, s.Speaker(), s.Text)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	r.renderDeepAnalysis(taskID, &b)

	return r.store.SaveFile(taskID, FileReport, []byte(b.String()))
}

// renderSyllabus adds the curriculum-match section when syllabus mapping
// ran. A per-task parse failure is surfaced verbatim rather than hidden.
func (r *Report) renderSyllabus(taskID string, b *strings.Builder) {
	var results []models.SyllabusMappingResult
	if !r.store.ReadJSONSafe(taskID, FileMappedSyllabus, &results) || len(results) == 0 {
		return
	}

	b.WriteString("## 教学目标匹配\n\n")
	for _, res := range results {
		fmt.Fprintf(b, "**%s**\n\n", res.TaskTitle)
		if res.Matched.Failed() {
			fmt.Fprintf(b, "- 匹配失败：%s\n", res.Matched.Err.Error)
		} else if len(res.Matched.Items) == 0 {
			b.WriteString("- 未匹配到教学目标\n")
		} else {
			for _, m := range res.Matched.Items {
				fmt.Fprintf(b, "- 目标 %d：%s\n", m.ID, m.Reason)
			}
		}
		b.WriteString("\n")
	}
}

// renderDeepAnalysis embeds each item's first output file as a fenced JSON
// block. Items that never ran (or were skipped) contribute nothing.
func (r *Report) renderDeepAnalysis(taskID string, b *strings.Builder) {
	var sections []string
	for _, item := range r.items {
		outputs := item.Outputs()
		if len(outputs) == 0 {
			continue
		}
		content, ok := r.store.ReadTextSafe(taskID, outputs[0])
		if !ok {
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n```json\n%s\n```\n", item.Name(), content))
	}
	if len(sections) == 0 {
		return
	}
	b.WriteString("# 深度分析\n\n")
	for _, s := range sections {
		b.WriteString(s)
		b.WriteString("\n")
	}
}
