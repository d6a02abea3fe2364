package stages

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kedge-tech/lessonlens/internal/jsonx"
	"github.com/kedge-tech/lessonlens/internal/llm"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/store"
	"github.com/kedge-tech/lessonlens/internal/validation"
)

//go:embed assets/syllabus_items.json
var defaultSyllabus []byte

// syllabusKeywords pre-filters curriculum items by lesson task title so the
// model only ranks plausibly related objectives.
var syllabusKeywords = []string{"光", "热", "力", "电", "温度", "声音"}

// classInfoConfidence is fixed: the session summary is derived, not
// model-asserted.
const classInfoConfidence = 0.6

// Syllabus maps each lesson task onto curriculum objectives and aggregates
// the matches into a session-level class info document. A reply that cannot
// be parsed is recorded as an error envelope on that task instead of
// failing the stage; the raw text stays visible downstream.
type Syllabus struct {
	store  *store.Store
	client llm.Client
	log    *logger.Logger

	// itemsPath overrides the embedded curriculum when set.
	itemsPath string
}

func NewSyllabus(st *store.Store, client llm.Client, log *logger.Logger, itemsPath string) *Syllabus {
	return &Syllabus{
		store:     st,
		client:    client,
		log:       log.Component("syllabus"),
		itemsPath: itemsPath,
	}
}

func (s *Syllabus) loadItems() ([]models.SyllabusItem, error) {
	data := defaultSyllabus
	if s.itemsPath != "" {
		fileData, err := os.ReadFile(s.itemsPath)
		if err != nil {
			return nil, fmt.Errorf("read syllabus items: %w", err)
		}
		data = fileData
	}
	var items []models.SyllabusItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse syllabus items: %w", err)
	}
	return items, nil
}

func (s *Syllabus) Handle(ctx context.Context, taskID string) error {
	var tasks []models.LessonTask
	if err := s.store.ReadJSON(taskID, FileTaskEvents, &tasks); err != nil {
		return fmt.Errorf("read lesson tasks: %w", err)
	}

	items, err := s.loadItems()
	if err != nil {
		return err
	}

	results := make([]models.SyllabusMappingResult, 0, len(tasks))
	knowledgePoints := orderedSet{}
	teachingObjectives := orderedSet{}
	subject, level := "Unknown", "Unknown"

	for _, task := range tasks {
		selected := filterRelevantItems(task.TaskTitle, items)

		content, err := s.client.Complete(ctx, syllabusSystemPrompt, syllabusPrompt(task, selected), 0.2)
		if err != nil {
			return fmt.Errorf("map task %q: %w", task.TaskTitle, err)
		}

		reply := s.parseReply(strings.TrimSpace(content))
		if reply.subject != "" {
			subject = reply.subject
		}
		if reply.level != "" {
			level = reply.level
		}

		for _, m := range reply.matches.Items {
			// IDs are 1-based into the candidate list shown to the model.
			if m.ID >= 1 && m.ID <= len(selected) {
				knowledgePoints.add(selected[m.ID-1].Topic)
				teachingObjectives.add(selected[m.ID-1].Objective)
			}
		}
		if reply.matches.Failed() {
			s.log.WithTask(taskID).WithField("lesson_task", task.TaskTitle).
				Warn("unparseable syllabus reply recorded as error envelope")
		}

		results = append(results, models.SyllabusMappingResult{
			TaskTitle:    task.TaskTitle,
			EventSummary: task.Summary,
			Matched:      reply.matches,
		})
	}

	if err := s.store.SaveJSON(taskID, FileMappedSyllabus, results); err != nil {
		return err
	}

	return s.store.SaveJSON(taskID, FileClassInfo, models.ClassInfo{
		Subject:            subject,
		Level:              level,
		KnowledgePoints:    knowledgePoints.values(),
		TeachingObjectives: teachingObjectives.values(),
		Curriculum:         "Unknown",
		Confidence:         classInfoConfidence,
	})
}

type syllabusReply struct {
	subject string
	level   string
	matches models.SyllabusMatches
}

// parseReply accepts either the structured {subject, level, matches} shape
// or a bare match array. Anything else becomes the error envelope.
func (s *Syllabus) parseReply(content string) syllabusReply {
	failed := syllabusReply{matches: models.MatchFailed("Failed to parse model response", content)}

	block, ok := jsonx.ExtractLargestBlock(content)
	if !ok {
		return failed
	}

	trimmed := strings.TrimSpace(block)
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Subject string                 `json:"subject"`
			Level   string                 `json:"level"`
			Matches []models.SyllabusMatch `json:"matches"`
		}
		if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
			return failed
		}
		raw, _ := json.Marshal(envelope.Matches)
		if err := validation.Err(validation.SyllabusMatches, raw); err != nil {
			return failed
		}
		return syllabusReply{
			subject: envelope.Subject,
			level:   envelope.Level,
			matches: models.Matched(envelope.Matches),
		}
	}

	if err := validation.Err(validation.SyllabusMatches, []byte(trimmed)); err != nil {
		return failed
	}
	var matches []models.SyllabusMatch
	if err := json.Unmarshal([]byte(trimmed), &matches); err != nil {
		return failed
	}
	return syllabusReply{matches: models.Matched(matches)}
}

func filterRelevantItems(title string, items []models.SyllabusItem) []models.SyllabusItem {
	var hit []string
	for _, k := range syllabusKeywords {
		if strings.Contains(title, k) {
			hit = append(hit, k)
		}
	}
	var selected []models.SyllabusItem
	for _, item := range items {
		for _, k := range hit {
			if strings.Contains(item.Topic, k) {
				selected = append(selected, item)
				break
			}
		}
	}
	return selected
}

func syllabusPrompt(task models.LessonTask, items []models.SyllabusItem) string {
	var list strings.Builder
	for i, item := range items {
		fmt.Fprintf(&list, "%d. %s\n", i+1, item.Objective)
	}
	return fmt.Sprintf("教学任务标题：%s\n总结：%s\n\n以下是候选教学目标：\n%s\n请推断本任务所属的学科和适用年级，并输出最相关的编号（可多选）与理由，格式如下：\n{\n  \"subject\": \"学科\",\n  \"level\": \"年级\",\n  \"matches\": [ { \"id\": 1, \"reason\": \"...\" } ]\n}",
		task.TaskTitle, task.Summary, list.String())
}

const syllabusSystemPrompt = "你是一个教学分析助手，帮助匹配教学任务与教学目标，并推断课程的学科和年级。"

// orderedSet deduplicates while preserving first-seen order, so class info
// output is stable across runs.
type orderedSet struct {
	seen map[string]bool
	keys []string
}

func (o *orderedSet) add(v string) {
	if o.seen == nil {
		o.seen = make(map[string]bool)
	}
	if !o.seen[v] {
		o.seen[v] = true
		o.keys = append(o.keys, v)
	}
}

func (o *orderedSet) values() []string {
	if o.keys == nil {
		return []string{}
	}
	return o.keys
}
