package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kedge-tech/lessonlens/internal/jsonx"
	"github.com/kedge-tech/lessonlens/internal/llm"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/store"
	"github.com/kedge-tech/lessonlens/internal/validation"
)

const bloomEventSystemPrompt = `你是一位教育分析专家，依据提供的课堂片段信息，判断其主要针对的 Bloom 认知层次。只能从以下六个层次中选择：Remember、Understand、Apply、Analyze、Evaluate、Create。请严格按照以下 JSON 格式回复：
{
  "bloom_level": "Remember|Understand|Apply|Analyze|Evaluate|Create",
  "reasoning": "简要说明理由",
  "confidence": 0.8
}`

const bloomTaskSystemPrompt = `你是一位教育分析专家，请基于事件级 Bloom 分析结果，总结该教学任务在认知层次上的特点，并指出主要层次。`

const bloomOverallSystemPrompt = `你是一位教育分析专家，请基于多个教学任务的 Bloom 分析总结整堂课的认知层次分布，并给出主要层次。`

// Bloom classifies every event against Bloom's taxonomy, then rolls the
// results up per lesson task and for the whole session. An event or summary
// that fails all attempts is dropped; the analysis is best-effort by
// construction.
type Bloom struct {
	store      *store.Store
	client     llm.Client
	log        *logger.Logger
	retryWait  time.Duration
	eventDelay time.Duration
}

func NewBloom(st *store.Store, client llm.Client, log *logger.Logger) *Bloom {
	return &Bloom{
		store:      st,
		client:     client,
		log:        log.Component("bloom"),
		retryWait:  time.Second,
		eventDelay: 500 * time.Millisecond,
	}
}

func (b *Bloom) Name() string              { return "bloom-taxonomy" }
func (b *Bloom) DependsOn() []models.Stage { return []models.Stage{models.StageSegment} }
func (b *Bloom) Outputs() []string         { return []string{FileBloomTaxonomy} }

func (b *Bloom) Analyze(ctx context.Context, taskID string) error {
	var tasks []models.LessonTask
	if err := b.store.ReadJSON(taskID, FileTaskEvents, &tasks); err != nil {
		return fmt.Errorf("read lesson tasks: %w", err)
	}

	eventResults := []models.BloomEventResult{}
	taskSummaries := []models.BloomTaskSummary{}

	for _, task := range tasks {
		var ofTask []models.BloomEventResult
		for _, event := range task.Events {
			res, ok := b.analyzeEvent(ctx, taskID, event)
			if ok {
				ofTask = append(ofTask, res)
				eventResults = append(eventResults, res)
			}
			if err := sleepCtx(ctx, b.eventDelay); err != nil {
				return err
			}
		}

		if summary, ok := b.summarizeTask(ctx, taskID, task.TaskTitle, ofTask); ok {
			taskSummaries = append(taskSummaries, summary)
		}
		if err := sleepCtx(ctx, b.eventDelay); err != nil {
			return err
		}
	}

	overall := b.summarizeOverall(ctx, taskID, taskSummaries)

	return b.store.SaveJSON(taskID, FileBloomTaxonomy, models.BloomAnalysis{
		EventResults:  eventResults,
		TaskSummaries: taskSummaries,
		Overall:       overall,
	})
}

func (b *Bloom) analyzeEvent(ctx context.Context, taskID string, event models.Event) (models.BloomEventResult, bool) {
	start, end, ok := event.Span()
	if !ok {
		return models.BloomEventResult{}, false
	}

	prompt := classificationPrompt(event, "请根据以上信息判断该片段的 Bloom 认知层次，并按照要求输出 JSON。")

	res, err := pipeline.Retry(ctx, 3, b.retryWait, func() (models.BloomEventResult, error) {
		content, err := b.client.Complete(ctx, bloomEventSystemPrompt, prompt, 0)
		if err != nil {
			return models.BloomEventResult{}, err
		}
		block, ok := jsonx.ExtractLargestBlock(content)
		if !ok {
			return models.BloomEventResult{}, fmt.Errorf("no JSON in model response")
		}
		if err := validation.Err(validation.BloomEvent, []byte(block)); err != nil {
			return models.BloomEventResult{}, err
		}
		var parsed models.BloomEventResult
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			return models.BloomEventResult{}, err
		}
		parsed.Start = start
		parsed.End = end
		parsed.Text = event.Excerpt()
		return parsed, nil
	})
	if err != nil {
		b.log.WithTask(taskID).WithError(err).Error("bloom event analysis dropped")
		return models.BloomEventResult{}, false
	}
	return res, true
}

func (b *Bloom) summarizeTask(ctx context.Context, taskID, title string, events []models.BloomEventResult) (models.BloomTaskSummary, bool) {
	if len(events) == 0 {
		return models.BloomTaskSummary{}, false
	}
	body, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return models.BloomTaskSummary{}, false
	}
	prompt := fmt.Sprintf("教学任务标题：%s\n事件 Bloom 分析结果：\n%s\n请总结该任务的主要认知层次特点并输出 JSON：\n{\n  \"task_title\": \"\",\n  \"summary\": \"\",\n  \"predominant_level\": \"Remember|Understand|Apply|Analyze|Evaluate|Create\"\n}", title, body)

	summary, err := pipeline.Retry(ctx, 3, b.retryWait, func() (models.BloomTaskSummary, error) {
		return completeBloomJSON[models.BloomTaskSummary](ctx, b.client, bloomTaskSystemPrompt, prompt, validation.BloomTaskSummary)
	})
	if err != nil {
		b.log.WithTask(taskID).WithError(err).Error("bloom task summary dropped")
		return models.BloomTaskSummary{}, false
	}
	return summary, true
}

func (b *Bloom) summarizeOverall(ctx context.Context, taskID string, tasks []models.BloomTaskSummary) *models.BloomOverallSummary {
	if len(tasks) == 0 {
		return nil
	}
	body, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil
	}
	prompt := fmt.Sprintf("以下是各教学任务的 Bloom 总结：\n%s\n请给出整堂课在 Bloom 认知维度上的整体评估，输出 JSON：\n{\n  \"overall_summary\": \"\",\n  \"predominant_level\": \"Remember|Understand|Apply|Analyze|Evaluate|Create\"\n}", body)

	overall, err := pipeline.Retry(ctx, 3, b.retryWait, func() (models.BloomOverallSummary, error) {
		return completeBloomJSON[models.BloomOverallSummary](ctx, b.client, bloomOverallSystemPrompt, prompt, validation.BloomOverall)
	})
	if err != nil {
		b.log.WithTask(taskID).WithError(err).Error("bloom overall summary dropped")
		return nil
	}
	return &overall
}

// completeBloomJSON runs one completion and decodes its JSON reply after
// schema validation.
func completeBloomJSON[T any](ctx context.Context, client llm.Client, system, user string, schema *jsonschema.Schema) (T, error) {
	var zero T
	content, err := client.Complete(ctx, system, user, 0)
	if err != nil {
		return zero, err
	}
	block, ok := jsonx.ExtractLargestBlock(content)
	if !ok {
		return zero, fmt.Errorf("no JSON in model response")
	}
	if err := validation.Err(schema, []byte(block)); err != nil {
		return zero, err
	}
	var parsed T
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return zero, err
	}
	return parsed, nil
}

// classificationPrompt renders an event the way the classification items
// present it: type, summary, then speaker-attributed sentence lines.
func classificationPrompt(event models.Event, instruction string) string {
	var lines []string
	for _, s := range event.Sentences {
		lines = append(lines, fmt.Sprintf("[%v-%v] %s: %s", s.Start, s.End, s.Speaker(), s.Text))
	}
	return fmt.Sprintf("事件类型：%s\n事件摘要：%s\n片段内容：\n%s\n%s",
		event.EventType, event.Summary, strings.Join(lines, "\n"), instruction)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
