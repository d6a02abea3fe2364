package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kedge-tech/lessonlens/internal/jsonx"
	"github.com/kedge-tech/lessonlens/internal/llm"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/store"
	"github.com/kedge-tech/lessonlens/internal/validation"
)

const icapSystemPrompt = `你是一位 ICAP 模式分析专家，依据提供的课堂片段信息判断其主要的 ICAP 模式。ICAP 模式只能从以下四个中选择：Passive、Active、Constructive、Interactive。请输出严格的 JSON 对象，格式如下：
{
  "ICAP_mode": "Passive|Active|Constructive|Interactive",
  "reasoning": "简要说明理由",
  "confidence": 0.8
}`

// ICAP classifies every event's engagement mode. Events without sentences
// are skipped, and an event that fails all attempts is dropped.
type ICAP struct {
	store      *store.Store
	client     llm.Client
	log        *logger.Logger
	retryWait  time.Duration
	eventDelay time.Duration
}

func NewICAP(st *store.Store, client llm.Client, log *logger.Logger) *ICAP {
	return &ICAP{
		store:      st,
		client:     client,
		log:        log.Component("icap"),
		retryWait:  time.Second,
		eventDelay: 500 * time.Millisecond,
	}
}

func (c *ICAP) Name() string              { return "icap-analysis" }
func (c *ICAP) DependsOn() []models.Stage { return []models.Stage{models.StageSegment} }
func (c *ICAP) Outputs() []string         { return []string{FileICAPModes} }

func (c *ICAP) Analyze(ctx context.Context, taskID string) error {
	var tasks []models.LessonTask
	if err := c.store.ReadJSON(taskID, FileTaskEvents, &tasks); err != nil {
		return fmt.Errorf("read lesson tasks: %w", err)
	}

	results := []models.ICAPResult{}
	for _, task := range tasks {
		for _, event := range task.Events {
			if res, ok := c.analyzeEvent(ctx, taskID, event); ok {
				results = append(results, res)
			}
			if err := sleepCtx(ctx, c.eventDelay); err != nil {
				return err
			}
		}
	}

	return c.store.SaveJSON(taskID, FileICAPModes, results)
}

func (c *ICAP) analyzeEvent(ctx context.Context, taskID string, event models.Event) (models.ICAPResult, bool) {
	start, end, ok := event.Span()
	if !ok {
		return models.ICAPResult{}, false
	}

	prompt := classificationPrompt(event, "请根据以上信息判断该片段的 ICAP 模式，并按照要求输出 JSON。")

	res, err := pipeline.Retry(ctx, 3, c.retryWait, func() (models.ICAPResult, error) {
		content, err := c.client.Complete(ctx, icapSystemPrompt, prompt, 0)
		if err != nil {
			return models.ICAPResult{}, err
		}
		block, ok := jsonx.ExtractLargestBlock(content)
		if !ok {
			return models.ICAPResult{}, fmt.Errorf("no JSON in model response")
		}
		if err := validation.Err(validation.ICAPResult, []byte(block)); err != nil {
			return models.ICAPResult{}, err
		}
		var parsed models.ICAPResult
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			return models.ICAPResult{}, err
		}
		parsed.Start = start
		parsed.End = end
		parsed.Text = event.Excerpt()
		return parsed, nil
	})
	if err != nil {
		c.log.WithTask(taskID).WithError(err).Error("icap event analysis dropped")
		return models.ICAPResult{}, false
	}
	return res, true
}
