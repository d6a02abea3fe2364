package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kedge-tech/lessonlens/internal/jsonx"
	"github.com/kedge-tech/lessonlens/internal/llm"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/store"
	"github.com/kedge-tech/lessonlens/internal/validation"
)

// Segment organizes the cleaned transcript into lesson tasks and events.
// The transcript is processed in overlapping windows so task boundaries
// near a window edge still see their surrounding context. Unlike
// preprocessing, a window that fails all attempts fails the whole stage:
// a hole in the middle of the lesson structure is not a usable result.
type Segment struct {
	store      *store.Store
	client     llm.Client
	log        *logger.Logger
	chunkSize  int
	overlap    int
	retryWait  time.Duration
	chunkDelay time.Duration
}

func NewSegment(st *store.Store, client llm.Client, log *logger.Logger, chunkSize, overlap int) *Segment {
	return &Segment{
		store:      st,
		client:     client,
		log:        log.Component("segment"),
		chunkSize:  chunkSize,
		overlap:    overlap,
		retryWait:  time.Second,
		chunkDelay: time.Second,
	}
}

// window returns the sentence range [lo, hi) for chunk index i. Every
// window except the first reaches back by the overlap.
func (s *Segment) window(i, total int) (lo, hi int) {
	lo = i*s.chunkSize - s.overlap
	if lo < 0 {
		lo = 0
	}
	hi = (i + 1) * s.chunkSize
	if hi > total {
		hi = total
	}
	return lo, hi
}

func (s *Segment) Handle(ctx context.Context, taskID string) error {
	var sentences []models.Sentence
	if err := s.store.ReadJSON(taskID, FileCleanedTranscript, &sentences); err != nil {
		return fmt.Errorf("read cleaned transcript: %w", err)
	}

	chunks := (len(sentences) + s.chunkSize - 1) / s.chunkSize
	var all []models.LessonTask

	for i := 0; i < chunks; i++ {
		n := i + 1
		lo, hi := s.window(i, len(sentences))
		s.log.WithTask(taskID).WithField("chunk", n).
			Infof("analyzing sentences %d..%d", lo, hi)

		userPrompt, err := segmentUserPrompt(sentences[lo:hi])
		if err != nil {
			return err
		}

		tasks, err := pipeline.Retry(ctx, 3, s.retryWait, func() ([]models.LessonTask, error) {
			return s.analyzeChunk(ctx, taskID, n, userPrompt)
		})
		if err != nil {
			return fmt.Errorf("chunk %d: %w", n, err)
		}

		if err := s.store.SaveJSON(taskID, ChunkFile(n), tasks); err != nil {
			return err
		}
		all = append(all, tasks...)

		if n < chunks {
			select {
			case <-time.After(s.chunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if all == nil {
		all = []models.LessonTask{}
	}
	return s.store.SaveJSON(taskID, FileTaskEvents, all)
}

func (s *Segment) analyzeChunk(ctx context.Context, taskID string, n int, userPrompt string) ([]models.LessonTask, error) {
	content, err := s.client.Complete(ctx, segmentSystemPrompt, userPrompt, 0)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty model response")
	}

	if err := s.store.SaveFile(taskID, ChunkRawFile(n), []byte(content)); err != nil {
		return nil, err
	}

	block, ok := jsonx.ExtractLargestBlock(content)
	if !ok {
		return nil, fmt.Errorf("no JSON found in model response")
	}
	if err := validation.Err(validation.LessonTasks, []byte(block)); err != nil {
		return nil, err
	}

	var tasks []models.LessonTask
	if err := json.Unmarshal([]byte(block), &tasks); err != nil {
		return nil, fmt.Errorf("parse lesson tasks: %w", err)
	}
	return tasks, nil
}

func segmentUserPrompt(chunk []models.Sentence) (string, error) {
	body, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sentence window: %w", err)
	}
	return fmt.Sprintf("以下是课堂的 sentences 列表（JSON array）：\n\n```json\n%s\n```\n\n请根据上述规则组织成 3 层结构的 JSON，严格遵循格式要求。", body), nil
}

const segmentSystemPrompt = `你是一个教学内容分析助手，负责将课堂转录文本组织成三层结构的 JSON 数据，层次如下：

1️⃣ 第一层是 Task（教学任务），通常一节课有 3~5 个任务，代表教学内容的自然模块。
2️⃣ 每个 Task 下，细分为多个 Event，代表教学环节，比如“教师讲解”、“学生提问回答”、“转场过渡”、“课堂讨论”、“实验观察”等。
3️⃣ 每个 Event 下是若干句子（含时间、角色判断），表示具体语音内容。

如果发现当前段落内容是前一个 Task / Event 的延续，可以继续生成对应 Task / Event，不要强行新建 Task / Event。

最终输出格式为严格的 JSON，示例如下：

[
  {
    "task_title": "Task 的标题（自动归纳）",
    "events": [
      {
        "event_type": "事件类型（如教师讲解、互动提问、转场过渡等）",
        "summary": "这段教学活动的大意简要概述",
        "sentences": [
          { "start": 0.0, "end": 4.0, "text": "...", "speaker_probabilities": {"teacher": 1.0, "student": 0.0} },
          ...
        ]
      }
    ]
  }
]

注意事项：
- Task 与 Event 的划分请根据内容语义自动判断，不能按固定长度或固定时间切段。
- Event 类型尽量明确具体，不要用“未知”或“其他”。
- 保留每句的时间戳和说话人角色推断。
- 最终只输出符合上述格式的 JSON，不要添加解释或注释。`
