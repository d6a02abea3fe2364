package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
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

// segmentStart matches the head of a raw transcript line: "12.3s - 15.0s:".
var segmentStart = regexp.MustCompile(`^\d+\.\ds\s*-\s*\d+\.\ds:`)

// Preprocess cleans the raw timestamped transcript into structured
// sentences with speaker attribution, batch by batch. A batch whose parsed
// output file already exists is reused, so an interrupted run resumes
// without repeating finished LLM calls. A batch that still fails after all
// attempts is dropped; the remaining batches carry the stage.
type Preprocess struct {
	store      *store.Store
	client     llm.Client
	log        *logger.Logger
	batchSize  int
	retryWait  time.Duration
	batchDelay time.Duration
}

func NewPreprocess(st *store.Store, client llm.Client, log *logger.Logger, batchSize int) *Preprocess {
	return &Preprocess{
		store:      st,
		client:     client,
		log:        log.Component("preprocess"),
		batchSize:  batchSize,
		retryWait:  5 * time.Second,
		batchDelay: time.Second,
	}
}

func (p *Preprocess) Handle(ctx context.Context, taskID string) error {
	raw, err := p.store.ReadText(taskID, FileInput)
	if err != nil {
		return fmt.Errorf("read raw transcript: %w", err)
	}

	segments := splitSegments(raw)
	batches := (len(segments) + p.batchSize - 1) / p.batchSize

	var all []models.Sentence
	for i := 0; i < batches; i++ {
		n := i + 1
		log := p.log.WithTask(taskID).WithField("batch", n)

		if p.store.Exists(taskID, BatchFile(n)) {
			var cached []models.Sentence
			if err := p.store.ReadJSON(taskID, BatchFile(n), &cached); err != nil {
				return fmt.Errorf("reuse batch %d: %w", n, err)
			}
			log.Info("reusing existing batch output")
			all = append(all, cached...)
			continue
		}

		lo, hi := i*p.batchSize, (i+1)*p.batchSize
		if hi > len(segments) {
			hi = len(segments)
		}
		prompt := preprocessPrompt(strings.Join(segments[lo:hi], "\n"))

		cleaned, err := pipeline.Retry(ctx, 3, p.retryWait, func() ([]models.Sentence, error) {
			return p.cleanBatch(ctx, taskID, n, prompt)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Error("batch dropped after 3 attempts")
			continue
		}

		if err := p.store.SaveJSON(taskID, BatchFile(n), cleaned); err != nil {
			return err
		}
		all = append(all, cleaned...)

		if n < batches {
			select {
			case <-time.After(p.batchDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if all == nil {
		all = []models.Sentence{}
	}
	return p.store.SaveJSON(taskID, FileCleanedTranscript, all)
}

// cleanBatch is one attempt: call the model, persist the raw reply before
// any parsing, then extract and validate the sentence array.
func (p *Preprocess) cleanBatch(ctx context.Context, taskID string, n int, prompt string) ([]models.Sentence, error) {
	content, err := p.client.Complete(ctx, "", prompt, 0)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty model response")
	}

	if err := p.store.SaveFile(taskID, BatchRawFile(n), []byte(content)); err != nil {
		return nil, err
	}

	block, ok := jsonx.ExtractLargestBlock(content)
	if !ok {
		return nil, fmt.Errorf("no JSON found in model response")
	}
	if err := validation.Err(validation.Transcript, []byte(block)); err != nil {
		return nil, err
	}

	var sentences []models.Sentence
	if err := json.Unmarshal([]byte(block), &sentences); err != nil {
		return nil, fmt.Errorf("parse cleaned batch: %w", err)
	}
	return sentences, nil
}

// splitSegments breaks the raw transcript into per-utterance segments. A new
// segment begins at every line that opens with a timestamp range; leading
// lines before the first timestamp stay attached to the first segment.
func splitSegments(raw string) []string {
	lines := strings.Split(raw, "\n")
	var segments []string
	var current []string
	for _, line := range lines {
		if segmentStart.MatchString(line) && len(current) > 0 {
			segments = append(segments, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		segments = append(segments, strings.Join(current, "\n"))
	}
	return segments
}

func preprocessPrompt(batchText string) string {
	return strings.Replace(preprocessTemplate, "<<<TRANSCRIPT>>>", batchText, 1)
}

const preprocessTemplate = `你是一个转录优化助手，帮助我修正语音转文字中的错误，并推断每句话的说话人角色比例。

我会给你一段转录文本，格式如下：

时间段（start - end）: 原文字

请你做以下事情：

1️⃣ 修正原文中的识别错误（例如同音字、术语错误、重复词、语病、断句不合理、错别字），使其通顺、符合正常口语，保留教学内容原意。
2️⃣ 不改变时间段（start - end），保留原时间段。
3️⃣ 推断该句子是由 教师 或 学生 说出的，并以百分比形式标注 teacher 和 student 比例（比例和为1）。
4️⃣ **重要规则**：
    - 对于原文中连续重复出现的无意义词汇（如重复单字、噪声词、“哦哦哦”、“啊啊啊”），请主动删除该 sentence，对应时间段保留跳过。
    - 如果某一 sentence 仅含有单个重复字且连续出现，请直接删除该 sentence，时间段可以保留跳过。
    - 如果某一 sentence 是录音杂音、无意义短句（如“嗯”、“哦”、“呃”、“哈”等）且无法推断出有效教学内容，请删除该 sentence。
    - 请保证剩下的 sentence 是有价值、可读、有教学意义的口语表达。

5️⃣ 最终以 **严格的JSON数组格式**输出，每一项包含：
    - start
    - end
    - text （修正后的文字）
    - speaker_probabilities （包含 teacher 和 student）

⚠️ 只输出 JSON，不要输出解释说明，不要输出 "已完成" 文字。
⚠️ 输出中的 JSON 请去除重复、噪声、无意义短句，保证质量。

示例格式：

[
  {
    "start": 0.0,
    "end": 4.0,
    "text": "同学们,我们生活在一个充满声音和光的世界里",
    "speaker_probabilities": {
      "teacher": 1.0,
      "student": 0.0
    }
  },
  ...
]

下面是我要处理的 transcript （你每次只处理不超过100条）：
<<<TRANSCRIPT>>>
`
