// Package orchestrator ties submissions, the queue, and the pipeline
// together: it creates task folders, persists execution plans, and runs
// queued tasks to completion.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/google/uuid"

	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/queue"
	"github.com/kedge-tech/lessonlens/internal/stages"
	"github.com/kedge-tech/lessonlens/internal/store"
)

// Orchestrator owns the task lifecycle from submission to report.
type Orchestrator struct {
	store  *store.Store
	queue  *queue.Queue
	runner *pipeline.Runner
	log    *logger.Logger
}

func New(st *store.Store, q *queue.Queue, runner *pipeline.Runner, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:  st,
		queue:  q,
		runner: runner,
		log:    log.Component("orchestrator"),
	}
}

// BuildPlan returns the stage sequence for a submission type. A structured
// transcript skips preprocessing because it already is the cleaned form.
func BuildPlan(taskType queue.Type) ([]models.Stage, error) {
	switch taskType {
	case queue.TypeText:
		return []models.Stage{
			models.StagePreprocess,
			models.StageSegment,
			models.StageSyllabus,
			models.StageDeepAnalyze,
			models.StageReport,
		}, nil
	case queue.TypeJSON:
		return []models.Stage{
			models.StageSegment,
			models.StageSyllabus,
			models.StageDeepAnalyze,
			models.StageReport,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported task type %q", taskType)
	}
}

// SubmitText creates a task from a raw timestamped transcript and queues it.
func (o *Orchestrator) SubmitText(ctx context.Context, text string, deepAnalyze []string) (string, error) {
	taskID := uuid.New().String()
	if err := o.store.SaveFile(taskID, stages.FileInput, []byte(text)); err != nil {
		return "", err
	}
	return taskID, o.finishSubmission(ctx, taskID, queue.TypeText, deepAnalyze)
}

// SubmitTranscript creates a task from an already-cleaned sentence array
// and queues it.
func (o *Orchestrator) SubmitTranscript(ctx context.Context, transcript []models.Sentence, deepAnalyze []string) (string, error) {
	taskID := uuid.New().String()
	if err := o.store.SaveJSON(taskID, stages.FileCleanedTranscript, transcript); err != nil {
		return "", err
	}
	return taskID, o.finishSubmission(ctx, taskID, queue.TypeJSON, deepAnalyze)
}

func (o *Orchestrator) finishSubmission(ctx context.Context, taskID string, taskType queue.Type, deepAnalyze []string) error {
	if deepAnalyze != nil {
		err := o.store.SaveJSON(taskID, stages.FileTaskConfig, map[string][]string{
			"deepAnalyze": deepAnalyze,
		})
		if err != nil {
			return err
		}
	}

	plan, err := BuildPlan(taskType)
	if err != nil {
		return err
	}
	// The plan is on disk before the task is queued, so a worker (or a
	// restart) never has to guess what was intended.
	if err := o.store.SaveJSON(taskID, stages.FilePlan, plan); err != nil {
		return err
	}

	err = o.store.SaveProgress(taskID, models.Progress{
		Stage:   models.StageInitializing,
		Status:  models.StatusQueued,
		Message: "Task created",
	})
	if err != nil {
		return err
	}

	if err := o.queue.Enqueue(ctx, queue.Task{ID: taskID, Type: taskType}); err != nil {
		return err
	}
	o.log.WithTask(taskID).WithField("type", taskType).Info("task submitted")
	return nil
}

// RunTask executes a queued task against its persisted plan. All failures
// are absorbed into the task's terminal progress record; the worker loop
// itself never dies because of one submission.
func (o *Orchestrator) RunTask(ctx context.Context, task queue.Task) error {
	taskID := task.ID
	_ = o.store.AppendLog(taskID, fmt.Sprintf("Task started: %s", task.Type))

	err := o.store.SaveProgress(taskID, models.Progress{
		Stage:    models.StageInitializing,
		Status:   models.StatusProcessing,
		Progress: 0.05,
		Message:  "Task pulled from queue",
	})
	if err != nil {
		return err
	}

	plan, err := o.readPlan(taskID, task.Type)
	if err != nil {
		_ = o.store.SaveProgress(taskID, models.Progress{
			Stage:    models.StageError,
			Status:   models.StatusFailed,
			Progress: 1,
			Message:  err.Error(),
		})
		_ = o.store.AppendLog(taskID, fmt.Sprintf("Task failed: %v", err))
		return err
	}

	if err := o.runner.Run(ctx, taskID, plan); err != nil {
		// Terminal progress was already written by the runner.
		_ = o.store.AppendLog(taskID, fmt.Sprintf("Task failed: %v", err))
		return err
	}

	err = o.store.SaveProgress(taskID, models.Progress{
		Stage:    models.StageDone,
		Status:   models.StatusCompleted,
		Progress: 1,
		Message:  "All stages completed",
	})
	if err != nil {
		return err
	}
	return o.store.AppendLog(taskID, "Task completed")
}

// readPlan prefers the plan persisted at submission; a missing file falls
// back to the canonical plan for the type.
func (o *Orchestrator) readPlan(taskID string, taskType queue.Type) ([]models.Stage, error) {
	var plan []models.Stage
	if o.store.ReadJSONSafe(taskID, stages.FilePlan, &plan) && len(plan) > 0 {
		return plan, nil
	}
	return BuildPlan(taskType)
}

// Accessors below are thin file reads; absence is reported, not invented.

func (o *Orchestrator) Status(taskID string) (models.Progress, error) {
	return o.store.ReadProgress(taskID)
}

func (o *Orchestrator) Plan(taskID string) ([]models.Stage, error) {
	var plan []models.Stage
	if err := o.store.ReadJSON(taskID, stages.FilePlan, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (o *Orchestrator) Result(taskID string) ([]models.LessonTask, error) {
	var tasks []models.LessonTask
	if err := o.store.ReadJSON(taskID, stages.FileTaskEvents, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (o *Orchestrator) ClassInfo(taskID string) (models.ClassInfo, error) {
	var info models.ClassInfo
	if err := o.store.ReadJSON(taskID, stages.FileClassInfo, &info); err != nil {
		return models.ClassInfo{}, err
	}
	return info, nil
}

func (o *Orchestrator) Report(taskID string) (string, error) {
	return o.store.ReadText(taskID, stages.FileReport)
}

var chunkFilePattern = regexp.MustCompile(`^chunk_\d+\.json$`)

// Chunks lists the parsed segmentation chunk files present for a task.
func (o *Orchestrator) Chunks(taskID string) ([]string, error) {
	names, err := o.store.ListFiles(taskID)
	if err != nil {
		return nil, err
	}
	var chunks []string
	for _, name := range names {
		if chunkFilePattern.MatchString(name) {
			chunks = append(chunks, name)
		}
	}
	sort.Strings(chunks)
	return chunks, nil
}

func (o *Orchestrator) Chunk(taskID string, index int) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := o.store.ReadJSON(taskID, stages.ChunkFile(index), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (o *Orchestrator) RawChunk(taskID string, index int) (string, error) {
	return o.store.ReadText(taskID, stages.ChunkRawFile(index))
}

// Archive streams the whole task folder as a zip file.
func (o *Orchestrator) Archive(taskID string, w io.Writer) error {
	return o.store.WriteArchive(taskID, w)
}

// WatchProgress and WatchLog expose the store's file watches to the API
// layer without leaking store paths.

func (o *Orchestrator) WatchProgress(ctx context.Context, taskID string) (<-chan []byte, error) {
	return o.store.WatchProgress(ctx, taskID)
}

func (o *Orchestrator) WatchLog(ctx context.Context, taskID string) (<-chan []byte, error) {
	return o.store.WatchLog(ctx, taskID)
}
