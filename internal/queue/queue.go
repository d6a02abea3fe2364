// Package queue serializes pipeline execution: one worker, FIFO order, one
// task end-to-end at a time.
package queue

import (
	"context"
	"fmt"

	"github.com/kedge-tech/lessonlens/internal/logger"
)

// Task is one queued submission.
type Task struct {
	ID   string
	Type Type
}

// Type records the submitted transcript's modality.
type Type string

const (
	TypeText Type = "txt_transcript"
	TypeJSON Type = "json_transcript"
)

// Queue is a bounded FIFO feeding a single worker goroutine. Submissions
// beyond capacity fail fast instead of blocking HTTP handlers.
type Queue struct {
	tasks chan Task
	log   *logger.Logger
}

func New(capacity int, log *logger.Logger) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{
		tasks: make(chan Task, capacity),
		log:   log.Component("queue"),
	}
}

// Enqueue adds a task. It fails when the queue is full or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	select {
	case q.tasks <- task:
		q.log.WithField("task", task.ID).Info("task queued")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue full, rejecting task %s", task.ID)
	}
}

// Len returns the number of tasks waiting (not counting one being worked).
func (q *Queue) Len() int { return len(q.tasks) }

// Run consumes tasks until ctx is canceled, invoking work for each in
// order. A failing task is logged and does not stop the worker.
func (q *Queue) Run(ctx context.Context, work func(ctx context.Context, task Task) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-q.tasks:
			log := q.log.WithField("task", task.ID)
			log.Info("task picked up")
			if err := work(ctx, task); err != nil {
				log.WithError(err).Error("task failed")
				continue
			}
			log.Info("task completed")
		}
	}
}
