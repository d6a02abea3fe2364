package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/store"
)

// Runner executes a plan of stages one at a time, fail-fast. Each step is
// bracketed by progress writes so clients polling or streaming the task's
// progress record always see the current stage.
type Runner struct {
	store *store.Store
	reg   *Registry
	log   *logger.Logger
}

func NewRunner(st *store.Store, reg *Registry, log *logger.Logger) *Runner {
	return &Runner{store: st, reg: reg, log: log}
}

// Run executes plan in order. The first failing stage (or a plan entry with
// no registered handler) writes a terminal error record and stops the run;
// stages after it never execute. Run does not write the final done record,
// that belongs to the caller who knows whether more work follows.
func (r *Runner) Run(ctx context.Context, taskID string, plan []models.Stage) error {
	total := len(plan)
	for i, name := range plan {
		if err := ctx.Err(); err != nil {
			return r.fail(taskID, name, fmt.Errorf("run canceled: %w", err))
		}

		spec, ok := r.reg.Lookup(name)
		if !ok {
			return r.fail(taskID, name, fmt.Errorf("no handler registered for stage %q", name))
		}

		log := r.log.WithFields(logrus.Fields{"task": taskID, "stage": name})
		log.Info("stage started")

		if err := r.store.SaveProgress(taskID, models.Progress{
			Stage:    name,
			Status:   models.StatusProcessing,
			Progress: float64(i) / float64(total),
			Message:  "Started",
		}); err != nil {
			return r.fail(taskID, name, fmt.Errorf("record stage start: %w", err))
		}

		if err := spec.Handler.Handle(ctx, taskID); err != nil {
			log.WithError(err).Error("stage failed")
			return r.fail(taskID, name, err)
		}

		if err := r.store.SaveProgress(taskID, models.Progress{
			Stage:    name,
			Status:   models.StatusProcessing,
			Progress: float64(i+1) / float64(total),
		}); err != nil {
			return r.fail(taskID, name, fmt.Errorf("record stage completion: %w", err))
		}
		log.Info("stage completed")
	}
	return nil
}

// fail writes the terminal error record and returns a wrapped error naming
// the stage that broke the run.
func (r *Runner) fail(taskID string, stage models.Stage, cause error) error {
	msg := fmt.Sprintf("stage %s failed: %v", stage, cause)
	if err := r.store.SaveProgress(taskID, models.Progress{
		Stage:    models.StageError,
		Status:   models.StatusFailed,
		Progress: 1,
		Message:  msg,
	}); err != nil {
		r.log.WithError(err).WithField("task", taskID).Error("could not record failure")
	}
	_ = r.store.AppendLog(taskID, msg)
	return fmt.Errorf("stage %s: %w", stage, cause)
}
