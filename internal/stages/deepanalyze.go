package stages

import (
	"context"
	"fmt"

	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/store"
)

// Item is one optional analysis run by the deep-analyze stage. Items are
// independent of each other: each declares which stages' output files it
// needs and what it writes.
type Item interface {
	Name() string
	DependsOn() []models.Stage
	Outputs() []string
	Analyze(ctx context.Context, taskID string) error
}

// DeepAnalyze runs the registered items in order. A per-task allow-list in
// config.json ("deepAnalyze" array) selects items; when the field is absent
// every item runs. An item whose prerequisite files are missing is skipped
// with a warning, and an item that fails does not stop its siblings.
type DeepAnalyze struct {
	store *store.Store
	reg   *pipeline.Registry
	log   *logger.Logger
	items []Item
}

func NewDeepAnalyze(st *store.Store, reg *pipeline.Registry, log *logger.Logger, items []Item) *DeepAnalyze {
	return &DeepAnalyze{
		store: st,
		reg:   reg,
		log:   log.Component("deep-analyze"),
		items: items,
	}
}

func (d *DeepAnalyze) Handle(ctx context.Context, taskID string) error {
	var cfg struct {
		DeepAnalyze []string `json:"deepAnalyze"`
	}
	d.store.ReadJSONSafe(taskID, FileTaskConfig, &cfg)
	enabled := cfg.DeepAnalyze

	for _, item := range d.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := d.log.WithTask(taskID).WithField("item", item.Name())

		if enabled != nil && !contains(enabled, item.Name()) {
			log.Debug("item not in allow-list, skipping")
			continue
		}

		if missing, ok := d.missingPrerequisite(taskID, item); ok {
			log.Warnf("skipping item, missing prerequisite file %s", missing)
			continue
		}

		if err := item.Analyze(ctx, taskID); err != nil {
			// One broken analysis must not take down its siblings.
			log.WithError(err).Error("deep analyze item failed")
			_ = d.store.AppendLog(taskID, fmt.Sprintf("deep analyze item %s failed: %v", item.Name(), err))
		}
	}
	return nil
}

func (d *DeepAnalyze) missingPrerequisite(taskID string, item Item) (string, bool) {
	for _, file := range d.reg.Outputs(item.DependsOn()...) {
		if !d.store.Exists(taskID, file) {
			return file, true
		}
	}
	return "", false
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
