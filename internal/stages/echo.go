package stages

import (
	"context"
	"fmt"

	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/store"
)

// Echo is the trivial deep-analyze item. It exists to verify item wiring
// end-to-end and doubles as the template for new items.
type Echo struct {
	store *store.Store
}

func NewEcho(st *store.Store) *Echo { return &Echo{store: st} }

func (e *Echo) Name() string              { return "echo" }
func (e *Echo) DependsOn() []models.Stage { return []models.Stage{models.StageSegment} }
func (e *Echo) Outputs() []string         { return []string{FileEcho} }

func (e *Echo) Analyze(_ context.Context, taskID string) error {
	var tasks []models.LessonTask
	if err := e.store.ReadJSON(taskID, FileTaskEvents, &tasks); err != nil {
		return fmt.Errorf("read lesson tasks: %w", err)
	}
	return e.store.SaveJSON(taskID, FileEcho, map[string]int{"tasksCount": len(tasks)})
}
