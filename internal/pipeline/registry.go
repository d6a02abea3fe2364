// Package pipeline runs an ordered plan of stages against a task folder,
// recording progress after every step and stopping at the first failure.
package pipeline

import (
	"context"
	"fmt"

	"github.com/kedge-tech/lessonlens/internal/models"
)

// Handler executes one stage against a task folder. Handlers communicate
// through files only; a nil error means every declared output was written.
type Handler interface {
	Handle(ctx context.Context, taskID string) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, taskID string) error

func (f HandlerFunc) Handle(ctx context.Context, taskID string) error {
	return f(ctx, taskID)
}

// Spec declares a runnable stage: its name, the task files it produces,
// and the handler that produces them.
type Spec struct {
	Name    models.Stage
	Outputs []string
	Handler Handler
}

// Registry holds every registered stage, in registration order. Stages
// resolve each other's output files through it rather than hard-coding
// file names across packages.
type Registry struct {
	order []models.Stage
	specs map[models.Stage]Spec
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[models.Stage]Spec)}
}

// Register adds a stage. Registering the same name twice is a programming
// error and panics.
func (r *Registry) Register(spec Spec) {
	if _, dup := r.specs[spec.Name]; dup {
		panic(fmt.Sprintf("stage %q registered twice", spec.Name))
	}
	r.order = append(r.order, spec.Name)
	r.specs[spec.Name] = spec
}

// Lookup returns the Spec registered under name.
func (r *Registry) Lookup(name models.Stage) (Spec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Outputs returns the declared output files of the named stages, in
// declaration order. Unknown names contribute nothing.
func (r *Registry) Outputs(names ...models.Stage) []string {
	var files []string
	for _, name := range names {
		if spec, ok := r.specs[name]; ok {
			files = append(files, spec.Outputs...)
		}
	}
	return files
}

// Stages returns every registered stage name in registration order.
func (r *Registry) Stages() []models.Stage {
	out := make([]models.Stage, len(r.order))
	copy(out, r.order)
	return out
}
