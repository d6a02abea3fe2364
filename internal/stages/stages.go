package stages

import (
	"github.com/kedge-tech/lessonlens/internal/config"
	"github.com/kedge-tech/lessonlens/internal/llm"
	"github.com/kedge-tech/lessonlens/internal/logger"
	"github.com/kedge-tech/lessonlens/internal/models"
	"github.com/kedge-tech/lessonlens/internal/pipeline"
	"github.com/kedge-tech/lessonlens/internal/store"
)

// BuildRegistry wires every stage and deep-analyze item into a registry.
// Registration order is the canonical full plan; the orchestrator selects a
// subset of it per submission.
func BuildRegistry(st *store.Store, client llm.Client, log *logger.Logger, cfg config.Settings) *pipeline.Registry {
	reg := pipeline.NewRegistry()

	items := []Item{
		NewBloom(st, client, log),
		NewICAP(st, client, log),
		NewEcho(st),
	}

	reg.Register(pipeline.Spec{
		Name:    models.StagePreprocess,
		Outputs: []string{FileCleanedTranscript},
		Handler: NewPreprocess(st, client, log, cfg.BatchSize),
	})
	reg.Register(pipeline.Spec{
		Name:    models.StageSegment,
		Outputs: []string{FileTaskEvents},
		Handler: NewSegment(st, client, log, cfg.ChunkSize, cfg.Overlap),
	})
	reg.Register(pipeline.Spec{
		Name:    models.StageSyllabus,
		Outputs: []string{FileMappedSyllabus, FileClassInfo},
		Handler: NewSyllabus(st, client, log, cfg.SyllabusPath),
	})
	reg.Register(pipeline.Spec{
		Name:    models.StageDeepAnalyze,
		Handler: NewDeepAnalyze(st, reg, log, items),
	})
	reg.Register(pipeline.Spec{
		Name:    models.StageReport,
		Outputs: []string{FileReport},
		Handler: NewReport(st, items),
	})

	return reg
}
