package models

import "time"

// Stage names a pipeline step. The pseudo-stages initializing/done/error
// only ever appear in progress records, never in an execution plan.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StagePreprocess   Stage = "transcript_preprocessing"
	StageSegment      Stage = "task-event-analyze"
	StageSyllabus     Stage = "syllabus_mapping"
	StageDeepAnalyze  Stage = "deep_analyze"
	StageReport       Stage = "report_generation"
	StageDone         Stage = "done"
	StageError        Stage = "error"
)

// StageLabels maps stage names to the human-readable labels shown by status
// endpoints.
var StageLabels = map[Stage]string{
	StageInitializing: "File Processing",
	StagePreprocess:   "File Processing",
	StageSegment:      "Task Segmentation",
	StageSyllabus:     "Class Information Detection",
	StageDeepAnalyze:  "Deep Analysis",
	StageReport:       "Report Generation",
	StageDone:         "Completed",
	StageError:        "Error",
}

// Status is a task's coarse lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Progress is the persisted progress record for a task. It always reflects
// the last stage attempted: a failure overwrites it with the terminal error
// state rather than appending history.
type Progress struct {
	TaskID    string    `json:"taskId"`
	Stage     Stage     `json:"stage"`
	Status    Status    `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the record represents a finished task.
func (p Progress) Terminal() bool {
	return p.Stage == StageDone || p.Stage == StageError
}
