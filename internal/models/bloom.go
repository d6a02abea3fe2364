package models

// BloomLevel is one of the six levels of Bloom's taxonomy.
type BloomLevel string

const (
	BloomRemember   BloomLevel = "Remember"
	BloomUnderstand BloomLevel = "Understand"
	BloomApply      BloomLevel = "Apply"
	BloomAnalyze    BloomLevel = "Analyze"
	BloomEvaluate   BloomLevel = "Evaluate"
	BloomCreate     BloomLevel = "Create"
)

// BloomLevels lists all valid levels in taxonomy order.
var BloomLevels = []BloomLevel{
	BloomRemember, BloomUnderstand, BloomApply,
	BloomAnalyze, BloomEvaluate, BloomCreate,
}

// Valid reports whether l is one of the six enumerated levels.
func (l BloomLevel) Valid() bool {
	for _, known := range BloomLevels {
		if l == known {
			return true
		}
	}
	return false
}

// BloomEventResult classifies one event's cognitive level.
type BloomEventResult struct {
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Text       string     `json:"text"`
	BloomLevel BloomLevel `json:"bloom_level"`
	Reasoning  string     `json:"reasoning"`
	Confidence float64    `json:"confidence"`
}

// BloomTaskSummary aggregates event results for one lesson task.
type BloomTaskSummary struct {
	TaskTitle        string     `json:"task_title"`
	Summary          string     `json:"summary"`
	PredominantLevel BloomLevel `json:"predominant_level"`
}

// BloomOverallSummary is the whole-session rollup.
type BloomOverallSummary struct {
	OverallSummary   string     `json:"overall_summary"`
	PredominantLevel BloomLevel `json:"predominant_level"`
}

// BloomAnalysis is the bloom-taxonomy item's persisted output.
type BloomAnalysis struct {
	EventResults  []BloomEventResult   `json:"eventResults"`
	TaskSummaries []BloomTaskSummary   `json:"taskSummaries"`
	Overall       *BloomOverallSummary `json:"overall"`
}
