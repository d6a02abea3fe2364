// Package stages holds the concrete pipeline stages and deep-analyze items.
// Stages communicate exclusively through files in the task folder; the file
// names below are the contract between them.
package stages

import "fmt"

// Task folder file names.
const (
	FileInput             = "input.txt"
	FileTaskConfig        = "config.json"
	FileCleanedTranscript = "cleaned_transcript.json"
	FileTaskEvents        = "task_events.json"
	FileMappedSyllabus    = "mapped_syllabus.json"
	FileClassInfo         = "class_info.json"
	FileBloomTaxonomy     = "bloom_taxonomy.json"
	FileICAPModes         = "icap_modes.json"
	FileEcho              = "echo.json"
	FileReport            = "tasks_report.md"
	FilePlan              = "plan.json"
)

// BatchFile names the parsed output of preprocessing batch n (1-based).
// Its presence makes the batch skippable on a rerun.
func BatchFile(n int) string { return fmt.Sprintf("batch_%d.json", n) }

// BatchRawFile names the unparsed model response for batch n.
func BatchRawFile(n int) string { return fmt.Sprintf("batch_%d.raw.txt", n) }

// ChunkFile names the parsed output of segmentation chunk n (1-based).
func ChunkFile(n int) string { return fmt.Sprintf("chunk_%d.json", n) }

// ChunkRawFile names the unparsed model response for chunk n.
func ChunkRawFile(n int) string { return fmt.Sprintf("chunk_%d.raw.txt", n) }
