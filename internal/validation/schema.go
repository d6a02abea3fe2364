// Package validation checks LLM-produced documents against JSON Schemas
// before they are persisted or fed to downstream stages.
package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// defaultPrinter formats schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// Compiled schemas for every LLM output shape the pipeline parses.
var (
	Transcript       *jsonschema.Schema
	LessonTasks      *jsonschema.Schema
	BloomEvent       *jsonschema.Schema
	BloomTaskSummary *jsonschema.Schema
	BloomOverall     *jsonschema.Schema
	ICAPResult       *jsonschema.Schema
	SyllabusMatches  *jsonschema.Schema
)

func init() {
	Transcript = mustCompile("transcript.schema.json")
	LessonTasks = mustCompile("lesson_tasks.schema.json")
	BloomEvent = mustCompile("bloom_event.schema.json")
	BloomTaskSummary = mustCompile("bloom_task_summary.schema.json")
	BloomOverall = mustCompile("bloom_overall.schema.json")
	ICAPResult = mustCompile("icap_result.schema.json")
	SyllabusMatches = mustCompile("syllabus_matches.schema.json")
}

func mustCompile(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded schema %s: %v", name, err))
	}

	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// CheckBytes parses data as JSON and validates it against schema. Returns
// human-readable errors, one per violation; nil means valid.
func CheckBytes(schema *jsonschema.Schema, data []byte) []string {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return Check(schema, instance)
}

// Check validates an already-decoded instance against schema.
func Check(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectErrors(ve, &errs)
	return errs
}

// Err is a convenience wrapper turning validation failures into one error.
func Err(schema *jsonschema.Schema, data []byte) error {
	if errs := CheckBytes(schema, data); len(errs) > 0 {
		return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func collectErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectErrors(c, errs)
	}
}
