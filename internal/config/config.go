// Package config holds runtime settings for the pipeline service.
//
// Settings come from three layers, later layers winning: built-in defaults,
// an optional lessonlens.yaml file, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved configuration.
type Settings struct {
	// LLM gateway (OpenAI-compatible chat completions endpoint).
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMAPIKey  string `yaml:"-"`
	Model      string `yaml:"model"`

	// Segmentation windowing and preprocessing batching.
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
	BatchSize int `yaml:"batch_size"`

	// DataDir is the root under which per-task folders live.
	DataDir string `yaml:"data_dir"`

	// SyllabusPath points at a syllabus items JSON file. Empty means the
	// embedded default set.
	SyllabusPath string `yaml:"syllabus_path"`

	Port int `yaml:"port"`
}

func defaults() Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Settings{
		Model:     "gpt-4o",
		ChunkSize: 300,
		Overlap:   30,
		BatchSize: 100,
		DataDir:   filepath.Join(home, ".lessonlens"),
		Port:      8080,
	}
}

// Load resolves settings. path names a YAML file to overlay; when empty,
// lessonlens.yaml in the working directory is used if present.
func Load(path string) (Settings, error) {
	s := defaults()

	if path == "" {
		if _, err := os.Stat("lessonlens.yaml"); err == nil {
			path = "lessonlens.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(&s)

	if s.ChunkSize <= 0 {
		return Settings{}, fmt.Errorf("chunk_size must be positive, got %d", s.ChunkSize)
	}
	if s.Overlap < 0 || s.Overlap >= s.ChunkSize {
		return Settings{}, fmt.Errorf("overlap must be in [0, chunk_size), got %d", s.Overlap)
	}
	return s, nil
}

func applyEnv(s *Settings) {
	setString(&s.LLMBaseURL, "LLM_GATEWAY_URL")
	setString(&s.LLMAPIKey, "LLM_API_KEY")
	setString(&s.Model, "MODEL")
	setString(&s.DataDir, "DATA_DIR")
	setString(&s.SyllabusPath, "SYLLABUS_ITEMS_PATH")
	setInt(&s.ChunkSize, "CHUNK_SIZE")
	setInt(&s.Overlap, "OVERLAP")
	setInt(&s.BatchSize, "BATCH_SIZE")
	setInt(&s.Port, "PORT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
