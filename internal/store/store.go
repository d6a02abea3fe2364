// Package store is the task-scoped file store backing the pipeline. Every
// task owns one folder under the base directory; stage handlers are its
// only writers, serialized by the single-worker queue.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/kedge-tech/lessonlens/internal/models"
)

// ErrNotFound is returned when a requested task file does not exist.
var ErrNotFound = errors.New("file not found")

const (
	progressFile = "progress.json"
	logFile      = "task.log"
)

// Store reads and writes per-task files under a base directory.
type Store struct {
	base string
}

// New creates a store rooted at base, creating it if needed.
func New(base string) (*Store, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &Store{base: base}, nil
}

// TaskDir returns the task's folder, creating it on first access.
func (s *Store) TaskDir(taskID string) (string, error) {
	dir := filepath.Join(s.base, "tasks", taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task folder: %w", err)
	}
	return dir, nil
}

// SaveFile writes content under the task's folder.
func (s *Store) SaveFile(taskID, name string, content []byte) error {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// SaveJSON marshals v with indentation and writes it under the task folder.
func (s *Store) SaveJSON(taskID, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return s.SaveFile(taskID, name, data)
}

// ReadText returns a task file's content; ErrNotFound when absent.
func (s *Store) ReadText(taskID, name string) (string, error) {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// ReadTextSafe returns a task file's content, or ok=false when it is absent
// or unreadable.
func (s *Store) ReadTextSafe(taskID, name string) (string, bool) {
	content, err := s.ReadText(taskID, name)
	if err != nil {
		return "", false
	}
	return content, true
}

// ReadJSON decodes a task file into v; ErrNotFound when absent.
func (s *Store) ReadJSON(taskID, name string, v any) error {
	content, err := s.ReadText(taskID, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// ReadJSONSafe decodes a task file into v, reporting ok=false when the file
// is absent or malformed.
func (s *Store) ReadJSONSafe(taskID, name string, v any) bool {
	return s.ReadJSON(taskID, name, v) == nil
}

// Exists reports whether a task file is present.
func (s *Store) Exists(taskID, name string) bool {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return false
	}
	fi, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !fi.IsDir()
}

// ListFiles returns the task folder's file names, sorted, dotfiles skipped.
func (s *Store) ListFiles(taskID string) ([]string, error) {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list task folder: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// SaveProgress persists the task's progress record, filling task id,
// timestamp, and a default processing status. The record replaces whatever
// was there before; only the latest state is retained.
func (s *Store) SaveProgress(taskID string, p models.Progress) error {
	p.TaskID = taskID
	if p.Status == "" {
		p.Status = models.StatusProcessing
	}
	p.UpdatedAt = time.Now().UTC()
	return s.SaveJSON(taskID, progressFile, p)
}

// ReadProgress returns the task's progress record; ErrNotFound when the
// task has never reported progress.
func (s *Store) ReadProgress(taskID string) (models.Progress, error) {
	var p models.Progress
	if err := s.ReadJSON(taskID, progressFile, &p); err != nil {
		return models.Progress{}, err
	}
	return p, nil
}

// AppendLog appends one timestamped line to the task's log stream.
func (s *Store) AppendLog(taskID, line string) error {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ProgressPath returns the absolute path of the task's progress record.
func (s *Store) ProgressPath(taskID string) (string, error) {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, progressFile), nil
}

// LogPath returns the absolute path of the task's log stream.
func (s *Store) LogPath(taskID string) (string, error) {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, logFile), nil
}

// WriteArchive streams the whole task folder as a zip archive.
func (s *Store) WriteArchive(taskID string, w io.Writer) error {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(fw, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("archive task folder: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}
