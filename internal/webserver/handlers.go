package webserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kedge-tech/lessonlens/internal/models"
)

// maxUploadBytes bounds transcript uploads (32 MiB).
const maxUploadBytes = 32 << 20

type createTaskRequest struct {
	Transcript  []models.Sentence `json:"transcript"`
	DeepAnalyze []string          `json:"deepAnalyze"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.Transcript == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "transcript is required"})
		return
	}

	taskID, err := s.cfg.Orchestrator.SubmitTranscript(r.Context(), req.Transcript, req.DeepAnalyze)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCreated(w, taskID)
}

func (s *Server) handleUploadJSON(w http.ResponseWriter, r *http.Request) {
	content, deepAnalyze, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	var transcript []models.Sentence
	if err := json.Unmarshal(content, &transcript); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid transcript file: %v", err)})
		return
	}

	taskID, err := s.cfg.Orchestrator.SubmitTranscript(r.Context(), transcript, deepAnalyze)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCreated(w, taskID)
}

func (s *Server) handleUploadText(w http.ResponseWriter, r *http.Request) {
	content, deepAnalyze, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	taskID, err := s.cfg.Orchestrator.SubmitText(r.Context(), string(content), deepAnalyze)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeCreated(w, taskID)
}

// readUpload pulls the "file" part and optional deepAnalyze field from a
// multipart form.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, []string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return nil, nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return nil, nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}
	return content, parseDeepAnalyze(r.Form["deepAnalyze"]), true
}

// parseDeepAnalyze accepts both repeated form fields and one comma-joined
// value. nil means the field was absent (run everything).
func parseDeepAnalyze(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (s *Server) writeCreated(w http.ResponseWriter, taskID string) {
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       taskID,
		"status":   models.StatusCreated,
		"stage":    models.StageInitializing,
		"progress": 0,
		"links":    taskLinks(taskID),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	progress, err := s.cfg.Orchestrator.Status(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        taskID,
		"stage":     progress.Stage,
		"label":     models.StageLabels[progress.Stage],
		"status":    progress.Status,
		"progress":  progress.Progress,
		"message":   progress.Message,
		"updatedAt": progress.UpdatedAt,
		"links":     taskLinks(taskID),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.cfg.Orchestrator.Plan(r.PathValue("taskId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"steps": plan})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.cfg.Orchestrator.Result(r.PathValue("taskId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClassInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.cfg.Orchestrator.ClassInfo(r.PathValue("taskId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.cfg.Orchestrator.Report(r.PathValue("taskId"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, report) //nolint:errcheck
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.cfg.Orchestrator.Chunks(r.PathValue("taskId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if chunks == nil {
		chunks = []string{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (s *Server) chunkIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chunk index must be a positive integer"})
		return 0, false
	}
	return index, true
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	index, ok := s.chunkIndex(w, r)
	if !ok {
		return
	}
	chunk, err := s.cfg.Orchestrator.Chunk(r.PathValue("taskId"), index)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(chunk) //nolint:errcheck
}

func (s *Server) handleRawChunk(w http.ResponseWriter, r *http.Request) {
	index, ok := s.chunkIndex(w, r)
	if !ok {
		return
	}
	raw, err := s.cfg.Orchestrator.RawChunk(r.PathValue("taskId"), index)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, raw) //nolint:errcheck
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", taskID+".zip"))
	if err := s.cfg.Orchestrator.Archive(taskID, w); err != nil {
		s.log.WithError(err).WithField("task", taskID).Error("archive stream failed")
	}
}
