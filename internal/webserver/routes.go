package webserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kedge-tech/lessonlens/internal/store"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("POST /pipeline-task", s.handleCreate)
	mux.HandleFunc("POST /pipeline-task/upload", s.handleUploadJSON)
	mux.HandleFunc("POST /pipeline-task/upload-text", s.handleUploadText)
	mux.HandleFunc("POST /pipeline-task/upload-audio", handleNotImplemented("audio upload not supported yet"))

	mux.HandleFunc("GET /pipeline-task/{taskId}/status", s.handleStatus)
	mux.HandleFunc("GET /pipeline-task/{taskId}/plan", s.handlePlan)
	mux.HandleFunc("GET /pipeline-task/{taskId}/result", s.handleResult)
	mux.HandleFunc("GET /pipeline-task/{taskId}/class-info", s.handleClassInfo)
	mux.HandleFunc("GET /pipeline-task/{taskId}/report", s.handleReport)
	mux.HandleFunc("GET /pipeline-task/{taskId}/report.pdf", handleNotImplemented("PDF report generation not implemented"))
	mux.HandleFunc("GET /pipeline-task/{taskId}/report.xlsx", handleNotImplemented("Excel report generation not implemented"))
	mux.HandleFunc("POST /pipeline-task/{taskId}/share", handleNotImplemented("share API not implemented"))
	mux.HandleFunc("GET /pipeline-task/{taskId}/chunks", s.handleChunks)
	mux.HandleFunc("GET /pipeline-task/{taskId}/chunk/{index}", s.handleChunk)
	mux.HandleFunc("GET /pipeline-task/{taskId}/chunk/{index}/raw", s.handleRawChunk)
	mux.HandleFunc("GET /pipeline-task/{taskId}/archive", s.handleArchive)

	mux.HandleFunc("GET /pipeline-task/{taskId}/events", s.handleProgressStream)
	mux.HandleFunc("GET /pipeline-task/{taskId}/logs", s.handleLogStream)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleNotImplemented(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": msg})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps store-level absence to 404 and everything else to 500.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// taskLinks is the navigation envelope attached to task responses.
func taskLinks(taskID string) map[string]string {
	base := "/pipeline-task/" + taskID
	return map[string]string{
		"self":      base,
		"status":    base + "/status",
		"result":    base + "/result",
		"classInfo": base + "/class-info",
		"report":    base + "/report",
		"chunks":    base + "/chunks",
	}
}
