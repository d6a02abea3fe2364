package webserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// handleProgressStream pushes the task's progress record as SSE: current
// state first, then every change until the client disconnects.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, s.cfg.Orchestrator.WatchProgress)
}

// handleLogStream pushes the task log: full content first, then appended
// lines as they arrive.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, s.cfg.Orchestrator.WatchLog)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, watch func(ctx context.Context, taskID string) (<-chan []byte, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	taskID := r.PathValue("taskId")
	events, err := watch(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for data := range events {
		writeSSE(w, data)
		flusher.Flush()
	}
}

// writeSSE frames one event; multi-line payloads get one data: prefix per
// line as the protocol requires.
func writeSSE(w http.ResponseWriter, data []byte) {
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
