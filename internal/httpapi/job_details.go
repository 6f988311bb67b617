package httpapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/job"
)

// handleJobDetails merges the queue record with the state the worker
// process persisted. The worker's view wins while it runs: progress
// and counters are written by it alone.
func (s *Server) handleJobDetails(w http.ResponseWriter, r *http.Request, id string) {
	record, ok := s.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	if state, err := job.ReadState(job.StatePath(s.dataDir, id)); err == nil {
		record.Progress = state.Progress
		record.ReportPath = state.ReportPath
		record.PID = state.PID
		if !record.Status.Terminal() {
			record.Error = state.Error
		}
	}
	writeJSON(w, http.StatusOK, record)
}

// handleJobLog returns the tail of the worker's append-only log. The
// optional tail query bounds the returned bytes (default 64 KiB).
func (s *Server) handleJobLog(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := s.queue.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	tail := 64 * 1024
	if v := r.URL.Query().Get("tail"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tail = n
		}
	}

	data, err := os.ReadFile(job.LogPath(s.dataDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, map[string]any{"log": ""})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text := string(data)
	if len(text) > tail {
		text = text[len(text)-tail:]
		// Drop the partial first line after truncation.
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": text})
}
