package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/document"
	"github.com/MimeLyc/doc-translator/internal/job"
)

type enqueueJobRequest struct {
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Config    config.Job `json:"config"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queue.List())
	case http.MethodPost:
		var req enqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Source == "" {
			req.Source = "api"
		}
		req.Config.ApplyDefaults()
		if err := req.Config.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.DedupeKey == "" {
			req.DedupeKey = strings.Join(req.Config.Inputs, "|") + "->" + req.Config.OutputDir
		}

		created, isNew := s.queue.Enqueue(job.EnqueueRequest{
			Source:    req.Source,
			DedupeKey: req.DedupeKey,
			Config:    req.Config,
		})
		code := http.StatusCreated
		if !isNew {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": isNew,
			"job":     created,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleJobByID routes /api/jobs/{id}, /api/jobs/{id}/log and
// /api/jobs/{id}/cancel.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleJobDetails(w, r, id)
	case "log":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleJobLog(w, r, id)
	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !s.queue.Cancel(id) {
			writeError(w, http.StatusConflict, "job is not cancellable")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suffixes": document.Supported(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
