// Package api provides HTTP handlers for interviewd endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vocalhire/interviewd/internal/device"
	"github.com/vocalhire/interviewd/internal/models"
	"github.com/vocalhire/interviewd/internal/session"
)

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createSessionHandler: processing create request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.createSessionHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var ictx models.InterviewContext
	if err := json.NewDecoder(r.Body).Decode(&ictx); err != nil {
		slog.Warn("Server.createSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := ictx.Validate(); err != nil {
		slog.Warn("Server.createSessionHandler: validation failed", "error", err, "interviewID", ictx.InterviewID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	m := session.NewMachine(ictx, session.Deps{
		Provider:   s.newProvider(),
		Devices:    device.NewManager(s.newMedia()),
		Gatekeeper: s.gatekeeper,
		Pipeline:   s.pipeline,
	})
	s.addSession(m)

	slog.Info("Server.createSessionHandler: session created", "id", m.ID(), "interviewID", ictx.InterviewID)
	writeJSONResponse(w, http.StatusCreated, models.Success(m.Snapshot()))
}

// sessionHandler routes /sessions/{id} and its sub-resources.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sessionHandler invoked", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Missing session ID"))
		return
	}

	m, ok := s.getSession(segments[0])
	if !ok {
		slog.Warn("Server.sessionHandler: session not found", "id", segments[0])
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	switch {
	case len(segments) == 1:
		// /sessions/{id}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(m.Snapshot()))

	case len(segments) == 2:
		switch segments[1] {
		case "start":
			s.startSessionHandler(w, r, m)
		case "stop":
			s.stopSessionHandler(w, r, m)
		case "mute":
			s.muteSessionHandler(w, r, m)
		case "transcript":
			s.transcriptHandler(w, r, m)
		case "feedback":
			s.feedbackHandler(w, r, m)
		default:
			writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
		}

	case len(segments) == 3 && segments[1] == "devices":
		s.deviceToggleHandler(w, r, m, segments[2])

	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
	}
}

// startSessionHandler handles POST /sessions/{id}/start.
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request, m *session.Machine) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	if err := m.Start(r.Context()); err != nil {
		status, msg := startErrorStatus(err)
		slog.Warn("Server.startSessionHandler: session start refused", "error", err, "id", m.ID())
		writeJSONResponse(w, status, models.Error(msg))
		return
	}

	slog.Info("Server.startSessionHandler: session started", "id", m.ID())
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session started", m.Snapshot()))
}

// startErrorStatus maps a session start failure to an HTTP status.
func startErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrDuplicateAttempt):
		return http.StatusConflict, "Interview already attempted by this candidate"
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden, "Microphone permission denied"
	case errors.Is(err, models.ErrProviderFailure):
		return http.StatusBadGateway, "Voice provider unavailable"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, "Session cannot be started from its current state"
	default:
		return http.StatusInternalServerError, "Failed to start session"
	}
}

// stopSessionHandler handles POST /sessions/{id}/stop.
func (s *Server) stopSessionHandler(w http.ResponseWriter, r *http.Request, m *session.Machine) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	if err := m.Stop(r.Context()); err != nil {
		slog.Warn("Server.stopSessionHandler: stop refused", "error", err, "id", m.ID(), "state", m.State())
		writeJSONResponse(w, http.StatusConflict, models.Error("Session cannot be stopped from its current state"))
		return
	}

	slog.Info("Server.stopSessionHandler: session stopped", "id", m.ID())
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session stopped", m.Snapshot()))
}

// muteSessionHandler handles POST /sessions/{id}/mute.
func (s *Server) muteSessionHandler(w http.ResponseWriter, r *http.Request, m *session.Machine) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if err := m.SetMuted(req.Muted); err != nil {
		slog.Warn("Server.muteSessionHandler: mute refused", "error", err, "id", m.ID(), "state", m.State())
		writeJSONResponse(w, http.StatusConflict, models.Error("Session has no live call to mute"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]bool{"muted": req.Muted}))
}

// transcriptHandler handles GET /sessions/{id}/transcript.
func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request, m *session.Machine) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	entries := m.Transcript()
	slog.Debug("Server.transcriptHandler: transcript fetched", "id", m.ID(), "count", len(entries))
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

// feedbackHandler handles GET /sessions/{id}/feedback. Feedback exists only
// once the session reaches feedback_saved.
func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request, m *session.Machine) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	result, ok := m.Feedback()
	if !ok {
		writeJSONResponse(w, http.StatusConflict, models.Error("Feedback not available, session is "+string(m.State())))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// deviceToggleHandler handles POST /sessions/{id}/devices/{camera|mic}.
// Device toggles are valid in any session state.
func (s *Server) deviceToggleHandler(w http.ResponseWriter, r *http.Request, m *session.Machine, dev string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var on bool
	var err error
	switch dev {
	case "camera":
		on, err = m.Devices().ToggleCamera(r.Context())
	case "mic":
		on, err = m.Devices().ToggleMic(r.Context())
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown device"))
		return
	}
	if err != nil {
		slog.Warn("Server.deviceToggleHandler: toggle failed", "error", err, "id", m.ID(), "device", dev)
		writeJSONResponse(w, http.StatusConflict, models.Error("Device toggle failed: "+err.Error()))
		return
	}

	slog.Debug("Server.deviceToggleHandler: device toggled", "id", m.ID(), "device", dev, "on", on)
	writeJSONResponse(w, http.StatusOK, models.Success(m.Devices().State()))
}

// attemptHandler handles GET /attempts/{interviewID}/{email}.
func (s *Server) attemptHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.attemptHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/attempts/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Expected /attempts/{interviewID}/{email}"))
		return
	}

	rec, err := s.repo.GetAttempt(segments[0], segments[1])
	if err != nil {
		slog.Error("Server.attemptHandler: attempt lookup failed", "error", err, "interviewID", segments[0])
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch attempt"))
		return
	}

	result := map[string]interface{}{"attempted": rec != nil}
	if rec != nil {
		result["attempt"] = rec
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// healthHandler provides a health check endpoint for monitoring and load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  s.sessionCount(),
	}

	// Probe the attempt store; a broken store means sessions can start but
	// never persist their feedback.
	if _, err := s.repo.ExistsAttempt("health-check", "health-check"); err != nil {
		slog.Warn("Health check: attempt store probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Attempt store unavailable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
