package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"agrohub.dev/garden-hub/internal/command"
	"agrohub.dev/garden-hub/internal/ingest"
	"agrohub.dev/garden-hub/internal/notify"
	"agrohub.dev/garden-hub/internal/store"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request metrics for one endpoint.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.Metrics == nil {
			next(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		s.config.Metrics.HTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		s.config.Metrics.HTTPRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeDetail writes an error response with a human-readable reason.
func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetUser resolves a robot id to the chat identity of its operator.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	robotID := r.URL.Query().Get("robot_id")
	if robotID == "" {
		s.writeDetail(w, http.StatusBadRequest, "robot_id is required")
		return
	}

	telegramID, err := s.config.Directory.TelegramIDForRobot(r.Context(), robotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeDetail(w, http.StatusNotFound, "robot not found")
			return
		}
		s.logger.Error("failed to resolve robot binding", "robot_id", robotID, "error", err)
		s.writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"telegram_id": telegramID})
}

// handleScan ingests one scan submission.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var sub ingest.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if sub.RobotID == "" {
		s.writeDetail(w, http.StatusBadRequest, "robot_id is required")
		return
	}

	if err := s.config.Ingest.Process(r.Context(), sub); err != nil {
		switch {
		case errors.Is(err, ingest.ErrRobotNotFound):
			s.writeDetail(w, http.StatusNotFound, "robot not found")
		case errors.Is(err, ingest.ErrBadImage), errors.Is(err, ingest.ErrBadTimestamp):
			s.logger.Error("scan rejected", "robot_id", sub.RobotID, "error", err)
			s.writeDetail(w, http.StatusInternalServerError, err.Error())
		default:
			s.logger.Error("scan ingestion failed", "robot_id", sub.RobotID, "error", err)
			s.writeDetail(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleCommand reports the desired command for a polling robot.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	robotID := r.URL.Query().Get("robot_id")
	if robotID == "" {
		s.writeDetail(w, http.StatusBadRequest, "robot_id is required")
		return
	}

	cell, err := s.config.Commands.GetDesired(r.Context(), robotID)
	if err != nil {
		s.logger.Error("failed to read command cell", "robot_id", robotID, "error", err)
		s.writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.config.Metrics != nil {
		s.config.Metrics.CommandPolls.Inc()
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"command": string(cell.Command)})
}

type updateCommandRequest struct {
	RobotID string `json:"robot_id"`
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// handleUpdateCommand overwrites the desired command for a robot. A stop
// additionally alerts the owning operator; that alert is best-effort.
func (s *Server) handleUpdateCommand(w http.ResponseWriter, r *http.Request) {
	var req updateCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RobotID == "" {
		s.writeDetail(w, http.StatusBadRequest, "robot_id is required")
		return
	}

	cmd := command.Command(req.Command)
	if !cmd.Valid() {
		s.writeDetail(w, http.StatusBadRequest, fmt.Sprintf("unknown command %q", req.Command))
		return
	}

	if err := s.config.Commands.SetDesired(r.Context(), req.RobotID, cmd, req.Reason); err != nil {
		s.logger.Error("failed to write command cell", "robot_id", req.RobotID, "error", err)
		s.writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.config.Metrics != nil {
		s.config.Metrics.CommandUpdates.WithLabelValues(string(cmd)).Inc()
	}

	if cmd == command.Stop {
		s.notifyStopped(r, req.RobotID, req.Reason)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// notifyStopped alerts the robot's operator that scanning stopped. The
// update that triggered it has already succeeded, so failures here are
// only logged.
func (s *Server) notifyStopped(r *http.Request, robotID, reason string) {
	owner, err := s.config.Directory.OwnerForRobot(r.Context(), robotID)
	if err != nil {
		s.logger.Error("failed to resolve operator for stop alert",
			"robot_id", robotID,
			"kind", string(notify.KindRobotStopped),
			"error", err,
		)
		return
	}

	event := notify.Event{
		TelegramID: owner.TelegramID,
		Kind:       notify.KindRobotStopped,
		Text:       command.StopMessage(robotID, reason),
	}
	if err := s.config.Publisher.Publish(r.Context(), event); err != nil {
		s.logger.Error("failed to publish stop alert",
			"robot_id", robotID,
			"kind", string(notify.KindRobotStopped),
			"error", err,
		)
	}
}

type clearCommandRequest struct {
	RobotID string `json:"robot_id"`
}

// handleClearCommand resets the command cell after a scan cycle so a
// stale start cannot re-trigger another pass.
func (s *Server) handleClearCommand(w http.ResponseWriter, r *http.Request) {
	var req clearCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RobotID == "" {
		s.writeDetail(w, http.StatusBadRequest, "robot_id is required")
		return
	}

	if err := s.config.Commands.Clear(r.Context(), req.RobotID); err != nil {
		s.logger.Error("failed to clear command cell", "robot_id", req.RobotID, "error", err)
		s.writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
