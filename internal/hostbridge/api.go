package hostbridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"studytimer/internal/storage"

	"go.uber.org/zap"
)

const maxHistoryLimit = 500

type healthResponse struct {
	Status      string `json:"status"`
	Channel     string `json:"channel"`
	Connections int    `json:"connections"`
	Listeners   int    `json:"listeners"`
	History     bool   `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (server *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	server.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Channel:     server.config.Channel,
		Connections: server.Connections(),
		Listeners:   server.hub.Listeners(server.config.Channel),
		History:     server.history != nil,
	})
}

func (server *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !server.requireHistory(w) {
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			server.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	records, err := server.history.Recent(r.Context(), limit)
	if err != nil {
		server.logger.Error("Listing sessions failed", zap.Error(err))
		server.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
		return
	}
	server.writeJSON(w, http.StatusOK, records)
}

func (server *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !server.requireHistory(w) {
		return
	}
	record, err := server.history.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		server.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		server.logger.Error("Reading session failed", zap.Error(err))
		server.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
		return
	}
	server.writeJSON(w, http.StatusOK, record)
}

func (server *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !server.requireHistory(w) {
		return
	}
	err := server.history.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		server.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		server.logger.Error("Deleting session failed", zap.Error(err))
		server.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSummary aggregates sessions that ended within ?since= (a Go
// duration, default 24h).
func (server *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !server.requireHistory(w) {
		return
	}
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			server.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be a positive duration"})
			return
		}
		window = parsed
	}

	summary, err := server.history.Summarize(r.Context(), server.clock.Now().Add(-window))
	if err != nil {
		server.logger.Error("Summarizing sessions failed", zap.Error(err))
		server.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
		return
	}
	server.writeJSON(w, http.StatusOK, summary)
}

func (server *Server) requireHistory(w http.ResponseWriter) bool {
	if server.history != nil {
		return true
	}
	server.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history is disabled"})
	return false
}

func (server *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		server.logger.Debug("Writing response failed", zap.Error(err))
	}
}
