package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/loranode/at"
	"i4.energy/across/loranode/device"
)

//go:generate go tool mockgen -source=server.go -destination=mock_node_test.go -package=main

// Node is the part of the device loop the HTTP surface controls.
type Node interface {
	Snapshot(ctx context.Context) (device.Snapshot, error)
	Rejoin(ctx context.Context) error
	SetMode(ctx context.Context, m at.Mode) error
}

// Server handles incoming HTTP requests for inspecting and controlling the
// node
type Server struct {
	Logger *slog.Logger
	Node   Node
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /join", s.handleJoin)
	mux.HandleFunc("POST /mode", s.handleMode)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// statusFor maps device errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, device.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, device.ErrWorkMode):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// handleStatus reports the node snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Node.Snapshot(r.Context())
	if err != nil {
		s.Logger.Error("Failed to read status", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// handleJoin restarts the join with a fresh retry budget
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if err := s.Node.Rejoin(r.Context()); err != nil {
		s.Logger.Error("Failed to start join", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Join restarted")
	w.WriteHeader(http.StatusAccepted)
}

// handleMode switches the console UART mode
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	type ModeRequest struct {
		Mode string `json:"mode"`
	}

	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode, ok := at.ParseMode(req.Mode)
	if !ok {
		s.sendError(w, "'mode' must be 'normal' or 'transparent'", http.StatusBadRequest)
		return
	}

	if err := s.Node.SetMode(r.Context(), mode); err != nil {
		s.Logger.Error("Failed to set mode", "error", err, "mode", mode)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Mode changed", "mode", mode)
	w.WriteHeader(http.StatusOK)
}
