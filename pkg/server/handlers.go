package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/trvlai/lawyerai/internal/tracing"
	"github.com/trvlai/lawyerai/pkg/chat"
)

// handleChat handles POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeReply(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !s.beginRequest() {
		writeReply(w, http.StatusServiceUnavailable, ReplyShuttingDown)
		return
	}
	defer s.inFlightReqs.Done()

	logger := tracing.LoggerFromContext(r.Context(), s.logger).With().Str("ip", clientIP(r)).Logger()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn().Int64("limit", tooLarge.Limit).Msg("Request body too large")
			writeReply(w, http.StatusRequestEntityTooLarge, ReplyInvalidInput)
			return
		}
		logger.Warn().Err(err).Msg("Failed to read request body")
		writeReply(w, http.StatusBadRequest, ReplyInvalidInput)
		return
	}

	if err := s.validator.Validate(body); err != nil {
		logger.Debug().Err(err).Msg("Rejected chat request")
		writeReply(w, http.StatusBadRequest, ReplyInvalidInput)
		return
	}

	var req chat.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeReply(w, http.StatusBadRequest, ReplyInvalidInput)
		return
	}

	resp, err := s.chat.Handle(r.Context(), req)
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		writeReply(w, http.StatusBadRequest, ReplyInvalidInput)
	case err != nil:
		logger.Error().Err(err).Str("user_id", req.UserID).Msg("Chat turn failed")
		writeReply(w, http.StatusInternalServerError, ReplyServerError)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeReply(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := "ok"
	if s.shuttingDown() {
		status = "shutting_down"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Uptime:    time.Since(s.startTime).Seconds(),
		Sessions:  s.sessions.Len(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func writeReply(w http.ResponseWriter, status int, reply string) {
	writeJSON(w, status, chat.Response{Reply: reply})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// clientIP prefers proxy headers, then the connection's remote address
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
