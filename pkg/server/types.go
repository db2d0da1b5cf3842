package server

import (
	"context"
	"time"

	"github.com/trvlai/lawyerai/pkg/chat"
)

// Client-facing replies for failed turns
const (
	ReplyInvalidInput = "Missing message or userId"
	ReplyServerError  = "Something went wrong. Please try again."
	ReplyShuttingDown = "Server is shutting down. Please try again."
)

// MaxBodyBytes caps the size of a chat request body
const MaxBodyBytes = 1 << 20

// ChatHandler runs a single chat turn
type ChatHandler interface {
	Handle(ctx context.Context, req chat.Request) (chat.Response, error)
}

// SessionCounter reports the number of live sessions
type SessionCounter interface {
	Len() int
}

// Options configures the HTTP server
type Options struct {
	Host string
	Port int

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string

	// DisableMetrics removes the /metrics route.
	DisableMetrics bool

	// StatsSchedule is the cron spec for the session stats job.
	StatsSchedule string

	ShutdownTimeout time.Duration
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Sessions  int     `json:"sessions"`
	Timestamp int64   `json:"timestamp"`
}
