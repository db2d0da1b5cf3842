// Package server exposes the chat orchestrator over HTTP.
//
// Routes:
//
//	POST /api/chat   {"message": "...", "userId": "..."} -> {"reply": "..."}
//	GET  /health     liveness with uptime and session count
//	GET  /metrics    Prometheus exposition
//
// Every response to /api/chat carries a "reply" field, including errors.
package server
