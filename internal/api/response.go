package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// evalErrorResponse names the input that aborted an evaluation.
// EventIndex is the event's position in the request body.
type evalErrorResponse struct {
	Error      string `json:"error"`
	RuleID     string `json:"rule_id"`
	SessionID  string `json:"session_id"`
	EventIndex int    `json:"event_index"`
	TraceID    string `json:"trace_id"`
}

type ruleSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Runnable bool   `json:"runnable"`
}
