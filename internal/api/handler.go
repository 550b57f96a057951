package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bbrookhart/Agentic-SOC-Lab/internal/alert"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/config"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/detect"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/engine"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/event"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/session"
	"github.com/bbrookhart/Agentic-SOC-Lab/internal/sink"
)

const maxBodyBytes = 16 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	pub    sink.Publisher
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. pub may be nil.
// Every loader reload, from the API or the file watcher, must compile
// before it is swapped into eng.
func New(eng *engine.Engine, loader *config.Loader, reg *detect.Registry, pub sink.Publisher) http.Handler {
	h := &Handler{eng: eng, loader: loader, pub: pub, mux: http.NewServeMux()}
	loader.Gate(func(cat *config.Catalog) error {
		rs, err := Build(cat, reg)
		if err != nil {
			return err
		}
		eng.SwapRuleset(rs)
		return nil
	})

	h.mux.HandleFunc("POST /v1/detect", h.detect)
	h.mux.HandleFunc("GET /v1/rules", h.listRules)
	h.mux.HandleFunc("POST /v1/rules/reload", h.reloadRules)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/detect: evaluate a batch of events (JSONL or a JSON array).
func (h *Handler) detect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	events, err := decodeEvents(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid events: %s", err))
		return
	}

	res, err := h.eng.Run(r.Context(), events)
	if err != nil {
		writeEvalError(w, err)
		return
	}

	if h.pub != nil && len(res.Alerts) > 0 {
		if err := h.pub.Publish(r.Context(), res.Alerts); err != nil {
			slog.Warn("alert publish failed", "sink", h.pub.Name(), "alerts", len(res.Alerts), "err", err)
		}
	}

	alerts := res.Alerts
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id":  requestID(r.Context()),
		"events":      res.Events,
		"sessions":    res.Sessions,
		"alerts":      alerts,
		"duration_ms": res.DurationMs,
	})
}

// decodeEvents accepts a JSON array or a JSONL stream.
func decodeEvents(body []byte) ([]*event.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var events []*event.Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		for i, ev := range events {
			if ev == nil {
				return nil, fmt.Errorf("element %d: null event", i)
			}
		}
		return events, nil
	}
	return event.Decode(bytes.NewReader(trimmed))
}

func writeEvalError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrMissingSessionID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var ee *detect.EventError
	if errors.As(err, &ee) {
		writeJSON(w, http.StatusUnprocessableEntity, evalErrorResponse{
			Error:      err.Error(),
			RuleID:     ee.RuleID,
			SessionID:  ee.SessionID,
			EventIndex: ee.Offset,
			TraceID:    ee.TraceID,
		})
		return
	}
	writeError(w, http.StatusUnprocessableEntity, err.Error())
}

// GET /v1/rules: list the loaded catalog.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rs := h.eng.Ruleset()
	cat := rs.Catalog()

	runnable := make(map[string]bool, rs.Len())
	for _, cr := range rs.Rules() {
		runnable[cr.Spec.ID] = true
	}
	rules := make([]ruleSummary, 0, len(cat.Rules))
	for _, spec := range cat.Rules {
		rules = append(rules, ruleSummary{
			ID:       spec.ID,
			Title:    spec.Title,
			Severity: string(spec.Severity),
			Runnable: runnable[spec.ID],
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": cat.Version,
		"workers": rs.Workers(),
		"rules":   rules,
	})
}

// POST /v1/rules/reload: re-read rule files and swap the rule set.
func (h *Handler) reloadRules(w http.ResponseWriter, r *http.Request) {
	if _, err := h.loader.Reload(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrRejected) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	rs := h.eng.Ruleset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"rules_count": rs.Len(),
		"skipped":     rs.Skipped(),
	})
}

// Build validates cat and compiles it against reg.
func Build(cat *config.Catalog, reg *detect.Registry) (*detect.Ruleset, error) {
	if err := config.Validate(cat); err != nil {
		return nil, err
	}
	return detect.Compile(cat, reg)
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 until at least one rule is runnable.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	n := h.eng.Ruleset().Len()
	if n == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "no_rules",
			"rules":  n,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"rules":  n,
	})
}
