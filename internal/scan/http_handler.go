package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/httpx"
)

type HTTPHandler struct {
	orch      *Orchestrator
	events    *Broadcaster
	baseCtx   context.Context
	keepAlive time.Duration
}

// NewHTTPHandler exposes the orchestrator over HTTP. Sessions run under
// baseCtx, not the request context, so they outlive the request that started them.
func NewHTTPHandler(baseCtx context.Context, orch *Orchestrator, events *Broadcaster) *HTTPHandler {
	return &HTTPHandler{orch: orch, events: events, baseCtx: baseCtx, keepAlive: 15 * time.Second}
}

// Start handles POST /v1/scans
// @Summary Start a scan
// @Description Opens the scanner and waits for one barcode. Progress is reported on /v1/scans/events.
// @Tags scans
// @Produce json
// @Security Bearer
// @Success 202 {object} httpx.SuccessResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/scans [post]
func (h *HTTPHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, err := h.orch.Scan(h.baseCtx)
	if err != nil {
		h.writeStartError(w, r, err)
		return
	}
	httpx.JSONAccepted(w, r, s.Last())
}

type ManualReq struct {
	ISBN string `json:"isbn" validate:"required,ean"`
}

// Manual handles POST /v1/scans/manual
// @Summary Catalog a typed ISBN
// @Description Skips the scanner and runs lookup and save for an ISBN typed by hand
// @Tags scans
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ManualReq true "ISBN"
// @Success 202 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/scans/manual [post]
func (h *HTTPHandler) Manual(w http.ResponseWriter, r *http.Request) {
	var req ManualReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	if validationErrors := httpx.ValidateStruct(req); len(validationErrors) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", validationErrors)
		return
	}
	id, err := barcode.ParseIdentifier(req.ISBN)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	s, err := h.orch.Resolve(h.baseCtx, id)
	if err != nil {
		h.writeStartError(w, r, err)
		return
	}
	httpx.JSONAccepted(w, r, s.Last())
}

// Cancel handles POST /v1/scans/cancel
// @Summary Cancel the scan
// @Description Only a scan still waiting for a barcode can be cancelled
// @Tags scans
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/scans/cancel [post]
func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.orch.Cancel() {
		httpx.JSONError(w, r, http.StatusConflict, "NOT_CANCELLABLE", "No scan is waiting for a barcode", nil)
		return
	}
	httpx.JSONSuccess(w, r, map[string]any{"cancelled": true}, nil)
}

// Current handles GET /v1/scans/current
// @Summary Current scan
// @Description Latest event of the running scan, or of the last one
// @Tags scans
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/scans/current [get]
func (h *HTTPHandler) Current(w http.ResponseWriter, r *http.Request) {
	s, ok := h.orch.Current()
	if !ok {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "No scan has been started", nil)
		return
	}
	httpx.JSONSuccess(w, r, s.Last(), map[string]any{"active": h.orch.Active()})
}

// Events handles GET /v1/scans/events
// @Summary Scan event stream
// @Description Server-sent events, one per state transition
// @Tags scans
// @Produce text/event-stream
// @Security Bearer
// @Router /v1/scans/events [get]
func (h *HTTPHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.JSONError(w, r, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming unsupported", nil)
		return
	}

	events, unsubscribe := h.events.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.State, data)
	return err
}

func (h *HTTPHandler) writeStartError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrSessionActive) {
		httpx.JSONError(w, r, http.StatusConflict, "SCAN_IN_PROGRESS", err.Error(), nil)
		return
	}
	httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}
