package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/general/websocket"
	"booth-dispatch/internal/ports"
)

// QueueHTTPHandler adapts HTTP requests to the QueueService.
type QueueHTTPHandler struct {
	svc    ports.QueueService
	logger *logger.Logger
	hub    *websocket.Hub
}

// NewQueueHTTPHandler wires an HTTP handler around the QueueService.
func NewQueueHTTPHandler(svc ports.QueueService, log *logger.Logger, hub *websocket.Hub) *QueueHTTPHandler {
	return &QueueHTTPHandler{svc: svc, logger: log, hub: hub}
}

// RegisterRoutes mounts booth queue endpoints on the provided mux.
func (handler *QueueHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /booths/{booth_id}/queue", handler.handleJoin)
	mux.HandleFunc("DELETE /booths/{booth_id}/queue/{driver_id}", handler.handleLeave)
	mux.HandleFunc("GET /booths/{booth_id}/queue", handler.handleSnapshot)
	mux.HandleFunc("POST /booths/{booth_id}/queue/repair", handler.handleRepair)

	mux.HandleFunc("GET /ws/console", handler.hub.HandleConsole)

	mux.HandleFunc("GET /queue/health", handler.handleHealth)
}

func (handler *QueueHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]any{
		"status":   "ok",
		"consoles": handler.hub.ConsoleCount(),
	})
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *QueueHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *QueueHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError maps domain errors to HTTP status codes.
func (handler *QueueHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrAlreadyQueued):
		handler.httpError(ctx, w, http.StatusConflict, "driver is already queued", err)
	case errors.Is(err, driver.ErrOnActiveRide):
		handler.httpError(ctx, w, http.StatusConflict, "driver is on an active ride", err)
	case errors.Is(err, queue.ErrDriverMismatch):
		handler.httpError(ctx, w, http.StatusNotFound, "driver is not in this queue", err)
	case errors.Is(err, queue.ErrBoothRequired), errors.Is(err, queue.ErrDriverRequired),
		errors.Is(err, ride.ErrInvalidVehicleClass):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctx, w, http.StatusInternalServerError, "queue operation failed", err)
	}
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *QueueHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
