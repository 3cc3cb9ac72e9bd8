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
	"booth-dispatch/internal/ports"
)

// AdminHTTPHandler adapts HTTP requests to the AdminService.
type AdminHTTPHandler struct {
	svc    ports.AdminService
	logger *logger.Logger
}

// NewAdminHTTPHandler wires an HTTP handler around the AdminService.
func NewAdminHTTPHandler(svc ports.AdminService, log *logger.Logger) *AdminHTTPHandler {
	return &AdminHTTPHandler{svc: svc, logger: log}
}

// RegisterRoutes mounts the read-only admin endpoints on the provided mux.
func (handler *AdminHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/booths/{booth_id}/queue", handler.handleQueueSnapshot)
	mux.HandleFunc("GET /admin/rides/{ride_id}", handler.handleRideStatus)
	mux.HandleFunc("GET /admin/drivers/{driver_id}/queue-state", handler.handleDriverQueueState)

	mux.HandleFunc("GET /admin/health", handler.handleHealth)
}

func (handler *AdminHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *AdminHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
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
func (handler *AdminHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError maps domain errors to HTTP status codes.
func (handler *AdminHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ride.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "ride not found", err)
	case errors.Is(err, driver.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "driver not found", err)
	case errors.Is(err, queue.ErrBoothRequired), errors.Is(err, ride.ErrRideIDRequired),
		errors.Is(err, driver.ErrDriverIDRequired):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctx, w, http.StatusInternalServerError, "admin query failed", err)
	}
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *AdminHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		var b [12]byte
		_, _ = rand.Read(b[:])
		reqID = hex.EncodeToString(b[:])
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
