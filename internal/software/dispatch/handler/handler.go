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

	"booth-dispatch/internal/domain/fare"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/ports"
)

// RideHTTPHandler adapts HTTP requests to the DispatchService.
type RideHTTPHandler struct {
	svc    ports.DispatchService
	logger *logger.Logger
}

// NewRideHTTPHandler wires an HTTP handler around the DispatchService.
func NewRideHTTPHandler(svc ports.DispatchService, log *logger.Logger) *RideHTTPHandler {
	return &RideHTTPHandler{svc: svc, logger: log}
}

// RegisterRoutes mounts ride lifecycle endpoints on the provided mux.
func (handler *RideHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rides", handler.handleRequestRide)
	mux.HandleFunc("POST /rides/{ride_id}/start", handler.handleStartRide)
	mux.HandleFunc("POST /rides/{ride_id}/end", handler.handleEndRide)
	mux.HandleFunc("POST /rides/{ride_id}/complete", handler.handleCompletePayment)
	mux.HandleFunc("POST /rides/{ride_id}/cancel", handler.handleCancelRide)

	mux.HandleFunc("GET /rides/health", handler.handleHealth)
}

func (handler *RideHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *RideHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
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
func (handler *RideHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
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
func (handler *RideHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ride.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "ride not found", err)
	case errors.Is(err, ride.ErrInvalidStatusTransition):
		handler.httpError(ctx, w, http.StatusConflict, "ride is not in a state that allows this transition", err)
	case errors.Is(err, ride.ErrBoothRequired), errors.Is(err, ride.ErrRideIDRequired),
		errors.Is(err, ride.ErrInvalidVehicleClass),
		errors.Is(err, fare.ErrNegativeAmount), errors.Is(err, fare.ErrBadSurgeFactor):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctx, w, http.StatusInternalServerError, "ride operation failed", err)
	}
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *RideHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
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
