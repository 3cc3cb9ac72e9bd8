package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ----- Handler: POST /rides/{ride_id}/start -----

func (handler *RideHTTPHandler) handleStartRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing ride_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handler.svc.StartRide(ctxWithTimeout, rideID); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]string{
		"ride_id": rideID,
		"message": "ride started",
	})
}

// ----- Handler: POST /rides/{ride_id}/complete -----

func (handler *RideHTTPHandler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing ride_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handler.svc.CompletePayment(ctxWithTimeout, rideID); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]string{
		"ride_id": rideID,
		"message": "ride payment completed",
	})
}

// --- Request DTO (HTTP boundary) ---

type cancelRideRequest struct {
	Reason string `json:"reason"`
}

// ----- Handler: POST /rides/{ride_id}/cancel -----

func (handler *RideHTTPHandler) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing ride_id in path", nil)
		return
	}

	// body is optional for cancellation
	var req cancelRideRequest
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handler.svc.CancelRide(ctxWithTimeout, rideID, req.Reason); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]string{
		"ride_id": rideID,
		"message": "ride cancelled",
	})
}
