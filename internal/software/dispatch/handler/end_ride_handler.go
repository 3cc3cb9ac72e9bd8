package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"booth-dispatch/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type endRideRequest struct {
	DriverFare   int64   `json:"driver_fare"`
	NightCharge  int64   `json:"night_charge"`
	SurgeFactor  float64 `json:"surge_factor"`
	CustomerFare int64   `json:"customer_fare"`
}

// ----- Handler: POST /rides/{ride_id}/end -----

func (handler *RideHTTPHandler) handleEndRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing ride_id in path", nil)
		return
	}

	var req endRideRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	in := ports.EndRideInput{
		RideID:       rideID,
		DriverFare:   req.DriverFare,
		NightCharge:  req.NightCharge,
		SurgeFactor:  req.SurgeFactor,
		CustomerFare: req.CustomerFare,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handler.svc.EndRide(ctxWithTimeout, in); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]string{
		"ride_id": rideID,
		"message": "ride ended",
	})
}
