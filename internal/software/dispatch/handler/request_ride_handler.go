package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type requestRideRequest struct {
	PickupBooth  string `json:"pickup_booth"`
	VehicleClass string `json:"vehicle_class"`
}

// ----- Handler: POST /rides -----

func (handler *RideHTTPHandler) handleRequestRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	var req requestRideRequest
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

	if strings.TrimSpace(req.PickupBooth) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "pickup_booth is required", nil)
		return
	}
	class, err := ride.ParseVehicleClass(req.VehicleClass)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid vehicle_class", err)
		return
	}

	in := ports.RequestRideInput{
		PickupBooth:  req.PickupBooth,
		VehicleClass: class,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.RequestRide(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, res)
}
