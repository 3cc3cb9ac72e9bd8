package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ----- Handler: GET /admin/booths/{booth_id}/queue -----

func (handler *AdminHTTPHandler) handleQueueSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	boothID := strings.TrimSpace(r.PathValue("booth_id"))
	if boothID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing booth_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q, err := handler.svc.GetQueueSnapshot(ctxWithTimeout, boothID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"booth_id": q.BoothID,
		"date":     q.Date,
		"version":  q.Version,
		"entries":  q.Snapshot(),
	})
}

// ----- Handler: GET /admin/rides/{ride_id} -----

func (handler *AdminHTTPHandler) handleRideStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing ride_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ride, err := handler.svc.GetRideStatus(ctxWithTimeout, rideID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"ride_id":           ride.ID,
		"ride_number":       ride.RideNumber,
		"status":            ride.Status.String(),
		"pickup_booth":      ride.PickupBooth,
		"vehicle_class":     ride.VehicleClass.String(),
		"driver_id":         ride.DriverID,
		"event_seq":         ride.EventSeq,
		"fare":              ride.Fare,
		"payment_status":    ride.PaymentStatus.String(),
		"fare_needs_review": ride.FareNeedsReview,
		"requested_at":      ride.RequestedAt,
		"assigned_at":       ride.AssignedAt,
		"started_at":        ride.StartedAt,
		"ended_at":          ride.EndedAt,
		"completed_at":      ride.CompletedAt,
		"cancelled_at":      ride.CancelledAt,
	})
}

// ----- Handler: GET /admin/drivers/{driver_id}/queue-state -----

func (handler *AdminHTTPHandler) handleDriverQueueState(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID := strings.TrimSpace(r.PathValue("driver_id"))
	if driverID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing driver_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	state, err := handler.svc.GetDriverQueueState(ctxWithTimeout, driverID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, state)
}
