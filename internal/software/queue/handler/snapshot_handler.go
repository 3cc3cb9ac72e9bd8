package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ----- Handler: GET /booths/{booth_id}/queue -----

func (handler *QueueHTTPHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	boothID := strings.TrimSpace(r.PathValue("booth_id"))
	if boothID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing booth_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q, err := handler.svc.Snapshot(ctxWithTimeout, boothID)
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

// ----- Handler: POST /booths/{booth_id}/queue/repair -----

func (handler *QueueHTTPHandler) handleRepair(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	boothID := strings.TrimSpace(r.PathValue("booth_id"))
	if boothID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing booth_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := handler.svc.Repair(ctxWithTimeout, boothID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
