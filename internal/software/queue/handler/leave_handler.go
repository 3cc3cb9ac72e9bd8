package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ----- Handler: DELETE /booths/{booth_id}/queue/{driver_id} -----

func (handler *QueueHTTPHandler) handleLeave(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	boothID := strings.TrimSpace(r.PathValue("booth_id"))
	driverID := strings.TrimSpace(r.PathValue("driver_id"))
	if boothID == "" || driverID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing booth_id or driver_id in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handler.svc.Leave(ctxWithTimeout, boothID, driverID); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]string{
		"booth_id":  boothID,
		"driver_id": driverID,
		"message":   "left booth queue",
	})
}
