package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/carinsurance/internal/api/errors"
	"github.com/bigkaa/carinsurance/internal/api/middleware"
)

// ListVehicles — GET /api/v1/vehicles.
func (h *APIHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.insurance.ListVehicles(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]vehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		items = append(items, toVehicleResponse(v))
	}
	writeJSON(w, http.StatusOK, items)
}

// CheckValidity — GET /api/v1/vehicles/{vehicle_id}/insurance-valid?date=YYYY-MM-DD.
func (h *APIHandler) CheckValidity(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, err := h.insurance.CheckValidity(r.Context(), vehicleID, r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validityResponse{
		VehicleID: result.VehicleID,
		Date:      toAPIDate(result.Date),
		Valid:     result.Valid,
	})
}

// AddClaim — POST /api/v1/vehicles/{vehicle_id}/claims.
func (h *APIHandler) AddClaim(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	if req.Amount == nil {
		apierrors.ValidationError(w, "Поле amount обязательно")
		return
	}

	claim, err := h.insurance.AddClaim(r.Context(), vehicleID,
		fromAPIDate(req.ClaimDate), req.Description, *req.Amount)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Страховой случай зарегистрирован через API",
		slog.Int64("claim_id", claim.ID),
		slog.Int64("vehicle_id", vehicleID),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)
	writeJSON(w, http.StatusCreated, toClaimResponse(claim))
}

// GetHistory — GET /api/v1/vehicles/{vehicle_id}/history.
func (h *APIHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := vehicleIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	entries, err := h.insurance.GetHistory(r.Context(), vehicleID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toHistoryEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, items)
}
