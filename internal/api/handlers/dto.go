// dto.go — JSON-представления запросов и ответов API.
// Даты передаются как YYYY-MM-DD, суммы — JSON-числа с двумя знаками.
package handlers

import (
	"encoding/json"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

type vehicleResponse struct {
	ID         int64   `json:"id"`
	VIN        string  `json:"vin"`
	Make       *string `json:"make"`
	Model      *string `json:"model"`
	Year       int     `json:"year"`
	OwnerID    int64   `json:"owner_id"`
	OwnerName  string  `json:"owner_name"`
	OwnerEmail *string `json:"owner_email"`
}

type validityResponse struct {
	VehicleID int64              `json:"vehicle_id"`
	Date      openapi_types.Date `json:"date"`
	Valid     bool               `json:"valid"`
}

type claimRequest struct {
	ClaimDate   openapi_types.Date `json:"claim_date"`
	Description string             `json:"description"`
	Amount      *decimal.Decimal   `json:"amount"`
}

type claimResponse struct {
	ID          int64              `json:"id"`
	VehicleID   int64              `json:"vehicle_id"`
	ClaimDate   openapi_types.Date `json:"claim_date"`
	Description string             `json:"description"`
	Amount      json.Number        `json:"amount"`
	CreatedAt   time.Time          `json:"created_at"`
}

type historyEntryResponse struct {
	Type        string              `json:"type"`
	StartDate   openapi_types.Date  `json:"start_date"`
	EndDate     *openapi_types.Date `json:"end_date"`
	Description *string             `json:"description"`
	Amount      *json.Number        `json:"amount"`
}

type expirationEntryResponse struct {
	ID       int64     `json:"id"`
	PolicyID int64     `json:"policy_id"`
	LoggedAt time.Time `json:"logged_at"`
}

type expirationListResponse struct {
	Items  []expirationEntryResponse `json:"items"`
	Total  int                       `json:"total"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

type scanResponse struct {
	ScanID        string    `json:"scan_id"`
	Now           time.Time `json:"now"`
	Candidates    int       `json:"candidates"`
	AlreadyLogged int       `json:"already_logged"`
	Notified      int       `json:"notified"`
	Recorded      int       `json:"recorded"`
	Failed        int       `json:"failed"`
	DurationMs    int64     `json:"duration_ms"`
}

// --- Конвертеры ---

func toAPIDate(d model.Date) openapi_types.Date {
	return openapi_types.Date{Time: d.Time()}
}

// fromAPIDate возвращает нулевую model.Date для отсутствующей даты.
func fromAPIDate(d openapi_types.Date) model.Date {
	if d.Time.IsZero() {
		return model.Date{}
	}
	return model.DateOf(d.Time)
}

func toAPIAmount(a decimal.Decimal) json.Number {
	return json.Number(a.StringFixed(2))
}

func toVehicleResponse(v *model.VehicleSummary) vehicleResponse {
	return vehicleResponse{
		ID:         v.ID,
		VIN:        v.VIN,
		Make:       v.Make,
		Model:      v.Model,
		Year:       v.Year,
		OwnerID:    v.OwnerID,
		OwnerName:  v.OwnerName,
		OwnerEmail: v.OwnerEmail,
	}
}

func toClaimResponse(c *model.Claim) claimResponse {
	return claimResponse{
		ID:          c.ID,
		VehicleID:   c.VehicleID,
		ClaimDate:   toAPIDate(c.ClaimDate),
		Description: c.Description,
		Amount:      toAPIAmount(c.Amount),
		CreatedAt:   c.CreatedAt,
	}
}

func toHistoryEntryResponse(e model.HistoryEntry) historyEntryResponse {
	resp := historyEntryResponse{
		Type:        string(e.Kind),
		StartDate:   toAPIDate(e.StartDate),
		Description: e.Description,
	}
	if e.EndDate != nil {
		end := toAPIDate(*e.EndDate)
		resp.EndDate = &end
	}
	if e.Amount != nil {
		amount := toAPIAmount(*e.Amount)
		resp.Amount = &amount
	}
	return resp
}

func toScanResponse(r *model.ScanResult) scanResponse {
	return scanResponse{
		ScanID:        r.ScanID,
		Now:           r.Now,
		Candidates:    r.Candidates,
		AlreadyLogged: r.AlreadyLogged,
		Notified:      r.Notified,
		Recorded:      r.Recorded,
		Failed:        r.Failed,
		DurationMs:    r.Duration.Milliseconds(),
	}
}
