// handler.go — основной обработчик API Insurance Module.
// Разбирает запросы, делегирует их в сервисный слой и формирует JSON-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apierrors "github.com/bigkaa/carinsurance/internal/api/errors"
	"github.com/bigkaa/carinsurance/internal/domain/model"
	"github.com/bigkaa/carinsurance/internal/service"
)

// InsuranceService — операции чтения и записи, доступные через API.
// Реализуется service.InsuranceService.
type InsuranceService interface {
	ListVehicles(ctx context.Context) ([]*model.VehicleSummary, error)
	CheckValidity(ctx context.Context, vehicleID int64, date string) (*model.ValidityResult, error)
	AddClaim(ctx context.Context, vehicleID int64, date model.Date, description string, amount decimal.Decimal) (*model.Claim, error)
	GetHistory(ctx context.Context, vehicleID int64) ([]model.HistoryEntry, error)
	ListExpirations(ctx context.Context, limit, offset int) ([]*model.ExpirationLogEntry, int, error)
}

// ExpirationScanner — ручной запуск цикла сканирования.
// Реализуется service.ExpirationScanner.
type ExpirationScanner interface {
	ScanOnce(ctx context.Context) (*model.ScanResult, error)
}

// APIHandler — обработчик /api/v1.
type APIHandler struct {
	insurance InsuranceService
	scanner   ExpirationScanner
	logger    *slog.Logger
}

// NewAPIHandler создаёт обработчик API. scanner может быть nil,
// тогда маршрут ручного запуска сканирования не регистрируется.
func NewAPIHandler(insurance InsuranceService, scanner ExpirationScanner, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		insurance: insurance,
		scanner:   scanner,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются, клиент получает обезличенный 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// vehicleIDParam извлекает положительный vehicle_id из пути.
func vehicleIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "vehicle_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный vehicle_id %q: ожидается положительное целое число", raw)
	}
	return id, nil
}

// intQueryParam разбирает необязательный целочисленный query-параметр.
func intQueryParam(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("некорректный параметр %s %q: ожидается целое число", name, raw)
	}
	return &n, nil
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = min(max(*limit, 1), 1000)
	}
	if offset != nil {
		o = max(*offset, 0)
	}

	return l, o
}
