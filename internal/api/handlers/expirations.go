package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/carinsurance/internal/api/errors"
	"github.com/bigkaa/carinsurance/internal/api/middleware"
)

// ListExpirations — GET /api/v1/expirations?limit=&offset=.
// Журнал зафиксированных истечений, новые записи первыми.
func (h *APIHandler) ListExpirations(w http.ResponseWriter, r *http.Request) {
	limitParam, err := intQueryParam(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	offsetParam, err := intQueryParam(r, "offset")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, offset := paginationDefaults(limitParam, offsetParam)

	entries, total, err := h.insurance.ListExpirations(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]expirationEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, expirationEntryResponse{
			ID:       e.ID,
			PolicyID: e.PolicyID,
			LoggedAt: e.LoggedAt,
		})
	}

	writeJSON(w, http.StatusOK, expirationListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// ScanEnabled сообщает, подключён ли сканер истечений.
// Без сканера маршрут ручного запуска не регистрируется.
func (h *APIHandler) ScanEnabled() bool {
	return h.scanner != nil
}

// TriggerScan — POST /api/v1/expirations/scan.
// Выполняет один цикл сканирования синхронно. Если фоновый цикл
// уже идёт, запрос дожидается его завершения.
func (h *APIHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "Ручной запуск сканирования",
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)

	result, err := h.scanner.ScanOnce(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toScanResponse(result))
}
