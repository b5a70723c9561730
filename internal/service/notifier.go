package service

import (
	"context"
	"log/slog"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// Notifier — получатель уведомлений об истечении полисов.
type Notifier interface {
	// NotifyExpired публикует уведомление. Ошибка означает, что уведомление
	// не доставлено и полис будет обработан в следующем цикле.
	NotifyExpired(ctx context.Context, notice model.ExpirationNotice) error
}

// LogNotifier публикует уведомления как структурированные записи лога.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "expiration_notifier"))}
}

// NotifyExpired пишет запись уровня INFO «Полис истёк».
func (n *LogNotifier) NotifyExpired(ctx context.Context, notice model.ExpirationNotice) error {
	n.logger.LogAttrs(ctx, slog.LevelInfo, "Полис истёк",
		slog.String("scan_id", notice.ScanID),
		slog.Int64("policy_id", notice.PolicyID),
		slog.Int64("vehicle_id", notice.VehicleID),
		slog.String("end_date", notice.EndDate.String()),
		slog.Time("detected_at", notice.DetectedAt),
	)
	return nil
}
