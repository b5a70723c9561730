package repository

import (
	"context"
	"time"

	"github.com/bigkaa/carinsurance/internal/domain/coverage"
	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// ExpirationStore — хранилище, с которым работает сканер истечений:
// поиск кандидатов и журнал уже обработанных полисов.
type ExpirationStore struct {
	policies PolicyRepository
	log      ExpirationLogRepository
}

// NewExpirationStore создаёт ExpirationStore поверх репозиториев полисов и журнала.
func NewExpirationStore(policies PolicyRepository, log ExpirationLogRepository) *ExpirationStore {
	return &ExpirationStore{policies: policies, log: log}
}

// FindExpiredSince возвращает полисы, у которых end_date попадает в
// [дата(now - window), дата(now)] (UTC). Порядок: (end_date, id).
func (s *ExpirationStore) FindExpiredSince(ctx context.Context, now time.Time, window time.Duration) ([]model.Policy, error) {
	from, to := coverage.ExpiryWindow(now, window)
	return s.policies.ListEndingBetween(ctx, from, to)
}

// HasLoggedExpiration сообщает, записано ли уже истечение полиса.
func (s *ExpirationStore) HasLoggedExpiration(ctx context.Context, policyID int64) (bool, error) {
	return s.log.Exists(ctx, policyID)
}

// RecordExpiration добавляет запись в журнал. Повтор — ErrConflict.
func (s *ExpirationStore) RecordExpiration(ctx context.Context, policyID int64, loggedAt time.Time) (*model.ExpirationLogEntry, error) {
	return s.log.Create(ctx, policyID, loggedAt)
}
