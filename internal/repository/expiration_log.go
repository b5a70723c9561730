package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// ExpirationLogRepository — журнал обработанных истечений (expiration_log).
// Только добавление: записи не изменяются и не удаляются.
type ExpirationLogRepository interface {
	// Exists сообщает, есть ли запись для полиса.
	Exists(ctx context.Context, policyID int64) (bool, error)
	// Create добавляет запись. Повтор для того же полиса — ErrConflict.
	Create(ctx context.Context, policyID int64, loggedAt time.Time) (*model.ExpirationLogEntry, error)
	// List возвращает записи по убыванию logged_at с пагинацией.
	List(ctx context.Context, limit, offset int) ([]*model.ExpirationLogEntry, error)
	// Count возвращает общее количество записей.
	Count(ctx context.Context) (int, error)
}

// expirationLogRepo — реализация ExpirationLogRepository.
type expirationLogRepo struct {
	db DBTX
}

// NewExpirationLogRepository создаёт репозиторий журнала истечений.
func NewExpirationLogRepository(db DBTX) ExpirationLogRepository {
	return &expirationLogRepo{db: db}
}

func (r *expirationLogRepo) Exists(ctx context.Context, policyID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM expiration_log WHERE policy_id = $1)`, policyID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки журнала для полиса %d: %w", policyID, err)
	}
	return exists, nil
}

func (r *expirationLogRepo) Create(ctx context.Context, policyID int64, loggedAt time.Time) (*model.ExpirationLogEntry, error) {
	query := `
		INSERT INTO expiration_log (policy_id, logged_at)
		VALUES ($1, $2)
		RETURNING id, policy_id, logged_at`

	e := &model.ExpirationLogEntry{}
	err := r.db.QueryRow(ctx, query, policyID, loggedAt).Scan(&e.ID, &e.PolicyID, &e.LoggedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: истечение полиса %d уже записано", ErrConflict, policyID)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: полис %d", ErrNotFound, policyID)
		}
		return nil, fmt.Errorf("ошибка записи истечения полиса %d: %w", policyID, err)
	}
	return e, nil
}

func (r *expirationLogRepo) List(ctx context.Context, limit, offset int) ([]*model.ExpirationLogEntry, error) {
	query := `
		SELECT id, policy_id, logged_at
		FROM expiration_log
		ORDER BY logged_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала истечений: %w", err)
	}
	defer rows.Close()

	var result []*model.ExpirationLogEntry
	for rows.Next() {
		e := &model.ExpirationLogEntry{}
		if err := rows.Scan(&e.ID, &e.PolicyID, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации журнала: %w", err)
	}
	return result, nil
}

func (r *expirationLogRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM expiration_log`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей журнала: %w", err)
	}
	return count, nil
}
