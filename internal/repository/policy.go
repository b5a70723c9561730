package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// PolicyRepository — чтение таблицы policies.
type PolicyRepository interface {
	// ListByVehicle возвращает полисы ТС по возрастанию (start_date, id).
	ListByVehicle(ctx context.Context, vehicleID int64) ([]model.Policy, error)
	// ListEndingBetween возвращает полисы с end_date в [from, to]
	// по возрастанию (end_date, id).
	ListEndingBetween(ctx context.Context, from, to model.Date) ([]model.Policy, error)
}

// policyRepo — реализация PolicyRepository.
type policyRepo struct {
	db DBTX
}

// NewPolicyRepository создаёт репозиторий полисов.
func NewPolicyRepository(db DBTX) PolicyRepository {
	return &policyRepo{db: db}
}

const policyColumns = `id, vehicle_id, start_date, end_date, provider`

func (r *policyRepo) ListByVehicle(ctx context.Context, vehicleID int64) ([]model.Policy, error) {
	query := `SELECT ` + policyColumns + `
		FROM policies
		WHERE vehicle_id = $1
		ORDER BY start_date, id`

	rows, err := r.db.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения полисов ТС %d: %w", vehicleID, err)
	}
	return scanPolicies(rows)
}

func (r *policyRepo) ListEndingBetween(ctx context.Context, from, to model.Date) ([]model.Policy, error) {
	query := `SELECT ` + policyColumns + `
		FROM policies
		WHERE end_date >= $1 AND end_date <= $2
		ORDER BY end_date, id`

	rows, err := r.db.Query(ctx, query, dateArg(from), dateArg(to))
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки истекающих полисов: %w", err)
	}
	return scanPolicies(rows)
}

// scanPolicies сканирует строки полисов и закрывает rows.
func scanPolicies(rows pgx.Rows) ([]model.Policy, error) {
	defer rows.Close()

	var result []model.Policy
	for rows.Next() {
		var (
			p          model.Policy
			start, end time.Time
		)
		if err := rows.Scan(&p.ID, &p.VehicleID, &start, &end, &p.Provider); err != nil {
			return nil, fmt.Errorf("ошибка сканирования полиса: %w", err)
		}
		p.StartDate = model.DateOf(start)
		p.EndDate = model.DateOf(end)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации полисов: %w", err)
	}
	return result, nil
}
