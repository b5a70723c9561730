package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// VehicleRepository — чтение таблицы vehicles.
// Запись ТС и владельцев выполняется вне сервиса.
type VehicleRepository interface {
	// ListSummaries возвращает все ТС с данными владельца, по возрастанию id.
	ListSummaries(ctx context.Context) ([]*model.VehicleSummary, error)
	// Exists сообщает, есть ли ТС с данным id.
	Exists(ctx context.Context, id int64) (bool, error)
}

// vehicleRepo — реализация VehicleRepository.
type vehicleRepo struct {
	db DBTX
}

// NewVehicleRepository создаёт репозиторий ТС.
func NewVehicleRepository(db DBTX) VehicleRepository {
	return &vehicleRepo{db: db}
}

func (r *vehicleRepo) ListSummaries(ctx context.Context) ([]*model.VehicleSummary, error) {
	query := `
		SELECT v.id, v.vin, v.make, v.model, v.year, v.owner_id, o.name, o.email
		FROM vehicles v
		JOIN owners o ON o.id = v.owner_id
		ORDER BY v.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ТС: %w", err)
	}
	defer rows.Close()

	var result []*model.VehicleSummary
	for rows.Next() {
		v := &model.VehicleSummary{}
		if err := rows.Scan(
			&v.ID, &v.VIN, &v.Make, &v.Model, &v.Year, &v.OwnerID, &v.OwnerName, &v.OwnerEmail,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ТС: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации ТС: %w", err)
	}
	return result, nil
}

func (r *vehicleRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки ТС %d: %w", id, err)
	}
	return exists, nil
}
