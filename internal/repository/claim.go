package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// ClaimRepository — таблица claims.
type ClaimRepository interface {
	// Create сохраняет страховой случай и заполняет ID и CreatedAt.
	// Для несуществующего ТС возвращает ErrNotFound.
	Create(ctx context.Context, c *model.Claim) error
	// ListByVehicle возвращает случаи ТС по возрастанию (claim_date, id).
	ListByVehicle(ctx context.Context, vehicleID int64) ([]model.Claim, error)
}

// claimRepo — реализация ClaimRepository.
type claimRepo struct {
	db DBTX
}

// NewClaimRepository создаёт репозиторий страховых случаев.
func NewClaimRepository(db DBTX) ClaimRepository {
	return &claimRepo{db: db}
}

// Сумма передаётся и читается как текст, чтобы NUMERIC не проходил через float.
func (r *claimRepo) Create(ctx context.Context, c *model.Claim) error {
	query := `
		INSERT INTO claims (vehicle_id, claim_date, description, amount)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		c.VehicleID, dateArg(c.ClaimDate), c.Description, c.Amount.String(),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: ТС %d", ErrNotFound, c.VehicleID)
		}
		return fmt.Errorf("ошибка создания страхового случая: %w", err)
	}
	return nil
}

func (r *claimRepo) ListByVehicle(ctx context.Context, vehicleID int64) ([]model.Claim, error) {
	query := `
		SELECT id, vehicle_id, claim_date, description, amount::text, created_at
		FROM claims
		WHERE vehicle_id = $1
		ORDER BY claim_date, id`

	rows, err := r.db.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения страховых случаев ТС %d: %w", vehicleID, err)
	}
	defer rows.Close()

	var result []model.Claim
	for rows.Next() {
		var (
			c         model.Claim
			claimDate time.Time
			amount    string
		)
		if err := rows.Scan(&c.ID, &c.VehicleID, &claimDate, &c.Description, &amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования страхового случая: %w", err)
		}
		c.ClaimDate = model.DateOf(claimDate)
		c.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("некорректная сумма %q в случае %d: %w", amount, c.ID, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации страховых случаев: %w", err)
	}
	return result, nil
}
