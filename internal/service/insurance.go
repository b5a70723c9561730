// insurance.go — операции чтения и добавления страховых случаев.
//
// InsuranceService обслуживает HTTP-слой: список ТС, проверка действия
// страховки на дату, добавление страхового случая, хронология ТС
// и журнал обработанных истечений. Работает параллельно со сканером
// и не пишет в журнал истечений.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/carinsurance/internal/domain/coverage"
	"github.com/bigkaa/carinsurance/internal/domain/history"
	"github.com/bigkaa/carinsurance/internal/domain/model"
	"github.com/bigkaa/carinsurance/internal/repository"
)

// maxClaimAmount — верхняя граница суммы для NUMERIC(14,2).
var maxClaimAmount = decimal.New(1, 12)

// InsuranceService — бизнес-логика ТС, полисов и страховых случаев.
type InsuranceService struct {
	vehicles    repository.VehicleRepository
	policies    repository.PolicyRepository
	claims      repository.ClaimRepository
	expirations repository.ExpirationLogRepository
	cache       *VehicleCache
	logger      *slog.Logger
}

// NewInsuranceService создаёт InsuranceService. cache может быть nil.
func NewInsuranceService(
	vehicles repository.VehicleRepository,
	policies repository.PolicyRepository,
	claims repository.ClaimRepository,
	expirations repository.ExpirationLogRepository,
	cache *VehicleCache,
	logger *slog.Logger,
) *InsuranceService {
	return &InsuranceService{
		vehicles:    vehicles,
		policies:    policies,
		claims:      claims,
		expirations: expirations,
		cache:       cache,
		logger:      logger.With(slog.String("component", "insurance_service")),
	}
}

// ListVehicles возвращает все ТС с данными владельцев.
func (s *InsuranceService) ListVehicles(ctx context.Context) ([]*model.VehicleSummary, error) {
	list, err := s.vehicles.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка ТС: %w", err)
	}
	if list == nil {
		list = []*model.VehicleSummary{}
	}
	return list, nil
}

// CheckValidity сообщает, действует ли страховка ТС на дату date (YYYY-MM-DD).
// Некорректная дата — ErrInvalidInput без обращения к хранилищу;
// неизвестное ТС — ErrNotFound.
func (s *InsuranceService) CheckValidity(ctx context.Context, vehicleID int64, date string) (*model.ValidityResult, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.ensureVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}

	policies, err := s.policies.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("получение полисов ТС %d: %w", vehicleID, err)
	}

	return &model.ValidityResult{
		VehicleID: vehicleID,
		Date:      d,
		Valid:     coverage.IsCovered(policies, d),
	}, nil
}

// AddClaim сохраняет страховой случай ТС.
// Описание обязательно, сумма неотрицательна и не точнее копеек.
func (s *InsuranceService) AddClaim(
	ctx context.Context,
	vehicleID int64,
	date model.Date,
	description string,
	amount decimal.Decimal,
) (*model.Claim, error) {
	if err := validateClaim(date, description, amount); err != nil {
		return nil, err
	}

	if err := s.ensureVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}

	claim := &model.Claim{
		VehicleID:   vehicleID,
		ClaimDate:   date,
		Description: strings.TrimSpace(description),
		Amount:      amount,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: ТС %d", ErrNotFound, vehicleID)
		}
		return nil, fmt.Errorf("создание страхового случая: %w", err)
	}

	s.logger.Info("Страховой случай добавлен",
		slog.Int64("claim_id", claim.ID),
		slog.Int64("vehicle_id", vehicleID),
		slog.String("claim_date", date.String()),
		slog.String("amount", amount.StringFixed(2)),
	)
	return claim, nil
}

// GetHistory возвращает хронологию полисов и страховых случаев ТС.
// Полисы и случаи загружаются параллельно.
func (s *InsuranceService) GetHistory(ctx context.Context, vehicleID int64) ([]model.HistoryEntry, error) {
	if err := s.ensureVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}

	var (
		policies []model.Policy
		claims   []model.Claim
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		policies, err = s.policies.ListByVehicle(gctx, vehicleID)
		if err != nil {
			return fmt.Errorf("получение полисов ТС %d: %w", vehicleID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		claims, err = s.claims.ListByVehicle(gctx, vehicleID)
		if err != nil {
			return fmt.Errorf("получение страховых случаев ТС %d: %w", vehicleID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return history.Merge(policies, claims), nil
}

// ListExpirations возвращает страницу журнала истечений и общее число записей.
func (s *InsuranceService) ListExpirations(ctx context.Context, limit, offset int) ([]*model.ExpirationLogEntry, int, error) {
	entries, err := s.expirations.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение журнала истечений: %w", err)
	}
	total, err := s.expirations.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт журнала истечений: %w", err)
	}
	if entries == nil {
		entries = []*model.ExpirationLogEntry{}
	}
	return entries, total, nil
}

// ensureVehicle возвращает ErrNotFound, если ТС не существует.
func (s *InsuranceService) ensureVehicle(ctx context.Context, vehicleID int64) error {
	if s.cache != nil && s.cache.Known(vehicleID) {
		return nil
	}

	exists, err := s.vehicles.Exists(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("проверка ТС %d: %w", vehicleID, err)
	}
	if !exists {
		return fmt.Errorf("%w: ТС %d", ErrNotFound, vehicleID)
	}

	if s.cache != nil {
		s.cache.Remember(vehicleID)
	}
	return nil
}

// validateClaim проверяет поля страхового случая.
func validateClaim(date model.Date, description string, amount decimal.Decimal) error {
	if date.IsZero() {
		return fmt.Errorf("%w: дата страхового случая обязательна", ErrInvalidInput)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: описание обязательно", ErrInvalidInput)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: сумма не может быть отрицательной", ErrInvalidInput)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: сумма допускает не более двух знаков после запятой", ErrInvalidInput)
	}
	if amount.GreaterThanOrEqual(maxClaimAmount) {
		return fmt.Errorf("%w: сумма превышает допустимый максимум", ErrInvalidInput)
	}
	return nil
}
