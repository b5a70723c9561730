package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

func newTestInsuranceService(db *memDB, cache *VehicleCache) *InsuranceService {
	return NewInsuranceService(
		fakeVehicles{db}, fakePolicies{db}, fakeClaims{db}, fakeExpirationLog{db},
		cache, testLogger(),
	)
}

// TestInsuranceService_Scenario — проверка действия, добавление случая, хронология.
func TestInsuranceService_Scenario(t *testing.T) {
	db := newMemDB()
	db.addVehicle(1)
	db.addPolicy(10, 1, model.NewDate(2024, 1, 1), model.NewDate(2024, 12, 31))
	svc := newTestInsuranceService(db, nil)
	ctx := context.Background()

	valid, err := svc.CheckValidity(ctx, 1, "2024-06-01")
	if err != nil {
		t.Fatalf("CheckValidity() ошибка: %v", err)
	}
	if !valid.Valid {
		t.Error("CheckValidity(2024-06-01) = false, ожидали true")
	}

	valid, err = svc.CheckValidity(ctx, 1, "2025-01-01")
	if err != nil {
		t.Fatalf("CheckValidity() ошибка: %v", err)
	}
	if valid.Valid {
		t.Error("CheckValidity(2025-01-01) = true, ожидали false")
	}

	claim, err := svc.AddClaim(ctx, 1, model.NewDate(2024, 3, 15), "fender", decimal.RequireFromString("250.00"))
	if err != nil {
		t.Fatalf("AddClaim() ошибка: %v", err)
	}
	if claim.ID == 0 || claim.VehicleID != 1 {
		t.Errorf("AddClaim() = %+v", claim)
	}

	entries, err := svc.GetHistory(ctx, 1)
	if err != nil {
		t.Fatalf("GetHistory() ошибка: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("GetHistory() вернул %d записей, ожидали 2", len(entries))
	}
	if entries[0].Kind != model.HistoryKindPolicy || entries[0].StartDate.String() != "2024-01-01" ||
		entries[0].EndDate == nil || entries[0].EndDate.String() != "2024-12-31" {
		t.Errorf("entries[0] = %+v, ожидали полис 2024-01-01..2024-12-31", entries[0])
	}
	if entries[1].Kind != model.HistoryKindClaim || entries[1].StartDate.String() != "2024-03-15" ||
		entries[1].Amount == nil || entries[1].Amount.StringFixed(2) != "250.00" {
		t.Errorf("entries[1] = %+v, ожидали случай 2024-03-15 на 250.00", entries[1])
	}
}

func TestCheckValidity_InvalidDateBeforeStoreAccess(t *testing.T) {
	for _, date := range []string{"", "2024-6-1", "01.06.2024", "2024-02-30", "2024-06-01T00:00:00Z", "abc"} {
		t.Run(date, func(t *testing.T) {
			db := newMemDB()
			svc := newTestInsuranceService(db, nil)

			_, err := svc.CheckValidity(context.Background(), 1, date)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("CheckValidity(%q) = %v, ожидали ErrInvalidInput", date, err)
			}
			if db.callCount() != 0 {
				t.Errorf("обращений к хранилищу %d, ожидали 0", db.callCount())
			}
		})
	}
}

func TestCheckValidity_UnknownVehicle(t *testing.T) {
	db := newMemDB()
	db.addVehicle(1)
	svc := newTestInsuranceService(db, nil)

	for _, date := range []string{"2024-01-01", "1999-12-31", "2100-06-15"} {
		if _, err := svc.CheckValidity(context.Background(), 999, date); !errors.Is(err, ErrNotFound) {
			t.Errorf("CheckValidity(999, %s) = %v, ожидали ErrNotFound", date, err)
		}
	}
}

func TestCheckValidity_NoPolicies(t *testing.T) {
	db := newMemDB()
	db.addVehicle(1)
	svc := newTestInsuranceService(db, nil)

	result, err := svc.CheckValidity(context.Background(), 1, "2024-06-01")
	if err != nil {
		t.Fatalf("CheckValidity() ошибка: %v", err)
	}
	if result.Valid || result.VehicleID != 1 || result.Date.String() != "2024-06-01" {
		t.Errorf("CheckValidity() = %+v", result)
	}
}

func TestAddClaim_Validation(t *testing.T) {
	tests := []struct {
		name        string
		date        model.Date
		description string
		amount      string
	}{
		{"нет даты", model.Date{}, "fender", "10.00"},
		{"пустое описание", model.NewDate(2024, 3, 15), "   ", "10.00"},
		{"отрицательная сумма", model.NewDate(2024, 3, 15), "fender", "-0.01"},
		{"три знака после запятой", model.NewDate(2024, 3, 15), "fender", "10.001"},
		{"слишком большая сумма", model.NewDate(2024, 3, 15), "fender", "1000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			db.addVehicle(1)
			svc := newTestInsuranceService(db, nil)

			_, err := svc.AddClaim(context.Background(), 1, tt.date, tt.description, decimal.RequireFromString(tt.amount))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("AddClaim() = %v, ожидали ErrInvalidInput", err)
			}
			if len(db.claims) != 0 {
				t.Errorf("случай сохранён несмотря на ошибку валидации")
			}
		})
	}
}

func TestAddClaim_ZeroAmountAllowed(t *testing.T) {
	db := newMemDB()
	db.addVehicle(1)
	svc := newTestInsuranceService(db, nil)

	claim, err := svc.AddClaim(context.Background(), 1, model.NewDate(2024, 3, 15), " осмотр ", decimal.Zero)
	if err != nil {
		t.Fatalf("AddClaim() ошибка: %v", err)
	}
	if claim.Description != "осмотр" {
		t.Errorf("Description = %q, ожидали обрезанное значение", claim.Description)
	}
}

func TestAddClaim_UnknownVehicle(t *testing.T) {
	svc := newTestInsuranceService(newMemDB(), nil)

	_, err := svc.AddClaim(context.Background(), 7, model.NewDate(2024, 3, 15), "fender", decimal.NewFromInt(1))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AddClaim() = %v, ожидали ErrNotFound", err)
	}
}

func TestAddClaim_RepositoryNotFoundMapped(t *testing.T) {
	// ТС есть в кэше, но хранилище отвергает вставку по внешнему ключу
	cache := NewVehicleCache(10, time.Minute)
	cache.Remember(7)
	svc := newTestInsuranceService(newMemDB(), cache)

	_, err := svc.AddClaim(context.Background(), 7, model.NewDate(2024, 3, 15), "fender", decimal.NewFromInt(1))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AddClaim() = %v, ожидали ErrNotFound", err)
	}
}

func TestGetHistory_UnknownVehicle(t *testing.T) {
	svc := newTestInsuranceService(newMemDB(), nil)

	if _, err := svc.GetHistory(context.Background(), 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetHistory() = %v, ожидали ErrNotFound", err)
	}
}

func TestGetHistory_StoreError(t *testing.T) {
	db := newMemDB()
	db.addVehicle(1)
	db.claimsErr = errors.New("connection reset")
	svc := newTestInsuranceService(db, nil)

	_, err := svc.GetHistory(context.Background(), 1)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("GetHistory() = %v, ожидали ошибку хранилища", err)
	}
}

func TestGetHistory_Empty(t *testing.T) {
	db := newMemDB()
	db.addVehicle(1)
	svc := newTestInsuranceService(db, nil)

	entries, err := svc.GetHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetHistory() ошибка: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("GetHistory() = %v, ожидали пустой срез", entries)
	}
}

func TestEnsureVehicle_UsesCache(t *testing.T) {
	db := newMemDB()
	db.addVehicle(1)
	svc := newTestInsuranceService(db, NewVehicleCache(10, time.Minute))
	ctx := context.Background()

	for range 3 {
		if _, err := svc.CheckValidity(ctx, 1, "2024-01-01"); err != nil {
			t.Fatalf("CheckValidity() ошибка: %v", err)
		}
	}
	if db.existsCalls != 1 {
		t.Errorf("проверок существования %d, ожидали 1", db.existsCalls)
	}

	// Отрицательные ответы не кэшируются
	for range 2 {
		_, _ = svc.CheckValidity(ctx, 2, "2024-01-01")
	}
	if db.existsCalls != 3 {
		t.Errorf("проверок существования %d, ожидали 3", db.existsCalls)
	}
}

func TestListVehicles(t *testing.T) {
	db := newMemDB()
	svc := newTestInsuranceService(db, nil)

	list, err := svc.ListVehicles(context.Background())
	if err != nil {
		t.Fatalf("ListVehicles() ошибка: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("ListVehicles() = %v, ожидали пустой срез", list)
	}

	db.addVehicle(1)
	db.addVehicle(2)
	list, err = svc.ListVehicles(context.Background())
	if err != nil {
		t.Fatalf("ListVehicles() ошибка: %v", err)
	}
	if len(list) != 2 || list[0].OwnerName != "Иван Петров" {
		t.Errorf("ListVehicles() = %+v", list)
	}
}

func TestListExpirations(t *testing.T) {
	db := newMemDB()
	logRepo := fakeExpirationLog{db}
	for id := int64(1); id <= 3; id++ {
		if _, err := logRepo.Create(context.Background(), id, time.Now()); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}
	svc := newTestInsuranceService(db, nil)

	entries, total, err := svc.ListExpirations(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("ListExpirations() ошибка: %v", err)
	}
	if total != 3 || len(entries) != 2 || entries[0].PolicyID != 2 {
		t.Errorf("ListExpirations() = %+v, total %d", entries, total)
	}

	entries, _, err = svc.ListExpirations(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("ListExpirations() ошибка: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("ListExpirations() за пределами = %v, ожидали пустой срез", entries)
	}
}
