package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bigkaa/carinsurance/internal/database"
	"github.com/bigkaa/carinsurance/internal/database/dbtest"
	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции и
// возвращает пул подключений.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg := dbtest.Start(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// seedVehicle вставляет владельца и ТС, возвращает id ТС.
func seedVehicle(t *testing.T, pool *pgxpool.Pool, vin string) int64 {
	t.Helper()
	ctx := context.Background()

	var ownerID, vehicleID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO owners (name, email) VALUES ('Иван Петров', 'ivan@example.com') RETURNING id`,
	).Scan(&ownerID); err != nil {
		t.Fatalf("INSERT owners: %v", err)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO vehicles (vin, make, model, year, owner_id) VALUES ($1, 'Lada', 'Vesta', 2021, $2) RETURNING id`,
		vin, ownerID,
	).Scan(&vehicleID); err != nil {
		t.Fatalf("INSERT vehicles: %v", err)
	}
	return vehicleID
}

// seedPolicy вставляет полис, возвращает его id.
func seedPolicy(t *testing.T, pool *pgxpool.Pool, vehicleID int64, start, end string) int64 {
	t.Helper()

	var id int64
	if err := pool.QueryRow(context.Background(),
		`INSERT INTO policies (vehicle_id, start_date, end_date, provider) VALUES ($1, $2::date, $3::date, 'Ингосстрах') RETURNING id`,
		vehicleID, start, end,
	).Scan(&id); err != nil {
		t.Fatalf("INSERT policies: %v", err)
	}
	return id
}

// --- VehicleRepository ---

func TestVehicleRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewVehicleRepository(pool)

	id := seedVehicle(t, pool, "XTA21900000000001")

	list, err := repo.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("ListSummaries() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListSummaries() вернул %d ТС, ожидали 1", len(list))
	}
	if list[0].ID != id || list[0].OwnerName != "Иван Петров" {
		t.Errorf("ListSummaries()[0] = %+v", list[0])
	}
	if list[0].Make == nil || *list[0].Make != "Lada" {
		t.Errorf("Make = %v, ожидали Lada", list[0].Make)
	}

	exists, err := repo.Exists(ctx, id)
	if err != nil || !exists {
		t.Errorf("Exists(%d) = %v, %v; ожидали true", id, exists, err)
	}
	exists, err = repo.Exists(ctx, id+1000)
	if err != nil || exists {
		t.Errorf("Exists(несуществующий) = %v, %v; ожидали false", exists, err)
	}
}

// --- PolicyRepository ---

func TestPolicyRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewPolicyRepository(pool)

	vehicleID := seedVehicle(t, pool, "XTA21900000000002")
	second := seedPolicy(t, pool, vehicleID, "2025-01-01", "2025-12-31")
	first := seedPolicy(t, pool, vehicleID, "2024-01-01", "2024-12-31")

	policies, err := repo.ListByVehicle(ctx, vehicleID)
	if err != nil {
		t.Fatalf("ListByVehicle() ошибка: %v", err)
	}
	if len(policies) != 2 || policies[0].ID != first || policies[1].ID != second {
		t.Fatalf("ListByVehicle() = %+v, ожидали [%d %d]", policies, first, second)
	}
	if got := policies[0].EndDate.String(); got != "2024-12-31" {
		t.Errorf("EndDate = %s, ожидали 2024-12-31", got)
	}

	// Границы диапазона включительны
	ending, err := repo.ListEndingBetween(ctx, model.NewDate(2024, 12, 30), model.NewDate(2024, 12, 31))
	if err != nil {
		t.Fatalf("ListEndingBetween() ошибка: %v", err)
	}
	if len(ending) != 1 || ending[0].ID != first {
		t.Errorf("ListEndingBetween() = %+v, ожидали полис %d", ending, first)
	}

	ending, err = repo.ListEndingBetween(ctx, model.NewDate(2025, 1, 1), model.NewDate(2025, 12, 30))
	if err != nil {
		t.Fatalf("ListEndingBetween() ошибка: %v", err)
	}
	if len(ending) != 0 {
		t.Errorf("ListEndingBetween() = %+v, ожидали пустой результат", ending)
	}
}

// --- ClaimRepository ---

func TestClaimRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewClaimRepository(pool)

	vehicleID := seedVehicle(t, pool, "XTA21900000000003")

	claim := &model.Claim{
		VehicleID:   vehicleID,
		ClaimDate:   model.NewDate(2024, 6, 15),
		Description: "Помято крыло",
		Amount:      decimal.RequireFromString("250.10"),
	}
	if err := repo.Create(ctx, claim); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if claim.ID == 0 || claim.CreatedAt.IsZero() {
		t.Errorf("ID/CreatedAt не заполнены: %+v", claim)
	}

	claims, err := repo.ListByVehicle(ctx, vehicleID)
	if err != nil {
		t.Fatalf("ListByVehicle() ошибка: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("ListByVehicle() вернул %d случаев, ожидали 1", len(claims))
	}
	if !claims[0].Amount.Equal(decimal.RequireFromString("250.1")) {
		t.Errorf("Amount = %s, ожидали 250.10", claims[0].Amount)
	}
	if claims[0].Amount.StringFixed(2) != "250.10" {
		t.Errorf("Amount.StringFixed(2) = %s", claims[0].Amount.StringFixed(2))
	}
	if claims[0].ClaimDate.String() != "2024-06-15" {
		t.Errorf("ClaimDate = %s", claims[0].ClaimDate)
	}

	// Несуществующее ТС
	err = repo.Create(ctx, &model.Claim{
		VehicleID:   vehicleID + 1000,
		ClaimDate:   model.NewDate(2024, 6, 15),
		Description: "x",
		Amount:      decimal.Zero,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Create() для несуществующего ТС: %v, ожидали ErrNotFound", err)
	}
}

// --- ExpirationStore ---

func TestExpirationStore(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewExpirationStore(NewPolicyRepository(pool), NewExpirationLogRepository(pool))
	logRepo := NewExpirationLogRepository(pool)

	vehicleID := seedVehicle(t, pool, "XTA21900000000004")
	expiredToday := seedPolicy(t, pool, vehicleID, "2024-01-01", "2024-12-31")
	seedPolicy(t, pool, vehicleID, "2024-01-01", "2024-12-29")

	// 00:30 UTC: окно в 1 час захватывает вчерашнюю и сегодняшнюю даты
	now := time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)
	candidates, err := store.FindExpiredSince(ctx, now, time.Hour)
	if err != nil {
		t.Fatalf("FindExpiredSince() ошибка: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != expiredToday {
		t.Fatalf("FindExpiredSince() = %+v, ожидали полис %d", candidates, expiredToday)
	}

	logged, err := store.HasLoggedExpiration(ctx, expiredToday)
	if err != nil || logged {
		t.Fatalf("HasLoggedExpiration() = %v, %v; ожидали false", logged, err)
	}

	entry, err := store.RecordExpiration(ctx, expiredToday, now)
	if err != nil {
		t.Fatalf("RecordExpiration() ошибка: %v", err)
	}
	if entry.PolicyID != expiredToday || !entry.LoggedAt.Equal(now) {
		t.Errorf("RecordExpiration() = %+v", entry)
	}

	logged, err = store.HasLoggedExpiration(ctx, expiredToday)
	if err != nil || !logged {
		t.Errorf("HasLoggedExpiration() после записи = %v, %v; ожидали true", logged, err)
	}

	// Повторная запись — конфликт уникальности
	if _, err := store.RecordExpiration(ctx, expiredToday, now); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный RecordExpiration(): %v, ожидали ErrConflict", err)
	}

	count, err := logRepo.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; ожидали 1", count, err)
	}
	entries, err := logRepo.List(ctx, 10, 0)
	if err != nil || len(entries) != 1 || entries[0].ID != entry.ID {
		t.Errorf("List() = %+v, %v", entries, err)
	}
}
