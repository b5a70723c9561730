package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bigkaa/carinsurance/internal/domain/model"
	"github.com/bigkaa/carinsurance/internal/repository"
)

// memDB — in-memory хранилище для тестов сервисного слоя.
// Как и pgx, отклоняет обращения с отменённым ctx.
// Реализует репозитории через обёртки fakeVehicles, fakePolicies,
// fakeClaims и fakeExpirationLog.
type memDB struct {
	mu       sync.Mutex
	vehicles []*model.VehicleSummary
	policies []model.Policy
	claims   []model.Claim
	log      []*model.ExpirationLogEntry
	nextID   int64

	// calls — общее число обращений к хранилищу
	calls int
	// existsCalls — число проверок существования ТС
	existsCalls int

	// Внедрение ошибок
	listEndingErr error
	existsLogErr  error
	createLogErrs int // сколько следующих Create журнала завершатся ошибкой
	claimsErr     error
}

func newMemDB() *memDB {
	return &memDB{nextID: 100}
}

func (db *memDB) addVehicle(id int64) {
	db.vehicles = append(db.vehicles, &model.VehicleSummary{
		ID: id, VIN: fmt.Sprintf("VIN%014d", id), Year: 2020, OwnerID: 1, OwnerName: "Иван Петров",
	})
}

func (db *memDB) addPolicy(id, vehicleID int64, start, end model.Date) {
	db.policies = append(db.policies, model.Policy{ID: id, VehicleID: vehicleID, StartDate: start, EndDate: end})
}

func (db *memDB) logCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.log)
}

func (db *memDB) callCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.calls
}

// --- VehicleRepository ---

type fakeVehicles struct{ *memDB }

func (f fakeVehicles) ListSummaries(ctx context.Context) ([]*model.VehicleSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(f.vehicles), nil
}

func (f fakeVehicles) Exists(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.existsCalls++
	for _, v := range f.vehicles {
		if v.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// --- PolicyRepository ---

type fakePolicies struct{ *memDB }

func (f fakePolicies) ListByVehicle(ctx context.Context, vehicleID int64) ([]model.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result []model.Policy
	for _, p := range f.policies {
		if p.VehicleID == vehicleID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (f fakePolicies) ListEndingBetween(ctx context.Context, from, to model.Date) ([]model.Policy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.listEndingErr != nil {
		return nil, f.listEndingErr
	}
	var result []model.Policy
	for _, p := range f.policies {
		if !p.EndDate.Before(from) && !p.EndDate.After(to) {
			result = append(result, p)
		}
	}
	return result, nil
}

// --- ClaimRepository ---

type fakeClaims struct{ *memDB }

func (f fakeClaims) Create(ctx context.Context, c *model.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.claimsErr != nil {
		return f.claimsErr
	}
	if !slices.ContainsFunc(f.vehicles, func(v *model.VehicleSummary) bool { return v.ID == c.VehicleID }) {
		return fmt.Errorf("%w: ТС %d", repository.ErrNotFound, c.VehicleID)
	}
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	f.claims = append(f.claims, *c)
	return nil
}

func (f fakeClaims) ListByVehicle(ctx context.Context, vehicleID int64) ([]model.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.claimsErr != nil {
		return nil, f.claimsErr
	}
	var result []model.Claim
	for _, c := range f.claims {
		if c.VehicleID == vehicleID {
			result = append(result, c)
		}
	}
	return result, nil
}

// --- ExpirationLogRepository ---

type fakeExpirationLog struct{ *memDB }

func (f fakeExpirationLog) Exists(ctx context.Context, policyID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.existsLogErr != nil {
		return false, f.existsLogErr
	}
	return slices.ContainsFunc(f.log, func(e *model.ExpirationLogEntry) bool { return e.PolicyID == policyID }), nil
}

func (f fakeExpirationLog) Create(ctx context.Context, policyID int64, loggedAt time.Time) (*model.ExpirationLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.createLogErrs > 0 {
		f.createLogErrs--
		return nil, errors.New("connection reset by peer")
	}
	if slices.ContainsFunc(f.log, func(e *model.ExpirationLogEntry) bool { return e.PolicyID == policyID }) {
		return nil, fmt.Errorf("%w: полис %d", repository.ErrConflict, policyID)
	}
	e := &model.ExpirationLogEntry{ID: int64(len(f.log) + 1), PolicyID: policyID, LoggedAt: loggedAt}
	f.log = append(f.log, e)
	return e, nil
}

func (f fakeExpirationLog) List(ctx context.Context, limit, offset int) ([]*model.ExpirationLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset >= len(f.log) {
		return nil, nil
	}
	end := min(offset+limit, len(f.log))
	return slices.Clone(f.log[offset:end]), nil
}

func (f fakeExpirationLog) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(f.log), nil
}

// newExpirationStore собирает настоящий repository.ExpirationStore поверх memDB.
func newExpirationStore(db *memDB) *repository.ExpirationStore {
	return repository.NewExpirationStore(fakePolicies{db}, fakeExpirationLog{db})
}

// fakeNotifier запоминает уведомления.
type fakeNotifier struct {
	mu      sync.Mutex
	notices []model.ExpirationNotice
	// failures — сколько следующих уведомлений завершатся ошибкой
	failures int
	// onNotify вызывается после успешного уведомления
	onNotify func()
}

func (n *fakeNotifier) NotifyExpired(ctx context.Context, notice model.ExpirationNotice) error {
	n.mu.Lock()
	if n.failures > 0 {
		n.failures--
		n.mu.Unlock()
		return errors.New("брокер недоступен")
	}
	n.notices = append(n.notices, notice)
	hook := n.onNotify
	n.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}
