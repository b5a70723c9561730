// expiration_scanner.go — фоновый сканер истёкших полисов.
//
// Цикл сканера:
//  1. now = clock()
//  2. кандидаты = полисы с end_date в [дата(now - lookback), дата(now)]
//  3. для каждого кандидата по порядку: пропустить, если истечение уже
//     записано; иначе отправить уведомление и записать истечение с loggedAt = now
//  4. sleep(interval) и повторить
//
// Проверка и запись не атомарны: журнал пишет только один сканер на процесс.
// Уникальный индекс expiration_log.policy_id отсекает повторную запись,
// такой конфликт считается уже обработанным истечением.
//
// Ошибка уведомления оставляет кандидата незаписанным до следующего цикла.
// Ошибка записи после успешного уведомления тоже повторяется в следующем
// цикле, поэтому уведомление может быть отправлено повторно.
//
// Prometheus-метрики:
//   - im_expiration_scans_total — циклы сканирования (по результату)
//   - im_expiration_scan_duration_seconds — длительность цикла
//   - im_expiration_notifications_total — отправленные уведомления
//   - im_expiration_record_failures_total — неудачные записи в журнал
//   - im_expiration_candidates_skipped_total — кандидаты с уже записанным истечением
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/carinsurance/internal/domain/model"
	"github.com/bigkaa/carinsurance/internal/repository"
)

// Prometheus-метрики сканера истечений.
var (
	expirationScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "im_expiration_scans_total",
		Help: "Количество циклов сканирования истёкших полисов",
	}, []string{"result"}) // result: ok, error

	expirationScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "im_expiration_scan_duration_seconds",
		Help:    "Длительность цикла сканирования истёкших полисов",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	expirationNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_expiration_notifications_total",
		Help: "Количество отправленных уведомлений об истечении полисов",
	})

	expirationRecordFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_expiration_record_failures_total",
		Help: "Количество неудачных записей в журнал истечений",
	})

	expirationSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "im_expiration_candidates_skipped_total",
		Help: "Количество кандидатов, истечение которых уже записано",
	})
)

// ScannerState — состояние сканера.
type ScannerState int32

const (
	// StateIdle — ожидание следующего цикла.
	StateIdle ScannerState = iota
	// StateScanning — выборка кандидатов.
	StateScanning
	// StateChecking — проверка журнала для кандидата.
	StateChecking
	// StateNotifying — отправка уведомления.
	StateNotifying
	// StateRecording — запись в журнал.
	StateRecording
	// StateStopped — сканер остановлен отменой контекста.
	StateStopped
)

// String возвращает имя состояния для логов.
func (s ScannerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateChecking:
		return "checking"
	case StateNotifying:
		return "notifying"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ExpirationStore — хранилище кандидатов и журнала истечений.
type ExpirationStore interface {
	FindExpiredSince(ctx context.Context, now time.Time, window time.Duration) ([]model.Policy, error)
	HasLoggedExpiration(ctx context.Context, policyID int64) (bool, error)
	RecordExpiration(ctx context.Context, policyID int64, loggedAt time.Time) (*model.ExpirationLogEntry, error)
}

// Clock возвращает текущий момент времени.
type Clock func() time.Time

// SleepFunc ждёт d или отмены ctx. При отмене возвращает ошибку контекста.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ScannerOption настраивает ExpirationScanner.
type ScannerOption func(*ExpirationScanner)

// WithClock подменяет источник времени.
func WithClock(clock Clock) ScannerOption {
	return func(s *ExpirationScanner) { s.clock = clock }
}

// WithSleep подменяет ожидание между циклами.
func WithSleep(sleep SleepFunc) ScannerOption {
	return func(s *ExpirationScanner) { s.sleep = sleep }
}

// WithScanIDGenerator подменяет генератор идентификаторов цикла.
func WithScanIDGenerator(gen func() string) ScannerOption {
	return func(s *ExpirationScanner) { s.newScanID = gen }
}

// ExpirationScanner — фоновый сканер истёкших полисов.
type ExpirationScanner struct {
	store     ExpirationStore
	notifier  Notifier
	interval  time.Duration
	lookback  time.Duration
	clock     Clock
	sleep     SleepFunc
	newScanID func() string
	logger    *slog.Logger

	mu    sync.Mutex // циклы не перекрываются (фоновый цикл и ручной запуск)
	state atomic.Int32

	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpirationScanner создаёт сканер с интервалом interval и окном lookback.
func NewExpirationScanner(
	store ExpirationStore,
	notifier Notifier,
	interval time.Duration,
	lookback time.Duration,
	logger *slog.Logger,
	opts ...ScannerOption,
) *ExpirationScanner {
	s := &ExpirationScanner{
		store:     store,
		notifier:  notifier,
		interval:  interval,
		lookback:  lookback,
		clock:     time.Now,
		sleep:     sleepContext,
		newScanID: uuid.NewString,
		logger:    logger.With(slog.String("component", "expiration_scanner")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State возвращает текущее состояние сканера.
func (s *ExpirationScanner) State() ScannerState {
	return ScannerState(s.state.Load())
}

// Start запускает Run в фоновой горутине.
// Вызывается один раз при старте приложения.
func (s *ExpirationScanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Stop отменяет фоновую горутину и ждёт её завершения.
func (s *ExpirationScanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// Run выполняет циклы сканирования до отмены ctx. Первый цикл — сразу.
// Ошибки цикла логируются и не прерывают работу.
func (s *ExpirationScanner) Run(ctx context.Context) {
	s.logger.Info("Сканер истёкших полисов запущен",
		slog.String("interval", s.interval.String()),
		slog.String("lookback", s.lookback.String()),
	)

	for {
		if ctx.Err() != nil {
			break
		}

		if _, err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Ошибка цикла сканирования", slog.String("error", err.Error()))
		}

		if err := s.sleep(ctx, s.interval); err != nil {
			break
		}
	}

	s.state.Store(int32(StateStopped))
	s.logger.Info("Сканер истёкших полисов остановлен")
}

// ScanOnce выполняет один цикл сканирования.
// Потокобезопасен: параллельные вызовы выполняются по очереди.
// Ошибка возвращается, если не удалось получить кандидатов или цикл
// прерван отменой ctx; ошибки отдельных кандидатов учитываются в Failed.
func (s *ExpirationScanner) ScanOnce(ctx context.Context) (*model.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.setState(StateIdle)

	start := time.Now()
	now := s.clock()
	result := &model.ScanResult{ScanID: s.newScanID(), Now: now}
	logger := s.logger.With(slog.String("scan_id", result.ScanID))

	s.setState(StateScanning)
	candidates, err := s.store.FindExpiredSince(ctx, now, s.lookback)
	if err != nil {
		expirationScansTotal.WithLabelValues("error").Inc()
		return result, fmt.Errorf("выборка истёкших полисов: %w", err)
	}
	result.Candidates = len(candidates)

	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			expirationScansTotal.WithLabelValues("error").Inc()
			return result, err
		}
		s.processCandidate(ctx, logger, result, p)
	}
	if err := ctx.Err(); err != nil {
		expirationScansTotal.WithLabelValues("error").Inc()
		return result, err
	}

	result.Duration = time.Since(start)
	expirationScanDuration.Observe(result.Duration.Seconds())
	expirationScansTotal.WithLabelValues("ok").Inc()

	logger.Debug("Цикл сканирования завершён",
		slog.Int("candidates", result.Candidates),
		slog.Int("already_logged", result.AlreadyLogged),
		slog.Int("notified", result.Notified),
		slog.Int("recorded", result.Recorded),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// processCandidate проверяет, уведомляет и записывает один полис.
// Ошибки изолированы в пределах кандидата.
func (s *ExpirationScanner) processCandidate(ctx context.Context, logger *slog.Logger, result *model.ScanResult, p model.Policy) {
	logger = logger.With(slog.Int64("policy_id", p.ID))

	s.setState(StateChecking)
	logged, err := s.store.HasLoggedExpiration(ctx, p.ID)
	if err != nil {
		result.Failed++
		logger.Warn("Ошибка проверки журнала истечений", slog.String("error", err.Error()))
		return
	}
	if logged {
		result.AlreadyLogged++
		expirationSkippedTotal.Inc()
		return
	}

	s.setState(StateNotifying)
	notice := model.ExpirationNotice{
		ScanID:     result.ScanID,
		PolicyID:   p.ID,
		VehicleID:  p.VehicleID,
		EndDate:    p.EndDate,
		DetectedAt: result.Now,
	}
	if err := s.notifier.NotifyExpired(ctx, notice); err != nil {
		result.Failed++
		logger.Warn("Уведомление об истечении не отправлено", slog.String("error", err.Error()))
		return
	}
	result.Notified++
	expirationNotificationsTotal.Inc()

	// Уведомление уже отправлено: запись доводится до конца даже при отмене ctx,
	// иначе после рестарта полис будет уведомлён повторно.
	s.setState(StateRecording)
	if _, err := s.store.RecordExpiration(context.WithoutCancel(ctx), p.ID, result.Now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			result.AlreadyLogged++
			logger.Warn("Истечение уже записано другим процессом", slog.String("error", err.Error()))
			return
		}
		result.Failed++
		expirationRecordFailuresTotal.Inc()
		logger.Error("Ошибка записи истечения после уведомления", slog.String("error", err.Error()))
		return
	}
	result.Recorded++
}

// setState меняет состояние, кроме терминального StateStopped.
func (s *ExpirationScanner) setState(state ScannerState) {
	for {
		cur := s.state.Load()
		if ScannerState(cur) == StateStopped {
			return
		}
		if s.state.CompareAndSwap(cur, int32(state)) {
			return
		}
	}
}

// sleepContext ждёт d или отмены ctx.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
