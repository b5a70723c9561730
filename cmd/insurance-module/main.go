// Точка входа Insurance Module — сервис страхования автомобилей.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт сервисный слой и API handlers, запускает сканер истёкших полисов
// и мониторинг зависимостей, HTTP-сервер с опциональной JWT-аутентификацией
// и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/carinsurance/internal/api/handlers"
	"github.com/bigkaa/carinsurance/internal/api/middleware"
	"github.com/bigkaa/carinsurance/internal/config"
	"github.com/bigkaa/carinsurance/internal/database"
	"github.com/bigkaa/carinsurance/internal/notify"
	"github.com/bigkaa/carinsurance/internal/repository"
	"github.com/bigkaa/carinsurance/internal/server"
	"github.com/bigkaa/carinsurance/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Insurance Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("IM_DEPHEALTH_GROUP") == "" {
		logger.Warn("IM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	vehicleRepo := repository.NewVehicleRepository(pool)
	policyRepo := repository.NewPolicyRepository(pool)
	claimRepo := repository.NewClaimRepository(pool)
	expirationLogRepo := repository.NewExpirationLogRepository(pool)
	expirationStore := repository.NewExpirationStore(policyRepo, expirationLogRepo)

	// 6. Services
	vehicleCache := service.NewVehicleCache(cfg.VehicleCacheSize, cfg.VehicleCacheTTL)
	insuranceSvc := service.NewInsuranceService(
		vehicleRepo, policyRepo, claimRepo, expirationLogRepo,
		vehicleCache,
		logger,
	)

	// 7. Сканер истёкших полисов
	var scanner *service.ExpirationScanner
	var apiScanner handlers.ExpirationScanner
	if cfg.ExpirationScanEnabled {
		notifier, err := buildNotifier(cfg, logger)
		if err != nil {
			logger.Error("Ошибка создания webhook notifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		scanner = service.NewExpirationScanner(
			expirationStore,
			notifier,
			cfg.ExpirationScanInterval,
			cfg.ExpirationLookback,
			logger,
		)
		apiScanner = scanner
	} else {
		logger.Info("Сканер истёкших полисов отключён (IM_EXPIRATION_SCAN_ENABLED=false)")
	}

	// 8. Readiness checkers
	checkers := []handlers.ReadinessChecker{database.NewReadinessChecker(pool)}

	// 9. JWT middleware (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWTJWKSURL,
			CACertPath:      cfg.CACertPath,
			Issuer:          cfg.JWTIssuer,
			AdminGroups:     cfg.RoleAdminGroups,
			ReadonlyGroups:  cfg.RoleReadonlyGroups,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)

		jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, 5*time.Second)
		if err != nil {
			logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		checkers = append(checkers, jwksChecker)
	} else {
		logger.Warn("IM_JWT_JWKS_URL не задан, API доступен без аутентификации")
	}

	healthHandler := handlers.NewHealthHandler(checkers...)
	apiHandler := handlers.NewAPIHandler(insuranceSvc, apiScanner, logger)

	// 10. Запуск фоновых задач
	if scanner != nil {
		scanner.Start(ctx)
	}

	// 10.1 topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "insurance-module",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, healthHandler, jwtAuth)
	runErr := srv.Run(ctx)

	// 12. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if scanner != nil {
		scanner.Stop()
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Insurance Module остановлен")
}

// buildNotifier выбирает канал уведомлений об истечении: webhook,
// если задан IM_NOTIFY_WEBHOOK_URL, иначе структурированный лог.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (service.Notifier, error) {
	if cfg.NotifyWebhookURL == "" {
		return service.NewLogNotifier(logger), nil
	}

	httpClient, err := notify.NewHTTPClient(cfg.CACertPath, cfg.NotifyTimeout)
	if err != nil {
		return nil, err
	}

	var tokenProvider notify.TokenProvider
	if cfg.NotifyTokenURL != "" {
		cc := notify.NewClientCredentials(cfg.NotifyTokenURL, cfg.NotifyClientID, cfg.NotifyClientSecret, httpClient, logger)
		tokenProvider = cc.Token
	}

	logger.Info("Уведомления об истечении отправляются в webhook",
		slog.String("url", cfg.NotifyWebhookURL),
		slog.Bool("authorized", tokenProvider != nil),
	)
	return notify.NewWebhookNotifier(cfg.NotifyWebhookURL, httpClient, tokenProvider, logger), nil
}
