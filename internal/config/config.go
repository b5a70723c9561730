// Пакет config — загрузка и валидация конфигурации Insurance Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Insurance Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Сканер истёкших полисов ---

	// Включён ли фоновый сканер
	ExpirationScanEnabled bool
	// Пауза между циклами сканирования
	ExpirationScanInterval time.Duration
	// Окно просмотра назад для выбора только что истёкших полисов
	ExpirationLookback time.Duration

	// --- Webhook уведомлений об истечении (опционально) ---

	// URL webhook; пустое значение — уведомления только в лог
	NotifyWebhookURL string
	// Таймаут одного запроса к webhook
	NotifyTimeout time.Duration
	// Token endpoint IdP для Client Credentials flow (опционально)
	NotifyTokenURL string
	// Client ID и Client Secret для получения токена
	NotifyClientID     string
	NotifyClientSecret string

	// --- Кэш существования ТС ---

	// Максимальное количество записей
	VehicleCacheSize int
	// Время жизни записи
	VehicleCacheTTL time.Duration

	// --- JWT (опционально) ---

	// URL JWKS endpoint; пустое значение отключает аутентификацию
	JWTJWKSURL string
	// Ожидаемый issuer (опционально)
	JWTIssuer string
	// Интервал обновления ключей JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Путь к CA-сертификату для TLS-соединения с JWKS (опционально)
	CACertPath string
	// Группы IdP, дающие роль admin
	RoleAdminGroups []string
	// Группы IdP, дающие роль readonly
	RoleReadonlyGroups []string

	// --- topologymetrics ---

	// Имя группы в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// IM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("IM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("IM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("IM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// IM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("IM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("IM_LOG_LEVEL: %w", err)
	}

	// IM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("IM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("IM_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("IM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("IM_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("IM_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("IM_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("IM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("IM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("IM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Сканер истёкших полисов ---

	// IM_EXPIRATION_SCAN_ENABLED — включить фоновый сканер (по умолчанию true)
	cfg.ExpirationScanEnabled, err = getEnvBool("IM_EXPIRATION_SCAN_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("IM_EXPIRATION_SCAN_ENABLED: %w", err)
	}

	// IM_EXPIRATION_SCAN_INTERVAL — пауза между циклами (по умолчанию 5m)
	cfg.ExpirationScanInterval, err = getEnvDuration("IM_EXPIRATION_SCAN_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IM_EXPIRATION_SCAN_INTERVAL: %w", err)
	}
	if cfg.ExpirationScanInterval <= 0 {
		return nil, fmt.Errorf("IM_EXPIRATION_SCAN_INTERVAL: значение должно быть положительным")
	}

	// IM_EXPIRATION_LOOKBACK — окно просмотра назад (по умолчанию 1h)
	cfg.ExpirationLookback, err = getEnvDuration("IM_EXPIRATION_LOOKBACK", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("IM_EXPIRATION_LOOKBACK: %w", err)
	}
	if cfg.ExpirationLookback <= 0 {
		return nil, fmt.Errorf("IM_EXPIRATION_LOOKBACK: значение должно быть положительным")
	}

	// --- Webhook уведомлений ---

	// IM_NOTIFY_WEBHOOK_URL — пустое значение оставляет уведомления в логе
	cfg.NotifyWebhookURL = getEnvDefault("IM_NOTIFY_WEBHOOK_URL", "")
	if cfg.NotifyWebhookURL != "" {
		if _, err := url.ParseRequestURI(cfg.NotifyWebhookURL); err != nil {
			return nil, fmt.Errorf("IM_NOTIFY_WEBHOOK_URL: некорректный URL %q", cfg.NotifyWebhookURL)
		}
	}

	cfg.NotifyTimeout, err = getEnvDuration("IM_NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_NOTIFY_TIMEOUT: %w", err)
	}

	// IM_NOTIFY_TOKEN_URL — если задан, к webhook добавляется Bearer token
	cfg.NotifyTokenURL = getEnvDefault("IM_NOTIFY_TOKEN_URL", "")
	if cfg.NotifyTokenURL != "" {
		if _, err := url.ParseRequestURI(cfg.NotifyTokenURL); err != nil {
			return nil, fmt.Errorf("IM_NOTIFY_TOKEN_URL: некорректный URL %q", cfg.NotifyTokenURL)
		}
		cfg.NotifyClientID, err = getEnvRequired("IM_NOTIFY_CLIENT_ID")
		if err != nil {
			return nil, err
		}
		cfg.NotifyClientSecret, err = getEnvRequired("IM_NOTIFY_CLIENT_SECRET")
		if err != nil {
			return nil, err
		}
	}

	// --- Кэш существования ТС ---

	cfg.VehicleCacheSize, err = getEnvInt("IM_VEHICLE_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("IM_VEHICLE_CACHE_SIZE: %w", err)
	}
	if cfg.VehicleCacheSize < 1 {
		return nil, fmt.Errorf("IM_VEHICLE_CACHE_SIZE: значение %d должно быть не меньше 1", cfg.VehicleCacheSize)
	}

	cfg.VehicleCacheTTL, err = getEnvDuration("IM_VEHICLE_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IM_VEHICLE_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	// IM_JWT_JWKS_URL — пустое значение отключает проверку токенов
	cfg.JWTJWKSURL = getEnvDefault("IM_JWT_JWKS_URL", "")
	if cfg.JWTJWKSURL != "" {
		if _, err := url.ParseRequestURI(cfg.JWTJWKSURL); err != nil {
			return nil, fmt.Errorf("IM_JWT_JWKS_URL: некорректный URL %q", cfg.JWTJWKSURL)
		}
	}

	cfg.JWTIssuer = getEnvDefault("IM_JWT_ISSUER", "")

	cfg.JWKSRefreshInterval, err = getEnvDuration("IM_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("IM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_JWT_LEEWAY: %w", err)
	}

	cfg.CACertPath = getEnvDefault("IM_CA_CERT_PATH", "")

	// IM_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "insurance-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("IM_ROLE_ADMIN_GROUPS", "insurance-admins"))

	// IM_ROLE_READONLY_GROUPS — группы для роли readonly (по умолчанию "insurance-viewers")
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("IM_ROLE_READONLY_GROUPS", "insurance-viewers"))

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("IM_DEPHEALTH_GROUP", "carinsurance")

	cfg.DephealthCheckInterval, err = getEnvDuration("IM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("IM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// AuthEnabled сообщает, включена ли проверка JWT.
func (c *Config) AuthEnabled() bool {
	return c.JWTJWKSURL != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля.
// Используется только для лейблов метрик зависимостей.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.User(c.DBUser),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// MigrationURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (используйте true/false)", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
