// Пакет config — загрузка и валидация конфигурации Onboarding Portal
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

// Допустимые режимы блокировки reconciliation.
const (
	// LockModeLocal — блокировка per-email внутри процесса (одна реплика).
	LockModeLocal = "local"
	// LockModeAdvisory — PostgreSQL advisory lock (несколько реплик).
	LockModeAdvisory = "advisory"
)

// Config содержит все параметры конфигурации Onboarding Portal.
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
	// Максимум соединений пула; advisory lock держит не больше половины
	DBMaxConns int
	// Таймаут установки подключения и первого ping
	DBConnectTimeout time.Duration

	// --- Keycloak (Identity Directory) ---

	// URL Keycloak
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Client ID для доступа к Keycloak Admin API
	KeycloakClientID string
	// Client Secret для доступа к Keycloak Admin API
	KeycloakClientSecret string
	// Путь к CA-сертификату Keycloak (опционально)
	KeycloakCACertPath string
	// Размер страницы при постраничном обходе пользователей Keycloak
	IdentityPageSize int
	// Размер LRU-кэша identity по ID
	IdentityCacheSize int
	// TTL записи LRU-кэша identity
	IdentityCacheTTL time.Duration
	// Таймаут HTTP-запросов к Keycloak Admin API
	KeycloakTimeout time.Duration
	// Таймаут проверки готовности Keycloak
	KeycloakReadinessTimeout time.Duration

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration

	// --- Reconciliation ---

	// Интервал периодического sweep приглашений (0 — только по запросу)
	SweepInterval time.Duration
	// Размер страницы при обходе приглашений
	InvitationPageSize int
	// Режим per-email блокировки: local или advisory
	LockMode string

	// --- Маппинг групп → ролей ---

	// Группы Keycloak, дающие роль admin (через запятую)
	RoleAdminGroups []string

	// --- topologymetrics ---

	// Группа в метриках зависимостей
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

	// OP_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("OP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("OP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("OP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("OP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("OP_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("OP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("OP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("OP_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("OP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("OP_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("OP_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("OP_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("OP_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("OP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("OP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// OP_DB_MAX_CONNS — не меньше 2: одно соединение под advisory lock, одно под запросы
	cfg.DBMaxConns, err = getEnvInt("OP_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("OP_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 2 {
		return nil, fmt.Errorf("OP_DB_MAX_CONNS: значение %d меньше 2", cfg.DBMaxConns)
	}

	cfg.DBConnectTimeout, err = getEnvDuration("OP_DB_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OP_DB_CONNECT_TIMEOUT: %w", err)
	}

	// --- Keycloak ---

	cfg.KeycloakURL, err = getEnvRequired("OP_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	cfg.KeycloakRealm = getEnvDefault("OP_KEYCLOAK_REALM", "onboarding")

	cfg.KeycloakClientID, err = getEnvRequired("OP_KEYCLOAK_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	cfg.KeycloakClientSecret, err = getEnvRequired("OP_KEYCLOAK_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.KeycloakCACertPath = getEnvDefault("OP_KEYCLOAK_CA_CERT_PATH", "")

	// OP_IDENTITY_PAGE_SIZE — размер страницы обхода пользователей (по умолчанию 100)
	cfg.IdentityPageSize, err = getEnvInt("OP_IDENTITY_PAGE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("OP_IDENTITY_PAGE_SIZE: %w", err)
	}
	if cfg.IdentityPageSize < 1 || cfg.IdentityPageSize > 1000 {
		return nil, fmt.Errorf("OP_IDENTITY_PAGE_SIZE: значение %d вне допустимого диапазона 1-1000", cfg.IdentityPageSize)
	}

	cfg.IdentityCacheSize, err = getEnvInt("OP_IDENTITY_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("OP_IDENTITY_CACHE_SIZE: %w", err)
	}
	if cfg.IdentityCacheSize < 1 {
		return nil, fmt.Errorf("OP_IDENTITY_CACHE_SIZE: значение %d должно быть положительным", cfg.IdentityCacheSize)
	}

	cfg.IdentityCacheTTL, err = getEnvDuration("OP_IDENTITY_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("OP_IDENTITY_CACHE_TTL: %w", err)
	}

	cfg.KeycloakTimeout, err = getEnvDuration("OP_KEYCLOAK_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OP_KEYCLOAK_TIMEOUT: %w", err)
	}

	cfg.KeycloakReadinessTimeout, err = getEnvDuration("OP_KEYCLOAK_READINESS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OP_KEYCLOAK_READINESS_TIMEOUT: %w", err)
	}

	// --- JWT ---

	cfg.JWTIssuer = getEnvDefault("OP_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	cfg.JWTJWKSURL = getEnvDefault("OP_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	cfg.JWTLeeway, err = getEnvDuration("OP_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OP_JWT_LEEWAY: %w", err)
	}

	cfg.JWKSRefreshInterval, err = getEnvDuration("OP_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("OP_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWKSClientTimeout, err = getEnvDuration("OP_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OP_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// --- Reconciliation ---

	// OP_SWEEP_INTERVAL — интервал sweep (по умолчанию 15m, 0 — отключён)
	cfg.SweepInterval, err = getEnvDuration("OP_SWEEP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("OP_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval < 0 {
		return nil, fmt.Errorf("OP_SWEEP_INTERVAL: отрицательное значение %v", cfg.SweepInterval)
	}

	cfg.InvitationPageSize, err = getEnvInt("OP_INVITATION_PAGE_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("OP_INVITATION_PAGE_SIZE: %w", err)
	}
	if cfg.InvitationPageSize < 1 || cfg.InvitationPageSize > 10000 {
		return nil, fmt.Errorf("OP_INVITATION_PAGE_SIZE: значение %d вне допустимого диапазона 1-10000", cfg.InvitationPageSize)
	}

	cfg.LockMode = getEnvDefault("OP_LOCK_MODE", LockModeAdvisory)
	if cfg.LockMode != LockModeLocal && cfg.LockMode != LockModeAdvisory {
		return nil, fmt.Errorf("OP_LOCK_MODE: недопустимое значение %q, допустимые: local, advisory", cfg.LockMode)
	}

	// --- Маппинг групп → ролей ---

	cfg.RoleAdminGroups = parseCSV(getEnvDefault("OP_ROLE_ADMIN_GROUPS", "onboarding-admins"))

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("OP_DEPHEALTH_GROUP", "onboarding")

	cfg.DephealthCheckInterval, err = getEnvDuration("OP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("OP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(c.DBUser),
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
