package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Inter       InterConfig
	Foursend    FoursendConfig
	Fulfillment FulfillmentConfig
	Notifier    NotifierConfig
	Security    SecurityConfig
	LogLevel    string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// StoreConfig selects and configures the key-value blob store
type StoreConfig struct {
	Backend       string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// InterConfig holds the fixed Banco Inter endpoints. Credentials live in the
// runtime provider configuration, not here.
type InterConfig struct {
	BaseURL         string
	SandboxURL      string
	Scope           string
	CertificatePath string
	DefaultPixKey   string
}

// FoursendConfig holds the 4send provider settings
type FoursendConfig struct {
	BaseURL  string
	APIToken string
}

// FulfillmentConfig holds the external fulfillment platform settings
type FulfillmentConfig struct {
	DistributeURL     string
	AccountName       string
	Balance           int64
	ProbeTimeout      time.Duration
	ConnectDelay      time.Duration
	ConfirmationDelay time.Duration
}

// NotifierConfig holds WhatsApp notification settings
type NotifierConfig struct {
	Enabled        bool
	DBPath         string
	DestinationJID string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	APIKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", StoreBackendSQLite)),
			SQLitePath:    getEnv("STORE_SQLITE_PATH", "./db/store.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			RedisPrefix:   getEnv("REDIS_PREFIX", "reseller-hub:"),
		},
		Inter: InterConfig{
			BaseURL:         getEnv("INTER_BASE_URL", "https://cdpj.partners.bancointer.com.br"),
			SandboxURL:      getEnv("INTER_SANDBOX_URL", "https://cdpj-sandbox.partners.uatinter.co"),
			Scope:           getEnv("INTER_SCOPE", "pix.cob.write pix.cob.read webhook.read webhook.write"),
			CertificatePath: getEnv("INTER_CERTIFICATE_PATH", "/certs/certificado_webhook.p12"),
			DefaultPixKey:   getEnv("INTER_DEFAULT_PIX_KEY", ""),
		},
		Foursend: FoursendConfig{
			BaseURL:  getEnv("FOURSEND_BASE_URL", "https://api.best4send.com"),
			APIToken: getEnv("FOURSEND_API_TOKEN", ""),
		},
		Fulfillment: FulfillmentConfig{
			DistributeURL:     getEnv("FULFILLMENT_DISTRIBUTE_URL", "https://m-live.kwai.com/features/distribute/form?webview=yoda"),
			AccountName:       getEnv("FULFILLMENT_ACCOUNT_NAME", "Revendacheck2"),
			Balance:           int64(parseInt(getEnv("FULFILLMENT_BALANCE", "50000"), 50000)),
			ProbeTimeout:      parseDuration(getEnv("FULFILLMENT_PROBE_TIMEOUT", "5s"), 5*time.Second),
			ConnectDelay:      parseDuration(getEnv("FULFILLMENT_CONNECT_DELAY", "2s"), 2*time.Second),
			ConfirmationDelay: parseDuration(getEnv("SHIPMENT_CONFIRMATION_DELAY", "2s"), 2*time.Second),
		},
		Notifier: NotifierConfig{
			Enabled:        parseBool(getEnv("NOTIFIER_ENABLED", "false"), false),
			DBPath:         getEnv("NOTIFIER_DB_PATH", "./db/whatsmeow.db"),
			DestinationJID: getEnv("NOTIFIER_DESTINATION_JID", ""),
		},
		Security: SecurityConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "INFO"),
	}

	// Validate required fields
	switch config.Store.Backend {
	case StoreBackendSQLite, StoreBackendRedis, StoreBackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", config.Store.Backend)
	}
	if config.Notifier.Enabled && config.Notifier.DestinationJID == "" {
		return nil, fmt.Errorf("NOTIFIER_DESTINATION_JID is required when NOTIFIER_ENABLED is set")
	}

	return config, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseInt parses string to int with default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// parseBool parses string to bool with default value
func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// parseDuration parses string to time.Duration with default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
