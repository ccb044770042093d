package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	LockWaitTimeout int // seconds, applied as innodb_lock_wait_timeout
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SeatMapTTL time.Duration
}

type NATSConfig struct {
	URL       string
	ClusterID string
	ClientID  string
}

type GatewayConfig struct {
	MerchantID     string
	MerchantSecret string
	Currency       string
	CheckoutURL    string
	ReturnURL      string
	CancelURL      string
	NotifyURL      string
}

type Env struct {
	AppAddr   string
	GinMode   string
	LogLevel  string
	LogFormat string

	// StoreDriver selects the ledger backend: "mysql" or "memory".
	StoreDriver string
	DB          DBConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Gateway     GatewayConfig

	JWTSecret       string
	CORSOrigins     []string
	ReferencePrefix string
	Timezone        string

	OpTimeout      time.Duration
	PendingTTL     time.Duration
	ExpiryInterval time.Duration
	OutboxBuffer   int
}

func LoadEnv() Env {
	return Env{
		AppAddr:   getEnv("APP_ADDR", ":8080"),
		GinMode:   getEnv("GIN_MODE", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "mysql")),
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "127.0.0.1"),
			Port:            getEnvInt("DB_PORT", 3306),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASS", ""),
			Name:            getEnv("DB_NAME", "ahc_tours_db"),
			LockWaitTimeout: getEnvInt("DB_LOCK_WAIT_TIMEOUT", 5),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			SeatMapTTL: getEnvDuration("SEATMAP_TTL", 30*time.Second),
		},
		NATS: NATSConfig{
			URL:       getEnv("NATS_URL", ""),
			ClusterID: getEnv("NATS_CLUSTER_ID", "bustix"),
			ClientID:  getEnv("NATS_CLIENT_ID", "bustix-api"),
		},
		Gateway: GatewayConfig{
			MerchantID:     getEnv("PAYHERE_MERCHANT_ID", ""),
			MerchantSecret: getEnv("PAYHERE_MERCHANT_SECRET", ""),
			Currency:       getEnv("PAYHERE_CURRENCY", "LKR"),
			CheckoutURL:    getEnv("PAYHERE_CHECKOUT_URL", "https://sandbox.payhere.lk/pay/checkout"),
			ReturnURL:      getEnv("PAYHERE_RETURN_URL", ""),
			CancelURL:      getEnv("PAYHERE_CANCEL_URL", ""),
			NotifyURL:      getEnv("PAYHERE_NOTIFY_URL", ""),
		},

		JWTSecret:       getEnv("JWT_SECRET", ""),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		ReferencePrefix: strings.ToUpper(getEnv("REFERENCE_PREFIX", "AHC")),
		Timezone:        getEnv("TIMEZONE", "Asia/Colombo"),

		OpTimeout:      getEnvDuration("OP_TIMEOUT", 5*time.Second),
		PendingTTL:     getEnvDuration("PENDING_TTL", 15*time.Minute),
		ExpiryInterval: getEnvDuration("EXPIRY_INTERVAL", time.Minute),
		OutboxBuffer:   getEnvInt("OUTBOX_BUFFER", 256),
	}
}

// Validate rejects configurations that cannot run safely.
func (e Env) Validate() error {
	if e.StoreDriver != "mysql" && e.StoreDriver != "memory" {
		return fmt.Errorf("STORE_DRIVER must be mysql or memory, got %q", e.StoreDriver)
	}
	if e.OpTimeout <= 0 {
		return fmt.Errorf("OP_TIMEOUT must be positive")
	}
	if e.PendingTTL <= 0 {
		return fmt.Errorf("PENDING_TTL must be positive")
	}
	if _, err := e.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if e.GinMode == "release" {
		if e.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in release mode")
		}
		if e.Gateway.MerchantSecret == "" {
			return fmt.Errorf("PAYHERE_MERCHANT_SECRET is required in release mode")
		}
	}
	return nil
}

// Location resolves Timezone; journey dates are compared in this zone.
func (e Env) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(e.Timezone)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("5s") or bare seconds ("5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
