package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	AppEnv  string
	Redis   RedisConfig
	DB      DBConfig
	Auth    AuthConfig
	Orders  OrdersConfig
	Catalog CatalogConfig
	Gateway GatewayConfig
	Otel    OtelConfig
}

type DBConfig struct {
	DSN             string
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type OrdersConfig struct {
	GRPCAddr             string
	MetricsAddr          string
	LockWait             time.Duration
	DBLockTimeout        time.Duration
	FanoutQueueSize      int
	FanoutWorkers        int
	FanoutPublishTimeout time.Duration
}

type CatalogConfig struct {
	CacheTTL time.Duration
}

type GatewayConfig struct {
	HTTPAddr         string
	OrdersServiceURL string
	// RateLimit uses the limiter format, e.g. "60-M".
	RateLimit      string
	WSSendBuffer   int
	AllowedOrigins []string
}

type OtelConfig struct {
	Endpoint    string
	ServiceName string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		AppEnv: getEnv("APP_ENV", "production"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		DB: DBConfig{
			DSN:             getEnv("KIOSK_DB_DSN", ""),
			Driver:          getEnv("STORE_DRIVER", DriverPostgres),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Orders: OrdersConfig{
			GRPCAddr:             getEnv("ORDERS_GRPC_ADDR", ":50054"),
			MetricsAddr:          getEnv("ORDERS_METRICS_ADDR", ":9094"),
			LockWait:             getEnvDuration("LOCK_WAIT", 3*time.Second),
			DBLockTimeout:        getEnvDuration("DB_LOCK_TIMEOUT", 2*time.Second),
			FanoutQueueSize:      getEnvInt("FANOUT_QUEUE_SIZE", 256),
			FanoutWorkers:        getEnvInt("FANOUT_WORKERS", 4),
			FanoutPublishTimeout: getEnvDuration("FANOUT_PUBLISH_TIMEOUT", 2*time.Second),
		},
		Catalog: CatalogConfig{
			CacheTTL: getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Gateway: GatewayConfig{
			HTTPAddr:         getEnv("GATEWAY_HTTP_ADDR", ":8080"),
			OrdersServiceURL: getEnv("ORDERS_SERVICE_URL", "localhost:50054"),
			RateLimit:        getEnv("RATE_LIMIT", "60-M"),
			WSSendBuffer:     getEnvInt("WS_SEND_BUFFER", 64),
			AllowedOrigins:   getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Otel: OtelConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "kiosk-orders"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
