package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	// RandomSeed seeds every random draw of a run. Two runs with the same
	// seed and config produce the same dataset shape.
	RandomSeed int64

	SeedCustomers   int
	TargetCustomers int
	TargetUsers     int
	MonthsHistory   int

	ProfileName string
	ProfilePath string
	OutputDir   string

	SubscriptionBatchSize int
	EventBatchSize        int
	ProgressInterval      int

	OTLPEndpoint string
	OtelEnabled  bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "datasmith"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "prod"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),

		RandomSeed: getenvInt64("GENERATION_SEED", 42),

		SeedCustomers:   getenvInt("SEED_CUSTOMERS", 3000),
		TargetCustomers: getenvInt("TARGET_CUSTOMERS", 25000),
		TargetUsers:     getenvInt("TARGET_USERS", 130000),
		MonthsHistory:   getenvInt("MONTHS_HISTORY", 12),

		ProfileName: getenv("PROFILE_NAME", "Demo Warehouse"),
		ProfilePath: getenv("PROFILE_PATH", "."),
		OutputDir:   getenv("OUTPUT_DIR", "outputs"),

		SubscriptionBatchSize: getenvInt("SUBSCRIPTION_BATCH_SIZE", 2000),
		EventBatchSize:        getenvInt("EVENT_BATCH_SIZE", 5000),
		ProgressInterval:      getenvInt("PROGRESS_INTERVAL", 25000),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		OtelEnabled:  getenvBool("OTEL_ENABLED", false),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "rg_warehouse"),
		DBUser:            getenv("DATABASE_USER", "rg_user"),
		DBPassword:        getenv("DATABASE_PASSWORD", "rg_pass"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 8),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
	}
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewProfileHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
