package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Data sources
	LedgerSource        string // file path or http(s) URL of the normalized ledger CSV export
	DatasetPath         string // optional override of the embedded manual-records/taxonomy dataset
	OrganizationAccount string
	SourceTimeout       time.Duration
	SourceMaxRetries    int
	TransferCacheTTL    time.Duration

	// Verification tolerance policy (days)
	BaseToleranceDays         int
	EarlyPeriodEndYear        int
	EarlyPeriodToleranceDays  int
	MidPeriodEndYear          int
	MidPeriodToleranceDays    int
	MinToleranceDays          int
	UnaccountedSampleLimit    int
	ReportCacheTTL            time.Duration
	ReportCacheCleanupTimeout time.Duration

	// Admin endpoints
	AdminJWTSecret string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// Default returns the configuration used when no environment is present.
// Tests and the CLI start from here.
func Default() *AppConfig {
	return &AppConfig{
		Port:                      "8080",
		DatabasePath:              "./transfers.db",
		LogLevel:                  "info",
		LedgerSource:              "data/ledger.csv",
		OrganizationAccount:       "hive.fund",
		SourceTimeout:             30 * time.Second,
		SourceMaxRetries:          3,
		TransferCacheTTL:          10 * time.Minute,
		BaseToleranceDays:         1,
		EarlyPeriodEndYear:        2022,
		EarlyPeriodToleranceDays:  7,
		MidPeriodEndYear:          2023,
		MidPeriodToleranceDays:    3,
		MinToleranceDays:          1,
		UnaccountedSampleLimit:    50,
		ReportCacheTTL:            15 * time.Minute,
		ReportCacheCleanupTimeout: 30 * time.Minute,
	}
}

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = FromEnv()

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Ledger=%s, Organization=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.LedgerSource, Cfg.OrganizationAccount)
}

// FromEnv builds an AppConfig from the current process environment, falling back to Default().
func FromEnv() *AppConfig {
	d := Default()

	adminSecret := getEnv("ADMIN_JWT_SECRET", "")
	if adminSecret != "" && len(adminSecret) < 32 {
		log.Println("WARNING: ADMIN_JWT_SECRET shorter than 32 characters; admin endpoints stay disabled.")
		adminSecret = ""
	}

	return &AppConfig{
		Port:         getEnv("PORT", d.Port),
		DatabasePath: getEnv("DATABASE_PATH", d.DatabasePath),
		LogLevel:     getEnv("LOG_LEVEL", d.LogLevel),

		LedgerSource:        getEnv("LEDGER_SOURCE", d.LedgerSource),
		DatasetPath:         getEnv("DATASET_PATH", d.DatasetPath),
		OrganizationAccount: getEnv("ORGANIZATION_ACCOUNT", d.OrganizationAccount),
		SourceTimeout:       getEnvAsDuration("SOURCE_TIMEOUT", d.SourceTimeout),
		SourceMaxRetries:    getEnvAsInt("SOURCE_MAX_RETRIES", d.SourceMaxRetries),
		TransferCacheTTL:    getEnvAsDuration("TRANSFER_CACHE_TTL", d.TransferCacheTTL),

		BaseToleranceDays:         getEnvAsInt("BASE_TOLERANCE_DAYS", d.BaseToleranceDays),
		EarlyPeriodEndYear:        getEnvAsInt("EARLY_PERIOD_END_YEAR", d.EarlyPeriodEndYear),
		EarlyPeriodToleranceDays:  getEnvAsInt("EARLY_PERIOD_TOLERANCE_DAYS", d.EarlyPeriodToleranceDays),
		MidPeriodEndYear:          getEnvAsInt("MID_PERIOD_END_YEAR", d.MidPeriodEndYear),
		MidPeriodToleranceDays:    getEnvAsInt("MID_PERIOD_TOLERANCE_DAYS", d.MidPeriodToleranceDays),
		MinToleranceDays:          getEnvAsInt("MIN_TOLERANCE_DAYS", d.MinToleranceDays),
		UnaccountedSampleLimit:    getEnvAsInt("UNACCOUNTED_SAMPLE_LIMIT", d.UnaccountedSampleLimit),
		ReportCacheTTL:            getEnvAsDuration("REPORT_CACHE_TTL", d.ReportCacheTTL),
		ReportCacheCleanupTimeout: getEnvAsDuration("REPORT_CACHE_CLEANUP", d.ReportCacheCleanupTimeout),

		AdminJWTSecret: adminSecret,
	}
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
