package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the controller configuration.
type Config struct {
	// Image and container managed by the controller.
	ImageName     string
	ContainerName string
	AppPort       int

	// Health probe.
	HealthPath     string
	HealthAttempts int
	HealthInterval time.Duration

	// On-disk layout, relative to the working directory.
	DataDir    string
	LogsDir    string
	BackupDir  string
	ModelsDir  string
	ExportsDir string
	SSLDir     string

	// Controller's own history database.
	HistoryDB string

	// Backup retention and disk thresholds.
	Retention  int
	MinDiskGB  uint64
	WarnDiskGB uint64

	// Schedule mode.
	BackupSchedule string
	ProbeInterval  time.Duration

	// Environment passed through to the application container.
	// Not validated here; the application interprets them.
	AppDatabasePath string
	AppLogLevel     string
	AppTTSRate      int
	AppLanguage     string
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	appPort, err := getEnvInt("APP_PORT", 8501)
	if err != nil {
		return nil, err
	}
	attempts, err := getEnvInt("HEALTH_ATTEMPTS", 30)
	if err != nil {
		return nil, err
	}
	intervalSec, err := getEnvInt("HEALTH_INTERVAL_SECONDS", 2)
	if err != nil {
		return nil, err
	}
	retention, err := getEnvInt("RETENTION", 10)
	if err != nil {
		return nil, err
	}
	minDisk, err := getEnvInt("MIN_DISK_GB", 2)
	if err != nil {
		return nil, err
	}
	warnDisk, err := getEnvInt("WARN_DISK_GB", 5)
	if err != nil {
		return nil, err
	}
	probeSec, err := getEnvInt("PROBE_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	ttsRate, err := getEnvInt("TTS_RATE", 150)
	if err != nil {
		return nil, err
	}

	return &Config{
		ImageName:     getEnv("IMAGE_NAME", "legal-analyzer:latest"),
		ContainerName: getEnv("CONTAINER_NAME", "legal-analyzer"),
		AppPort:       appPort,

		HealthPath:     getEnv("HEALTH_PATH", "/_stcore/health"),
		HealthAttempts: attempts,
		HealthInterval: time.Duration(intervalSec) * time.Second,

		DataDir:    getEnv("DATA_DIR", "./data"),
		LogsDir:    getEnv("LOGS_DIR", "./logs"),
		BackupDir:  getEnv("BACKUP_DIR", "./backups"),
		ModelsDir:  getEnv("MODELS_DIR", "./models"),
		ExportsDir: getEnv("EXPORTS_DIR", "./exports"),
		SSLDir:     getEnv("SSL_DIR", "./ssl"),

		HistoryDB: getEnv("HISTORY_DB", "./deploy-history.db"),

		Retention:  retention,
		MinDiskGB:  uint64(minDisk),
		WarnDiskGB: uint64(warnDisk),

		BackupSchedule: getEnv("BACKUP_SCHEDULE", "0 4 * * *"),
		ProbeInterval:  time.Duration(probeSec) * time.Second,

		AppDatabasePath: getEnv("DATABASE_PATH", "/app/data/legal_cases.db"),
		AppLogLevel:     getEnv("LOG_LEVEL", "info"),
		AppTTSRate:      ttsRate,
		AppLanguage:     getEnv("DEFAULT_LANGUAGE", "en"),
	}, nil
}

// Dirs returns every directory the controller must ensure before a deploy.
func (c *Config) Dirs() []string {
	return []string{c.DataDir, c.LogsDir, c.BackupDir, c.ModelsDir, c.ExportsDir, c.SSLDir}
}

// AppEnv builds the "KEY=VALUE" environment for the application container.
func (c *Config) AppEnv() []string {
	return []string{
		"DATABASE_PATH=" + c.AppDatabasePath,
		"LOG_LEVEL=" + c.AppLogLevel,
		"TTS_RATE=" + strconv.Itoa(c.AppTTSRate),
		"DEFAULT_LANGUAGE=" + c.AppLanguage,
	}
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
