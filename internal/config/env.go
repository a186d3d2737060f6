package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment variables that override file settings.
const (
	EnvStoreDriver = "JANITOR_STORE_DRIVER"
	EnvSQLitePath  = "JANITOR_SQLITE_PATH"
	EnvJSONDir     = "JANITOR_JSON_DIR"
	EnvDatabaseURL = "DATABASE_URL"
	EnvLogLevel    = "LOG_LEVEL"
	EnvSMTPPass    = "JANITOR_SMTP_PASS"
)

// LoadEnv loads environment variables from .env files in the working
// directory. Variables already set in the process win.
func LoadEnv(logger *logrus.Logger) {
	files := []string{".env", ".env.local"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger != nil && len(loaded) > 0 {
		logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}

// ApplyEnv overrides settings from the process environment. Credentials such
// as DATABASE_URL are usually supplied this way rather than in the file.
func (c *Config) ApplyEnv() {
	c.Store.Driver = getEnv(EnvStoreDriver, c.Store.Driver)
	c.Store.SQLitePath = getEnv(EnvSQLitePath, c.Store.SQLitePath)
	c.Store.JSONDir = getEnv(EnvJSONDir, c.Store.JSONDir)
	c.Store.PostgresURL = getEnv(EnvDatabaseURL, c.Store.PostgresURL)
	c.LogLevel = getEnv(EnvLogLevel, c.LogLevel)
	c.Notify.SMTPPass = getEnv(EnvSMTPPass, c.Notify.SMTPPass)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
