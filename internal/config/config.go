package config

import (
	"log"
	"os"
)

// Config holds all environment-backed settings. Call godotenv.Load before
// Load so a local .env file is picked up; in production the variables are
// expected to be set directly.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	UploadDir   string
	CORSOrigin  string
}

const defaultJWTSecret = "driftbottle_default_secret_key"

// Load reads the configuration from the environment, applying defaults
// suitable for local development.
func Load() Config {
	cfg := Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: getenv("DATABASE_URL", "sqlite://driftbottle.db"),
		JWTSecret:   getenv("JWT_SECRET", ""),
		UploadDir:   getenv("UPLOAD_DIR", "uploads"),
		CORSOrigin:  getenv("CORS_ORIGIN", "*"),
	}
	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set, using insecure development default")
		cfg.JWTSecret = defaultJWTSecret
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
