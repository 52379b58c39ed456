// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the values every process needs. Optional concerns (cache,
// rate limit, availability, queue, worker) have their own loaders.
type Config struct {
	Env            string // application environment (development, production)
	Port           string // HTTP port to listen on
	DBUser         string
	DBPass         string // may be empty
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string // HMAC secret shared with the token issuer
	MigrateOnStart bool   // apply embedded migrations before serving
}

// LoadDotEnv loads a .env file from the working directory (or the given
// paths) into the process environment. A missing file is not an error.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads the required variables and exits through log.Fatalf when one
// of them is missing.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		MigrateOnStart: envBool("MIGRATE_ON_START", false),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
