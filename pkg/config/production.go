package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

func loadProductionConfig(cfg *Config) error {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil {
		cfg.ServerPort = port
	}

	cfg.DatabaseFilePath = os.Getenv("DATABASE_FILE_PATH")
	if cfg.DatabaseFilePath == "" {
		cfg.DatabaseFilePath = "/data/shelfmark.sqlite"
	}

	// Production refuses to run with a generated secret: every restart would
	// silently log out all users.
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set in production")
	}

	return nil
}
