package config

import (
	"os"
	"strconv"
)

func loadDevelopmentConfig(cfg *Config) error {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil {
		cfg.ServerPort = port
	}

	cfg.DatabaseDebug = true
	cfg.DatabaseFilePath = "./tmp/data.sqlite"
	cfg.ServerHost = "127.0.0.1"

	if cfg.JWTSecret == "" {
		secret, err := ephemeralSecret()
		if err != nil {
			return err
		}
		cfg.JWTSecret = secret
	}

	return nil
}
