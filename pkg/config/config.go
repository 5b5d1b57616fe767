package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseFilePath          string
	DatabaseMaxRetries        int
	Environment               string
	Hostname                  string
	// JWTSecret signs session tokens. It is always injected from the
	// environment; rotating it invalidates every outstanding token.
	JWTSecret  string
	ServerHost string
	ServerPort int
}

const (
	environmentENV = "ENVIRONMENT"
	jwtSecretENV   = "JWT_SECRET"
)

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        3,
		Hostname:                  hostname,
		JWTSecret:                 os.Getenv(jwtSecretENV),
		ServerPort:                4360,
	}

	env := os.Getenv(environmentENV)
	if env == "" {
		env = "development"
	}
	cfg.Environment = env

	switch env {
	case "development":
		err = loadDevelopmentConfig(cfg)
	case "test":
		err = loadTestConfig(cfg)
	case "production":
		err = loadProductionConfig(cfg)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config with test defaults without consulting the
// environment. Tests that need a shared file-backed database override
// DatabaseFilePath themselves.
func NewForTest() *Config {
	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 10 * time.Millisecond,
		DatabaseMaxRetries:        3,
		Environment:               "test",
		Hostname:                  "test",
	}
	_ = loadTestConfig(cfg)
	return cfg
}

// ephemeralSecret generates a random signing secret for environments where
// none was injected. Tokens don't survive a restart with an ephemeral secret.
func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(buf), nil
}
