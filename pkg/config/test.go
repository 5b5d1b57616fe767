package config

func loadTestConfig(cfg *Config) error {
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-jwt-secret"
	}

	return nil
}
