package impl

import (
	"io"
	"log/slog"
	"time"

	"usermgmt/config"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{
		Auth: &config.AuthConfig{
			AccessTokenTTL:      time.Hour,
			PasswordMinLength:   6,
			PasswordMaxLength:   128,
			MaxConcurrentHashes: 2,
			Scrypt: config.ScryptConfig{
				N: 16384, R: 8, P: 1, KeyLength: 64, SaltLength: 16,
			},
		},
	}
	cfg.SecretKey.Access = "unit-test-secret"

	return cfg
}
