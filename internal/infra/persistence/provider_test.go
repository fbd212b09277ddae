package persistence

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"usermgmt/config"
)

func TestNewUserRepository(t *testing.T) {
	newParams := func(t *testing.T, driver string) RepositoryParams {
		cfg := &config.Config{}
		cfg.Storage.Driver = driver

		return RepositoryParams{
			Lc:     fxtest.NewLifecycle(t),
			Config: cfg,
			Logger: slog.New(slog.DiscardHandler),
		}
	}

	t.Run("memory", func(t *testing.T) {
		repo, err := NewUserRepository(newParams(t, config.StorageMemory))
		require.NoError(t, err)
		assert.NotNil(t, repo)
	})

	t.Run("mongo without config", func(t *testing.T) {
		_, err := NewUserRepository(newParams(t, config.StorageMongo))
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewUserRepository(newParams(t, "cassandra"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage driver")
	})
}
