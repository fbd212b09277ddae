// Package persistence selects the account store named by storage.driver.
package persistence

import (
	"log/slog"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"usermgmt/config"
	"usermgmt/internal/domain/repository"
	"usermgmt/internal/infra/persistence/memory"
	"usermgmt/internal/infra/persistence/mongodb"
	"usermgmt/internal/infra/persistence/postgres"
)

// RepositoryParams holds dependencies for the store, injected by Fx.
type RepositoryParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewUserRepository opens the configured store and returns its account repository.
func NewUserRepository(params RepositoryParams) (repository.UserRepository, error) {
	driver := params.Config.Storage.Driver
	params.Logger.Info("Opening account store", slog.String("driver", driver))

	switch driver {
	case config.StorageMongo:
		coll, err := mongodb.New(mongodb.Params{
			Lifecycle: params.Lc,
			Config:    params.Config,
			Logger:    params.Logger,
		})
		if err != nil {
			return nil, err
		}

		return mongodb.NewUserRepository(coll), nil

	case config.StoragePostgres:
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lc,
			Config:    params.Config,
			Logger:    params.Logger,
		})
		if err != nil {
			return nil, err
		}

		return postgres.NewUserRepository(db), nil

	case config.StorageMemory:
		params.Logger.Warn("Using in-memory account store; data is lost on restart")

		return memory.NewUserRepository(), nil

	default:
		return nil, errors.Errorf("unknown storage driver: %s", driver)
	}
}
