package providers

import (
	"github.com/pkg/errors"

	"github.com/totegamma/escrow-ledger/internal/config"
	"github.com/totegamma/escrow-ledger/internal/infra/database"
	"github.com/totegamma/escrow-ledger/internal/infra/gateway"
	"github.com/totegamma/escrow-ledger/internal/infra/memstore"
	"github.com/totegamma/escrow-ledger/internal/infra/repository"
	"github.com/totegamma/escrow-ledger/internal/service"
	"github.com/totegamma/escrow-ledger/internal/usecase"
)

// NewLedgerRepository opens the configured substrate, migrating postgres first.
func NewLedgerRepository(conf config.Server) (usecase.LedgerRepository, error) {
	switch conf.Store {
	case "memory":
		return memstore.New(), nil
	case "postgres", "":
		db, err := database.NewPostgres(conf.PostgresDsn)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect database")
		}
		if err := database.MigratePostgres(db); err != nil {
			return nil, errors.Wrap(err, "failed to migrate database")
		}
		return repository.NewLedgerRepository(db), nil
	default:
		return nil, errors.Errorf("unknown store %q", conf.Store)
	}
}

// NewSignalService returns nil when no redis is configured.
func NewSignalService(conf config.Server) *service.SignalService {
	if conf.RedisAddr == "" {
		return nil
	}
	return service.NewSignalService(database.NewRedis(conf.RedisAddr, "", conf.RedisDB))
}

// NewCampaignCache returns nil when no memcached is configured.
func NewCampaignCache(conf config.Server) *gateway.CampaignCache {
	if conf.MemcachedAddr == "" {
		return nil
	}
	return gateway.NewCampaignCache(database.NewMemcached(conf.MemcachedAddr))
}
