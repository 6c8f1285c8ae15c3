// syncd wires the core together outside the mobile shell: it opens the
// encrypted local store, seeds defaults, runs a sync cycle against the
// remote project and applies the tombstone purge policy. With
// SYNC_INTERVAL set it keeps cycling and listens to the change feed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivanoskov/pocketledger/internal/config"
	"github.com/ivanoskov/pocketledger/internal/keystore"
	"github.com/ivanoskov/pocketledger/internal/localstore"
	"github.com/ivanoskov/pocketledger/internal/logger"
	"github.com/ivanoskov/pocketledger/internal/maintenance"
	"github.com/ivanoskov/pocketledger/internal/remote"
	"github.com/ivanoskov/pocketledger/internal/repository"
	"github.com/ivanoskov/pocketledger/internal/service"
	"github.com/ivanoskov/pocketledger/internal/sync"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	key, err := keystore.Load(cfg.KeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load encryption key")
	}

	store, err := localstore.Open(cfg.StorePath, key)
	if err != nil {
		log.Fatal().Err(err).Msg("open local store")
	}
	defer store.Close()

	transactions := repository.NewTransactionRepo(store)
	categories := repository.NewCategoryRepo(store)
	preferences := repository.NewPreferencesRepo(store)

	categoryService := service.NewCategoryService(categories, transactions, preferences, log)
	if err := categoryService.EnsureDefaults(); err != nil {
		log.Fatal().Err(err).Msg("seed default categories")
	}
	if err := preferences.TouchOpened(); err != nil {
		log.Fatal().Err(err).Msg("record open")
	}

	gateway, err := remote.NewSupabaseGateway(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		log.Fatal().Err(err).Msg("connect remote")
	}
	feed := remote.NewPollingFeed(gateway, cfg.RealtimePollInterval, log)
	session := sync.StaticSession{ID: cfg.UserID}
	engine := sync.New(transactions, categories, preferences, gateway, feed, session, log)

	job := maintenance.NewJob(transactions, maintenance.Options{
		Enabled:       cfg.MaintenanceEnabled,
		RetentionDays: cfg.RetentionDays,
		BatchSize:     cfg.PurgeBatchSize,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := engine.SyncAll(ctx)
	if !res.Success {
		log.Error().Err(res.Err).Msg("sync failed")
	}
	job.PurgeTombstones(ctx)

	if cfg.SyncInterval <= 0 {
		if !res.Success {
			os.Exit(1)
		}
		return
	}

	// long-running mode: realtime listener plus periodic full cycles
	if res.Success {
		stopFeed, err := engine.StartRealtime(ctx)
		if err != nil {
			log.Error().Err(err).Msg("start realtime listener")
		} else {
			defer stopFeed()
		}
	}

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			res := engine.SyncAll(ctx)
			if !res.Success {
				log.Error().Err(res.Err).Msg("sync failed")
			}
			job.PurgeTombstones(ctx)
		}
	}
}
