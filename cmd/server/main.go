package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/coindeck/internal/clientdata"
	"github.com/aristath/coindeck/internal/clients/coingecko"
	"github.com/aristath/coindeck/internal/config"
	"github.com/aristath/coindeck/internal/database"
	"github.com/aristath/coindeck/internal/events"
	accounthandlers "github.com/aristath/coindeck/internal/modules/account/handlers"
	"github.com/aristath/coindeck/internal/modules/balance"
	balancehandlers "github.com/aristath/coindeck/internal/modules/balance/handlers"
	"github.com/aristath/coindeck/internal/modules/market"
	markethandlers "github.com/aristath/coindeck/internal/modules/market/handlers"
	"github.com/aristath/coindeck/internal/modules/movers"
	movershandlers "github.com/aristath/coindeck/internal/modules/movers/handlers"
	"github.com/aristath/coindeck/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/coindeck/internal/modules/portfolio/handlers"
	"github.com/aristath/coindeck/internal/modules/watchlist"
	watchlisthandlers "github.com/aristath/coindeck/internal/modules/watchlist/handlers"
	"github.com/aristath/coindeck/internal/reliability"
	"github.com/aristath/coindeck/internal/scheduler"
	"github.com/aristath/coindeck/internal/server"
	"github.com/aristath/coindeck/internal/storage"
	"github.com/aristath/coindeck/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Coindeck")

	// Durable user state: lots, balance, watchlist
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	// Ephemeral API response cache
	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "clientdata.db"),
		Profile: database.ProfileCache,
		Name:    "clientdata",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open clientdata database")
	}
	defer clientDataDB.Close()

	for _, db := range []*database.DB{portfolioDB, clientDataDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to run migrations")
		}
	}

	// Event bus
	bus := events.NewBus(log)

	// Price client, cache-first through the clientdata repository
	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())
	priceClient := coingecko.NewClient(coingecko.Config{
		BaseURL: cfg.CoinGeckoBaseURL,
		APIKey:  cfg.CoinGeckoAPIKey,
		ProTier: cfg.CoinGeckoProTier,
	}, cacheRepo, log)

	// Stores
	store := storage.NewRepository(portfolioDB.Conn(), log)

	balanceStore, err := balance.NewStore(store, bus, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load balance store")
	}

	watchlistStore, err := watchlist.NewStore(store, bus, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load watchlist store")
	}

	lotRepo, err := portfolio.NewLotRepository(store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load holdings store")
	}

	// Services
	portfolioService := portfolio.NewService(lotRepo, balanceStore, priceClient, bus, log)
	moversService := movers.NewService(priceClient, portfolioService, cfg.TopMarketsLimit, log)
	marketService := market.NewService(priceClient, priceClient, log)

	// Scheduler and background jobs
	sched := scheduler.New(log)

	refreshJob := market.NewRefreshJob(priceClient, bus, log,
		market.CoinListerFunc(portfolioService.HeldCoinIDs),
		watchlistStore,
	)
	if err := sched.AddJob(cfg.PriceRefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price refresh job")
	}

	cleanupJob := clientdata.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob(cfg.CacheCleanupSchedule, cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	// S3 backups, only when a bucket is configured
	var backupService *reliability.BackupService
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		backupService = reliability.NewBackupService(
			s3Client,
			[]*database.DB{portfolioDB},
			cfg.DataDir,
			cfg.Backup.RetainCount,
			bus,
			log,
		)
		if err := sched.AddJob(cfg.Backup.Schedule, reliability.NewBackupJob(backupService)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DevMode: cfg.DevMode,
		DataDir: cfg.DataDir,
		Handlers: server.Handlers{
			Portfolio: portfoliohandlers.NewHandler(portfolioService, priceClient, log),
			Account:   accounthandlers.NewHandler(balanceStore, portfolioService, priceClient, log),
			Balance:   balancehandlers.NewHandler(balanceStore, log),
			Watchlist: watchlisthandlers.NewHandler(watchlistStore, priceClient, log),
			Movers:    movershandlers.NewHandler(moversService, log),
			Coins:     markethandlers.NewHandler(marketService, log),
		},
		Bus:       bus,
		Databases: []*database.DB{portfolioDB, clientDataDB},
		Backup:    backupService,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
