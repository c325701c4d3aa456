package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"atmservice/internal/clock"
	"atmservice/internal/config"
	"atmservice/internal/handler"
	"atmservice/internal/infrastructure/cache"
	"atmservice/internal/infrastructure/database"
	"atmservice/internal/infrastructure/lock"
	"atmservice/internal/infrastructure/logger"
	"atmservice/internal/infrastructure/mq"
	"atmservice/internal/job"
	"atmservice/internal/repository"
	"atmservice/internal/repository/memory"
	"atmservice/internal/security"
	"atmservice/internal/seed"
	"atmservice/internal/service"
	"atmservice/pkg/idgen"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	defaultPath := "config/config.yaml"
	if p := os.Getenv("ATM_CONFIG"); p != "" {
		defaultPath = p
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := idgen.Init(cfg.IDGen.WorkerID); err != nil {
		return err
	}
	clk := clock.System{}

	// Storage
	var store repository.Store
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; data is lost on exit")
		store = memory.NewStore()
	default:
		db, err := database.Open(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.Close(db); err != nil {
				log.Error("close database", zap.Error(err))
			}
		}()
		store = repository.NewGormStore(db)
	}

	if _, err := seed.Provision(ctx, store, cfg.Seed.Customers, bcrypt.DefaultCost, log); err != nil {
		return err
	}

	// Services
	accountOpts := []service.AccountOption{}
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("redis connected", zap.String("addr", rdb.Options().Addr))
		locker := lock.NewRedisLocker(rdb, cfg.Redis.LockTTL, cfg.Redis.LockRetryInterval,
			cfg.Redis.LockMaxRetries, log.With(zap.String("component", "redis_locker")))
		accountOpts = append(accountOpts, service.WithAccountLocker(locker))
	}

	activityTopic := ""
	if cfg.Kafka.Enabled {
		activityTopic = cfg.Kafka.Topic.AccountActivity
		accountOpts = append(accountOpts, service.WithAccountActivityTopic(activityTopic))
	}

	ledger := service.NewAccountService(store, clk, log, accountOpts...)
	jwtManager := security.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Expiration(), clk)
	auth := service.NewAuthService(store, security.BcryptVerifier{}, jwtManager, clk, log, service.AuthOptions{
		MaxFailedAttempts: cfg.Security.Auth.MaxFailedAttempts,
		LockDuration:      cfg.Security.Auth.LockDuration(),
		SessionTTL:        cfg.Security.JWT.Expiration(),
		ActivityTopic:     activityTopic,
	})

	// Background jobs
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(&cfg.Kafka, log.With(zap.String("component", "kafka_producer")))
		if err != nil {
			return err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("close kafka producer", zap.Error(err))
			}
		}()

		sender := job.NewOutboxSender(store.Outbox(), producer, log,
			cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetryCount)
		senderDone := make(chan struct{})
		go func() {
			defer close(senderDone)
			sender.Start(ctx)
		}()
		defer func() { <-senderDone }()
		defer sender.Stop()

		purger, err := job.NewOutboxPurger(store.Outbox(), clk, cfg.Outbox.PurgeSchedule, cfg.Outbox.Retention, log)
		if err != nil {
			return err
		}
		purger.Start()
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer stop()
			purger.Stop(stopCtx)
		}()
	}

	// HTTP
	h := handler.NewHandler(ledger, auth, log.With(zap.String("component", "http_handler")))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.SetupRouter(h, jwtManager, log.With(zap.String("component", "http"))),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}
