package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/marketplace-cart/internal/adapter/handler"
	"github.com/rl1809/marketplace-cart/internal/adapter/storage"
	"github.com/rl1809/marketplace-cart/internal/config"
	"github.com/rl1809/marketplace-cart/internal/core/service"
	"github.com/rl1809/marketplace-cart/internal/logging"
	"github.com/rl1809/marketplace-cart/internal/port"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile  string
		httpAddr string
		grpcAddr string
		backend  string
		slotKey  string
	)

	cmd := &cobra.Command{
		Use:          "cart-server",
		Short:        "Serve the marketplace cart store over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("http-addr") {
				cfg.HTTPAddr = httpAddr
			}
			if flags.Changed("grpc-addr") {
				cfg.GRPCAddr = grpcAddr
			}
			if flags.Changed("storage") {
				cfg.Storage = backend
			}
			if flags.Changed("slot-key") {
				cfg.SlotKey = slotKey
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC health listen address")
	cmd.Flags().StringVar(&backend, "storage", config.BackendRedis, "storage backend: memory, redis, mysql or mongo")
	cmd.Flags().StringVar(&slotKey, "slot-key", service.DefaultSlotKey, "persistence slot key")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	// Initialize storage
	backend, closeBackend, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	cartStorage := storage.NewBreakerStorage(backend, storage.BreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		OpenTimeout:      cfg.BreakerTimeout,
	}, logger)

	// Initialize service and hydrate the cart
	cartService := service.NewCartService(cartStorage, service.Options{
		SlotKey:     cfg.SlotKey,
		QueueSize:   cfg.PersistQueueSize,
		LoadTimeout: cfg.InitTimeout,
		Logger:      logger,
	})

	initCtx, initCancel := context.WithTimeout(ctx, cfg.InitTimeout)
	err = cartService.Initialize(initCtx)
	initCancel()
	if err != nil {
		return fmt.Errorf("initialize cart: %w", err)
	}

	// Start the single persister
	persister := service.NewPersister(cartStorage, cfg.SlotKey, service.PersisterConfig{
		MaxRetries:    cfg.PersistMaxRetries,
		RetryInterval: cfg.PersistRetryInterval,
		Timeout:       cfg.PersistTimeout,
	}, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		persister.Run(cartService.GetPersistQueue())
	}()
	logger.Info("started persister")

	// Initialize gRPC health server
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	reporter := handler.NewHealthReporter(healthServer, cartService)
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	go reporter.Watch(watchCtx, 5*time.Second)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	go func() {
		logger.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Error("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(cartService, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(),
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	reporter.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close the queue and let the persister flush what is left
	cartService.Close()
	wg.Wait()
	logger.WithField("version", persister.LastWritten()).Info("persister stopped")

	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (port.CartStorage, func(), error) {
	switch cfg.Storage {
	case config.BackendMemory:
		logger.Warn("using in-memory storage, cart will not survive restarts")
		return storage.NewMemoryAdapter(), func() {}, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("connected to redis")
		return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil

	case config.BackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql")
		return adapter, func() { db.Close() }, nil

	case config.BackendMongo:
		db, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to mongodb")
		return storage.NewMongoAdapter(db), func() { db.Client().Disconnect(context.Background()) }, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Storage)
}
