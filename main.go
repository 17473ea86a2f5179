package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/plantid/internal/auth"
	"github.com/example/plantid/internal/config"
	"github.com/example/plantid/internal/handlers"
	"github.com/example/plantid/internal/health"
	"github.com/example/plantid/internal/logging"
	"github.com/example/plantid/internal/media"
	"github.com/example/plantid/internal/plantnet"
	"github.com/example/plantid/internal/repository"
	"github.com/example/plantid/internal/session"
	"github.com/example/plantid/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg, logger)
	users := repository.NewUserRepository(db, logger)
	history := repository.NewIdentificationRepository(db, logger)
	if err := users.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate users failed", zap.Error(err))
	}
	if err := history.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate identification logs failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
	defer redisClient.Close()
	sessions := session.NewRedisStore(redisClient, logger)

	if cfg.PlantNetAPIKey == "" {
		logger.Warn("PLANTNET_API_KEY is not set; identification requests will be rejected upstream")
	}
	store := media.NewLocalStore(cfg.MediaRoot, cfg.MediaURL, logger)
	identifier := plantnet.NewClient(plantnet.Config{
		BaseURL: cfg.PlantNetBaseURL,
		APIKey:  cfg.PlantNetAPIKey,
	}, logger)

	identification := usecase.NewIdentificationUseCase(store, identifier, history, logger)
	accounts := usecase.NewAccountUseCase(users, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))

	h := handlers.New(handlers.Options{
		Identifier:    identification,
		Accounts:      accounts,
		Issuer:        auth.NewIssuer(cfg.JWTSecret, cfg.JWTAudience, cfg.SessionTTL),
		Flashes:       sessions,
		Revocations:   sessions,
		Logger:        logger,
		MediaRoot:     cfg.MediaRoot,
		MediaURL:      cfg.MediaURL,
		MaxUploadSize: cfg.MaxUploadSize,
		SecureCookies: cfg.CookieSecure,
	})
	if err := h.RegisterRoutes(r); err != nil {
		logger.Fatal("failed to register routes", zap.Error(err))
	}

	var grpcHealth *health.GRPCServer
	if cfg.GRPCHealthAddr != "" {
		grpcHealth = startGRPCHealth(cfg.GRPCHealthAddr, logger)
		defer grpcHealth.Stop()
	}

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("plant identifier listening", zap.String("addr", cfg.Addr), zap.String("media_root", cfg.MediaRoot))
	if grpcHealth != nil {
		grpcHealth.SetServing(true)
	}
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *gorm.DB {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err), zap.String("driver", cfg.DatabaseDriver))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func startGRPCHealth(addr string, logger *zap.Logger) *health.GRPCServer {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to listen for gRPC health", zap.Error(err), zap.String("addr", addr))
	}
	srv := health.NewGRPCServer(logger)
	go func() {
		if err := srv.Serve(listener); err != nil {
			logger.Error("gRPC health service stopped", zap.Error(err))
		}
	}()
	return srv
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
