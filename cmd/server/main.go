package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/inventory-booking/internal/adapter/handler"
	"github.com/rl1809/inventory-booking/internal/adapter/messaging"
	"github.com/rl1809/inventory-booking/internal/adapter/storage"
	"github.com/rl1809/inventory-booking/internal/config"
	"github.com/rl1809/inventory-booking/internal/core/service"
	"github.com/rl1809/inventory-booking/internal/obs"
	"github.com/rl1809/inventory-booking/migrations"
)

var initTracer = obs.InitTracer

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := obs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := initTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer flushCancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	// Initialize MySQL
	db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, storage.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to mysql")

	if cfg.RunMigrations {
		if err := migrations.Apply(ctx, db); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	opts := []service.Option{
		service.WithMaxBookings(cfg.MaxBookings),
		service.WithEventQueueSize(cfg.EventQueueSize),
		service.WithLogger(logger),
	}

	// Initialize Redis
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		redisAdapter := storage.NewRedisAdapter(rdb)
		if err := redisAdapter.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		opts = append(opts, service.WithIdempotency(redisAdapter))
		logger.Info("connected to redis, idempotency keys enabled")
	}

	publisher, err := messaging.NewPublisher(messaging.Config{
		Broker:         cfg.EventBroker,
		RabbitURL:      cfg.RabbitURL,
		RabbitExchange: cfg.RabbitExchange,
		KafkaBrokers:   cfg.KafkaBrokers,
		KafkaTopic:     cfg.KafkaTopic,
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	bookingService := service.NewBookingService(service.Repositories{
		Tx:        mysqlAdapter,
		Members:   mysqlAdapter,
		Inventory: mysqlAdapter,
		Bookings:  mysqlAdapter,
	}, opts...)

	// Start worker pool
	pool := messaging.NewWorkerPool(publisher, logger)
	pool.Start(cfg.EventWorkers, bookingService.Events())

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterBookingServiceServer(grpcServer, handler.NewGRPCHandler(bookingService, logger))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.BookingServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewHTTPHandler(bookingService, logger).Routes(),
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		logger.Error("server failed, shutting down", zap.Error(serveErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close event queue and wait for workers to flush it
	bookingService.Close()
	pool.Wait()
	logger.Info("workers stopped")

	return serveErr
}
