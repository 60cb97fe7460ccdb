package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Quint4n4/MenuInteractivo/config"
	"github.com/Quint4n4/MenuInteractivo/internal/catalog"
	"github.com/Quint4n4/MenuInteractivo/internal/database"
	"github.com/Quint4n4/MenuInteractivo/internal/database/memory"
	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
	"github.com/Quint4n4/MenuInteractivo/internal/metrics"
	"github.com/Quint4n4/MenuInteractivo/internal/observability"
	"github.com/Quint4n4/MenuInteractivo/internal/rpc"
	"github.com/Quint4n4/MenuInteractivo/internal/services/clinic"
	"github.com/Quint4n4/MenuInteractivo/internal/services/feedback"
	"github.com/Quint4n4/MenuInteractivo/internal/services/inventory"
	"github.com/Quint4n4/MenuInteractivo/internal/services/orders"
	"github.com/Quint4n4/MenuInteractivo/internal/services/orders/handler"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := config.NewLogger(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Otel.ServiceName, cfg.Otel.Endpoint)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, db := openStore(cfg, logger)

	var rdb *redis.Client
	if c, err := config.NewRedisClient(ctx, cfg.Redis); err != nil {
		logger.Warn("⚠️ Redis unavailable, catalog cache and cross-process fan-out disabled", zap.Error(err))
	} else {
		rdb = c
		defer rdb.Close()
	}

	// Without Redis events only reach subscribers of this process; there
	// are none, so they are dropped after the hub finds no members.
	var publisher fanout.Publisher = fanout.NewHub(logger, m)
	var productCatalog kiosk.Catalog = store
	var cache feedback.Invalidator
	if rdb != nil {
		publisher = fanout.NewRedisRelay(rdb, "", logger)
		cached := catalog.NewCached(store, rdb, cfg.Catalog.CacheTTL, logger, m)
		productCatalog, cache = cached, cached
	}

	dispatcher := fanout.NewDispatcher(publisher, fanout.DispatcherConfig{
		Workers:        cfg.Orders.FanoutWorkers,
		QueueSize:      cfg.Orders.FanoutQueueSize,
		PublishTimeout: cfg.Orders.FanoutPublishTimeout,
	}, logger, m)

	locks := inventory.NewLocker(cfg.Orders.LockWait)
	clinicSvc := clinic.NewService(store, dispatcher, logger)
	ordersSvc := orders.NewService(store, productCatalog, locks, dispatcher, logger, m)
	feedbackSvc := feedback.NewService(store, clinicSvc, cache, logger)

	lis, err := net.Listen("tcp", cfg.Orders.GRPCAddr)
	if err != nil {
		logger.Fatal("Failed to listen", zap.String("addr", cfg.Orders.GRPCAddr), zap.Error(err))
	}

	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	rpc.RegisterOrderServiceServer(s, handler.NewOrdersHandler(ordersSvc, clinicSvc, feedbackSvc, logger))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(s, healthSrv)
	healthSrv.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	reflection.Register(s)

	metricsSrv := &http.Server{
		Addr:              cfg.Orders.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("📈 metrics listening", zap.String("addr", cfg.Orders.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("🧾 orders service listening", zap.String("addr", cfg.Orders.GRPCAddr), zap.String("store", cfg.DB.Driver))
		if err := s.Serve(lis); err != nil {
			logger.Error("Failed to serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down orders service")

	healthSrv.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("fan-out queue not drained", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// openStore returns the configured store and, for postgres, the gorm handle
// so main can close it.
func openStore(cfg config.Config, logger *zap.Logger) (kiosk.Store, *gorm.DB) {
	switch cfg.DB.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		if cfg.AppEnv == "development" {
			seedDemo(store)
			logger.Info("🌱 seeded in-memory store with demo data")
		}
		logger.Warn("⚠️ using in-memory store; state is lost on restart and not shared between instances")
		return store, nil

	case config.DriverPostgres:
		db, err := database.NewConnection(cfg.DB.DSN, database.PoolConfig{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			logger.Fatal("Failed to connect to db", zap.Error(err))
		}
		if err := database.Migrate(db); err != nil {
			logger.Fatal("Failed to migrate kiosk database", zap.Error(err))
		}
		return database.NewStore(db, cfg.Orders.DBLockTimeout), db
	}

	logger.Fatal("Unknown store driver", zap.String("driver", cfg.DB.Driver))
	return nil, nil
}
