package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Quint4n4/MenuInteractivo/config"
	"github.com/Quint4n4/MenuInteractivo/internal/fanout"
	"github.com/Quint4n4/MenuInteractivo/internal/gateway/clients"
	"github.com/Quint4n4/MenuInteractivo/internal/gateway/handlers"
	"github.com/Quint4n4/MenuInteractivo/internal/gateway/middleware"
	"github.com/Quint4n4/MenuInteractivo/internal/metrics"
	"github.com/Quint4n4/MenuInteractivo/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := config.NewLogger(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}
	secret := []byte(cfg.Auth.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, "kiosk-gateway", cfg.Otel.Endpoint)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	grpcClients, err := clients.NewGRPCClients(cfg.Gateway.OrdersServiceURL)
	if err != nil {
		logger.Fatal("Failed to create orders client", zap.Error(err))
	}
	defer grpcClients.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := fanout.NewHub(logger, m)

	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis, websocket fan-out needs it", zap.Error(err))
	}
	defer rdb.Close()
	go runRelay(ctx, fanout.NewRedisRelay(rdb, "", logger), hub, logger)

	kioskLimit, err := middleware.RateLimit(cfg.Gateway.RateLimit)
	if err != nil {
		logger.Fatal("Invalid RATE_LIMIT", zap.String("rate", cfg.Gateway.RateLimit), zap.Error(err))
	}

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.CORS(cfg.Gateway.AllowedOrigins))
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(serviceHealthMiddleware(grpcClients))

	handlers.Routes{
		Kiosk:      handlers.NewKioskHTTPHandler(grpcClients.Orders),
		Staff:      handlers.NewStaffHTTPHandler(grpcClients.Orders),
		WS:         handlers.NewWSHandler(grpcClients.Orders, hub, secret, middleware.OriginAllowed(cfg.Gateway.AllowedOrigins), cfg.Gateway.WSSendBuffer, logger),
		JWTSecret:  secret,
		KioskLimit: kioskLimit,
	}.Register(r)

	r.GET("/health", healthCheckHandler(grpcClients, hub))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	srv := &http.Server{
		Addr:              cfg.Gateway.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("🚪 gateway listening", zap.String("addr", cfg.Gateway.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}

// runRelay keeps the Redis subscription alive, resubscribing with a capped
// backoff until ctx ends.
func runRelay(ctx context.Context, relay *fanout.RedisRelay, hub *fanout.Hub, logger *zap.Logger) {
	backoff := 500 * time.Millisecond
	for {
		err := relay.Run(ctx, hub, nil)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("fan-out relay stopped, resubscribing", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func serviceHealthMiddleware(clients *clients.GRPCClients) gin.HandlerFunc {
	return func(c *gin.Context) {
		if clients.Orders != nil {
			c.Header("X-Orders-Service", "available")
		} else {
			c.Header("X-Orders-Service", "unavailable")
		}
		c.Next()
	}
}

func healthCheckHandler(clients *clients.GRPCClients, hub *fanout.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK
		unavailableServices := []string{}
		if !clients.IsOrdersServiceHealthy(ctx) {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			unavailableServices = append(unavailableServices, "orders")
		}

		c.JSON(httpStatus, gin.H{
			"status":               status,
			"message":              "Server is running",
			"unavailable_services": unavailableServices,
			"staff_connections":    hub.Members(fanout.StaffGroup),
			"timestamp":            time.Now(),
		})
	}
}
