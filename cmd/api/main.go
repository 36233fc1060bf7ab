package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stayreserve/internal/authz"
	"stayreserve/internal/availability"
	"stayreserve/internal/config"
	"stayreserve/internal/database"
	"stayreserve/internal/events"
	"stayreserve/internal/lock"
	"stayreserve/internal/metrics"
	"stayreserve/internal/middleware"
	"stayreserve/internal/modules/booking"
	jwtsvc "stayreserve/internal/pkg/jwt"
	"stayreserve/internal/pkg/logger"
	"stayreserve/internal/repository"
	"stayreserve/internal/reservation"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, logg)
	if err != nil {
		return err
	}

	bookingRepo := repository.NewBookingRepository(db)
	apartmentRepo := repository.NewApartmentRepository(db)
	if err := bookingRepo.Migrate(ctx); err != nil {
		return err
	}
	if !cfg.IsProdLike() {
		// the catalog owns this table in production
		if err := apartmentRepo.Migrate(ctx); err != nil {
			return err
		}
	}

	locker, reloadUnderLock, closeLocker, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	publisher, closePublisher, err := newPublisher(cfg, logg)
	if err != nil {
		return err
	}
	defer closePublisher()

	feed := events.NewFeed(logg)
	metrics.Register()

	arbiter := reservation.NewArbiter(bookingRepo, apartmentRepo, availability.NewIndex(), locker, logg,
		reservation.Options{ReloadUnderLock: reloadUnderLock})
	if err := arbiter.Warm(ctx); err != nil {
		return err
	}

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	bookingService := booking.NewService(arbiter, bookingRepo, authz.NewGate(), events.Multi{publisher, feed}, logg)
	bookingHandler := booking.NewHandler(bookingService)

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logg)
	go sweepLimiter(ctx, limiter)

	r := gin.New()
	r.Use(middleware.RequestLogger(logg))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	events.NewFeedHandler(feed, cfg.CORSAllowedOrigins).RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	v1.Use(limiter.Middleware(), middleware.JWTAuth(j))
	bookingHandler.RegisterRoutes(v1)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("lock_backend", cfg.LockBackend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLocker(cfg *config.Config) (lock.Locker, bool, func(), error) {
	if cfg.LockBackend != config.LockBackendRedis {
		return lock.NewMemoryLocker(cfg.LockWaitTimeout), false, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, false, nil, err
	}

	locker := lock.NewRedisLocker(client, lock.RedisOptions{
		TTL:  cfg.LockTTL,
		Wait: cfg.LockWaitTimeout,
	})
	// other processes commit to the same store
	return locker, true, func() { _ = client.Close() }, nil
}

func newPublisher(cfg *config.Config, logg *zap.Logger) (events.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		logg.Info("AMQP_URL not set, booking events stay in-process")
		return events.Noop{}, func() {}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

func sweepLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Sweep(now)
		}
	}
}
