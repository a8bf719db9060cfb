package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/cinexpo/cinexpo-backend/internal/adapter/cache"
	grpcadapter "github.com/cinexpo/cinexpo-backend/internal/adapter/grpc"
	"github.com/cinexpo/cinexpo-backend/internal/adapter/hive"
	"github.com/cinexpo/cinexpo-backend/internal/adapter/qrcode"
	"github.com/cinexpo/cinexpo-backend/internal/adapter/repository/postgres"
	"github.com/cinexpo/cinexpo-backend/internal/adapter/repository/sqlite"
	"github.com/cinexpo/cinexpo-backend/internal/adapter/rest"
	"github.com/cinexpo/cinexpo-backend/internal/config"
	"github.com/cinexpo/cinexpo-backend/internal/domain"
	"github.com/cinexpo/cinexpo-backend/internal/logger"
	"github.com/cinexpo/cinexpo-backend/internal/metrics"
	"github.com/cinexpo/cinexpo-backend/internal/usecase/issuance"
	"github.com/cinexpo/cinexpo-backend/internal/usecase/lookup"
	"github.com/cinexpo/cinexpo-backend/internal/usecase/redemption"
	"github.com/cinexpo/cinexpo-backend/internal/usecase/verification"
)

func main() {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if code := finish(log, run(cfg, log)); code != 0 {
		os.Exit(code)
	}
}

// finish logs how run ended and flushes the logger before the process exits
func finish(log *zap.Logger, err error) int {
	defer func() { _ = log.Sync() }()

	if err != nil {
		log.Error("server exited with error", zap.Error(err))
		return 1
	}
	log.Info("server stopped")
	return 0
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting", zap.String("app", cfg.App.Name), zap.String("version", cfg.App.Version))

	// 1. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	// 2. Ticket store
	ticketRepo, closer, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	// 3. Payment rules
	spec, err := domain.NewPaymentSpec(cfg.Payment.Destination, cfg.Payment.Amount, cfg.Payment.Currency)
	if err != nil {
		return fmt.Errorf("invalid payment config: %w", err)
	}
	log.Info("payment spec loaded",
		zap.String("destination", spec.DestinationAccount),
		zap.String("amount", domain.FormatAmount(spec.Amount)),
		zap.String("currency", spec.Currency))

	// 4. Chain resolver, optionally behind the redis cache
	hiveClient, err := hive.NewClient(hive.Config{
		Nodes:             cfg.Hive.Nodes,
		RequestTimeout:    cfg.Hive.RequestTimeout,
		RequestsPerSecond: cfg.Hive.RequestsPerSecond,
		Burst:             cfg.Hive.Burst,
	}, log.Named("hive"), recorder)
	if err != nil {
		return fmt.Errorf("failed to create hive client: %w", err)
	}

	var resolver domain.TransactionResolver = hiveClient
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		resolver = cache.NewCachingResolver(hiveClient, cache.NewRedisCache(redisClient), cfg.Redis.TTL, log.Named("cache"))
		log.Info("resolver cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	// 5. Services (use cases)
	verifier := verification.NewVerifier(resolver, spec)
	issuanceService := issuance.NewIssuanceService(
		ticketRepo,
		verifier,
		qrcode.NewEncoder(cfg.Payment.QRSize),
		spec,
		cfg.Hive.ResolveTimeout,
		recorder,
	)
	redemptionService := redemption.NewRedemptionService(ticketRepo, redemption.NewAllowList(cfg.Admin.Usernames), recorder)
	lookupService := lookup.NewLookupService(ticketRepo)

	// 6. HTTP server
	limiter := rest.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, log.Named("ratelimit"))
	go limiter.Run(ctx)

	handler := rest.NewHandler(issuanceService, redemptionService, lookupService, log.Named("http"))
	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: rest.NewRouter(handler, rest.RouterConfig{
			RateLimiter:       limiter,
			Gatherer:          registry,
			AllowedOrigins:    cfg.HTTP.AllowedOrigins,
			TrustProxyHeaders: cfg.HTTP.TrustProxyHeaders,
			Logger:            log.Named("http"),
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// 7. gRPC server
	var grpcServer *grpclib.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpclib.NewServer(
			grpclib.UnaryInterceptor(grpcadapter.LoggingInterceptor(log.Named("grpc"))),
		)
		grpcadapter.RegisterTicketServiceServer(grpcServer, grpcadapter.NewServer(issuanceService, redemptionService, lookupService))
		reflection.Register(grpcServer)

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Addr, err)
		}

		go func() {
			log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, shutting down gracefully")
	case err := <-errCh:
		log.Error("server failed, shutting down", zap.Error(err))
		shutdown(httpServer, grpcServer, cfg.HTTP.ShutdownTimeout, log)
		return err
	}

	shutdown(httpServer, grpcServer, cfg.HTTP.ShutdownTimeout, log)
	return nil
}

// openStore opens the configured ticket store and ensures its schema
func openStore(ctx context.Context, cfg config.Storage, log *zap.Logger) (domain.TicketRepository, io.Closer, error) {
	switch cfg.Driver {
	case config.StorageDriverPostgres:
		db, err := connectPostgres(ctx, cfg.PostgresDSN(), log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("using postgres ticket store")
		return postgres.NewTicketRepository(db, domain.SystemClock{}), db, nil

	case config.StorageDriverSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, domain.SystemClock{})
		if err != nil {
			return nil, nil, err
		}
		log.Info("using sqlite ticket store", zap.String("path", cfg.SQLitePath))
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// connectPostgres retries while the database container is still starting
func connectPostgres(ctx context.Context, dsn string, log *zap.Logger) (*postgres.DB, error) {
	const attempts = 5

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := postgres.NewDB(dsn)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Warn("database not ready", zap.Int("attempt", i), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to database: %w", lastErr)
}

func shutdown(httpServer *http.Server, grpcServer *grpclib.Server, timeout time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
	}
}
