package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/smilequote-backend/api"
	"github.com/angelmondragon/smilequote-backend/api/routes"
	"github.com/angelmondragon/smilequote-backend/internal/auth"
	"github.com/angelmondragon/smilequote-backend/internal/catalog"
	"github.com/angelmondragon/smilequote-backend/internal/promotions"
	"github.com/angelmondragon/smilequote-backend/internal/quotes"
	"github.com/angelmondragon/smilequote-backend/internal/users"
	"github.com/angelmondragon/smilequote-backend/pkg/auth/session"
	"github.com/angelmondragon/smilequote-backend/pkg/config"
	"github.com/angelmondragon/smilequote-backend/pkg/db"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/angelmondragon/smilequote-backend/pkg/instance"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/metrics"
	"github.com/angelmondragon/smilequote-backend/pkg/migrate"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox"
	"github.com/angelmondragon/smilequote-backend/pkg/redis"
	"github.com/angelmondragon/smilequote-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Hasher:         security.NewHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	pricingMetrics := metrics.NewPricingMetrics(prometheus.DefaultRegisterer)

	promoRepo := promotions.NewRepository(dbClient.DB())
	promoStore := promotions.NewCachedStore(promoRepo, redisClient, cfg.Pricing.PromotionCacheTTL, logg)
	resolver, err := promotions.NewResolver(promoStore)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion resolver", err)
		os.Exit(1)
	}
	promoService, err := promotions.NewService(promotions.ServiceParams{
		Repo:     promoRepo,
		Resolver: resolver,
		Cache:    promoStore,
		Metrics:  pricingMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), redisClient, cfg.Pricing.CatalogCacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	quoteService, err := quotes.NewService(quotes.ServiceParams{
		Repo:      quotes.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Resolver:  resolver,
		Catalog:   catalogService,
		Outbox:    outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Metrics:   pricingMetrics,
		Logger:    logg,
		Currency:  enums.Currency(cfg.Pricing.Currency),
		Tolerance: cfg.Pricing.TotalsTolerance,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quote service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(routes.Params{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		RateLimiter: redisClient,
		Sessions:    sessionManager,
		Gatherer:    prometheus.DefaultGatherer,
		Auth:        authService,
		Quotes:      quoteService,
		Promotions:  promoService,
		Catalog:     catalogService,
	})

	if err := api.Serve(ctx, api.NewServer(cfg, addr, handler), logg, cfg.Service.ShutdownTimeout); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
