package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/modelia/modelia-api/internal/config"
	"github.com/modelia/modelia-api/internal/domain/credit"
	"github.com/modelia/modelia-api/internal/domain/payment"
	"github.com/modelia/modelia-api/internal/domain/transaction"
	"github.com/modelia/modelia-api/internal/domain/user"
	"github.com/modelia/modelia-api/internal/middleware"
	"github.com/modelia/modelia-api/internal/pkg/alert"
	"github.com/modelia/modelia-api/internal/pkg/database"
	"github.com/modelia/modelia-api/internal/pkg/exchange"
	"github.com/modelia/modelia-api/internal/pkg/jwt"
	"github.com/modelia/modelia-api/internal/pkg/logger"
	"github.com/modelia/modelia-api/internal/pkg/paytr"
	"github.com/modelia/modelia-api/internal/pkg/response"
	"github.com/modelia/modelia-api/internal/pkg/stripeapi"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Modelia API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	floorRatio, err := decimal.NewFromString(cfg.PriceFloorRatio)
	if err != nil {
		log.Fatal().Str("value", cfg.PriceFloorRatio).Msg("Invalid PRICE_FLOOR_RATIO")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)
	creditRepo := credit.NewRepository(db)

	// ---------- Provider clients ----------
	paytrCfg := paytr.Config{
		MerchantID:   cfg.PayTRMerchantID,
		MerchantKey:  cfg.PayTRMerchantKey,
		MerchantSalt: cfg.PayTRMerchantSalt,
		TestMode:     cfg.PayTRTestMode,
		Timeout:      cfg.PayTRTimeout,
	}
	paytrClient := paytr.NewClient(paytrCfg)

	stripeClient := stripeapi.NewClient(stripeapi.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		BaseURL:       cfg.StripeBaseURL,
		Timeout:       cfg.StripeTimeout,
	})

	rates := exchange.NewClient(cfg.ExchangeBaseURL, redis, cfg.ExchangeCacheTTL)
	alerts := alert.NewService(cfg.AlertWebhookURL)

	// ---------- Services ----------
	paymentService := payment.NewService(
		transactionRepo,
		creditRepo,
		userRepo,
		paytrClient,
		stripeClient,
		rates,
		alerts,
		payment.Config{
			PayTR:          paytrCfg,
			FloorRatio:     floorRatio,
			StripeCurrency: cfg.StripeCurrency,
			OkURL:          cfg.FrontendURL + "/payment/success",
			FailURL:        cfg.FrontendURL + "/payment/failed",
		},
	)
	// ---------- Handlers ----------
	paymentHandler := payment.NewHandler(paymentService)
	creditHandler := credit.NewHandler(creditRepo)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
	})

	// Provider callbacks authenticate by signature, not by session
	r.Mount("/webhooks", paymentHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
