package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"streamwatch/internal/config"
	"streamwatch/internal/db"
	"streamwatch/internal/email"
	apihttp "streamwatch/internal/http"
	"streamwatch/internal/repository"
	"streamwatch/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := db.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	watchRepo := repository.NewPgWatchlistRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var verifyStore service.VerificationStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			verifyStore = service.NewRedisVerificationStore(redisClient)
		}
		cancel()
	}

	tokenSvc := service.NewTokenService(cfg.SecretKey, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	verifySvc := service.NewVerificationService(verifyStore)
	authSvc := service.NewAuthService(logger, userRepo, emailSender, verifySvc, tokenSvc)
	watchSvc := service.NewWatchlistService(logger, watchRepo)

	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	watchHandler := apihttp.NewWatchlistHandler(logger, watchSvc)
	router := apihttp.NewRouter(logger, authHandler, watchHandler, tokenSvc, cfg.TemplatesGlob)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
