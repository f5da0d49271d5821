package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ebuchanan1123/autopiece/config"
	"github.com/ebuchanan1123/autopiece/db"
	"github.com/ebuchanan1123/autopiece/internal/auth/handler"
	"github.com/ebuchanan1123/autopiece/internal/auth/password"
	repo "github.com/ebuchanan1123/autopiece/internal/auth/repository/postgres"
	"github.com/ebuchanan1123/autopiece/internal/auth/service"
)

func main() {
	cfg := config.MustLoad()

	log := newLogger(cfg.Env)
	defer log.Sync() //nolint:errcheck

	dbPool, err := db.NewPostgresPool(context.Background(), cfg)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer dbPool.Close()

	passwords, err := password.NewManager(password.DefaultParams())
	if err != nil {
		log.Fatal("password policy invalid", zap.Error(err))
	}

	repository := repo.NewPostgresRepository(dbPool, cfg.DB.QueryTimeout)
	tokenService := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	sessionService := service.NewSessionService(repository, cfg, log)
	userService := service.NewUserService(repository, tokenService, sessionService, passwords, cfg, log)
	authHandler := handler.NewAuthHandler(userService, tokenService, cfg)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler)

	log.Info("listening", zap.String("addr", cfg.HTTP.Addr()))
	if err := app.Listen(cfg.HTTP.Addr()); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	if env == "production" {
		log, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}

		return log
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	return log
}
