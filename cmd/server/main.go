package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/prperemyshlev/gamelib-auth/internal/app"
	"github.com/prperemyshlev/gamelib-auth/internal/config"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run serves until SIGINT or SIGTERM cancels the root context
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	infra, err := app.NewInfrastructure(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize infrastructure: %w", err)
	}
	logger := infra.Logger()

	application, err := app.NewApp(infra, cfg)
	if err != nil {
		logger.Error("Failed to build application", zap.Error(err))
		return errors.Join(err, infra.Shutdown(context.Background()))
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.Server.Address()),
		zap.Bool("expose_otp", cfg.Security.ExposeOTP),
		zap.Duration("otp_ttl", cfg.Secrets.OTPTTL.Duration),
		zap.Duration("otp_cooldown", cfg.Secrets.OTPCooldown.Duration),
	)

	return application.Run(ctx)
}
