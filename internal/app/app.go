package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/gamelib-auth/internal/config"
	"github.com/prperemyshlev/gamelib-auth/internal/handler"
	"github.com/prperemyshlev/gamelib-auth/internal/notify"
	"github.com/prperemyshlev/gamelib-auth/internal/repository"
	"github.com/prperemyshlev/gamelib-auth/internal/secrets"
	"github.com/prperemyshlev/gamelib-auth/internal/service"
	"github.com/prperemyshlev/gamelib-auth/internal/token"
	"github.com/prperemyshlev/gamelib-auth/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
	serviceName     = "gamelib-auth"
)

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	repos := repository.NewRepositories(infra.Postgres())

	store := secrets.NewStore(infra.Redis(), secrets.TTLs{
		OTP:          cfg.Secrets.OTPTTL.Duration,
		RefreshToken: cfg.JWT.RefreshTokenExpiry.Duration,
		ResetToken:   cfg.JWT.ResetTokenExpiry.Duration,
		NewEmail:     cfg.Secrets.NewEmailTTL.Duration,
	})
	cooldown := secrets.NewCooldown(infra.Redis(), cfg.Secrets.OTPCooldown.Duration)

	issuer := token.NewIssuer(token.Config{
		AccessSecret:       cfg.JWT.AccessSecret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry.Duration,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry.Duration,
		ResetTokenExpiry:   cfg.JWT.ResetTokenExpiry.Duration,
	})

	authService := service.NewAuthService(repos.Account, store, issuer, cooldown, cfg.Security.BCryptCost)

	metrics, err := observability.NewAuthMetrics(infra.MeterProvider())
	if err != nil {
		return nil, err
	}

	authHandler := handler.NewAuthHandler(
		authService,
		notify.NewLogSender(infra.Logger()),
		metrics,
		infra.Logger(),
		handler.Config{
			ExposeOTP:          cfg.Security.ExposeOTP,
			SecureCookies:      cfg.Env == "production",
			AccessTokenExpiry:  issuer.AccessTokenExpiry(),
			RefreshTokenExpiry: int(issuer.RefreshTokenExpiry().Seconds()),
		},
	)

	healthChecker := NewHealthChecker(infra)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS))

	router.GET("/metrics", observability.PrometheusHandler(infra.MetricsHandler()))
	router.GET("/health", healthChecker.Handler)
	authHandler.RegisterRoutes(router.Group("/api/v1"))

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("addr", a.server.Addr),
			zap.String("env", a.config.Env),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// infrastructure goes last so in-flight requests can finish with it
	if err := a.infra.Shutdown(ctx); err != nil {
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
