package acceptance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/prperemyshlev/gamelib-auth/internal/app"
	"github.com/prperemyshlev/gamelib-auth/internal/config"
	"github.com/prperemyshlev/gamelib-auth/pkg/database"
	"github.com/prperemyshlev/gamelib-auth/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// testInfrastructure hands the suite's connections to the application.
// The suite owns them, so Shutdown leaves them open.
type testInfrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

var _ app.Infrastructure = (*testInfrastructure)(nil)

func (i *testInfrastructure) Postgres() *database.Postgres { return i.postgres }
func (i *testInfrastructure) Redis() *database.Redis { return i.redis }
func (i *testInfrastructure) Logger() *zap.Logger { return i.logger }
func (i *testInfrastructure) MetricsHandler() http.Handler { return i.metricsHandler }
func (i *testInfrastructure) MeterProvider() *metric.MeterProvider { return i.meterProvider }

func (i *testInfrastructure) Shutdown(ctx context.Context) error {
	return i.meterProvider.Shutdown(ctx)
}

// TestApp is the application served over a real listener
type TestApp struct {
	Config  *config.Config
	Server  *httptest.Server
	BaseURL string
	infra   *testInfrastructure
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:       "acceptance-access-secret-0123456789abcdef",
			RefreshSecret:      "acceptance-refresh-secret-0123456789abcdef",
			AccessTokenExpiry:  config.Duration{Duration: 15 * time.Minute},
			RefreshTokenExpiry: config.Duration{Duration: 30 * 24 * time.Hour},
			ResetTokenExpiry:   config.Duration{Duration: 15 * time.Minute},
		},
		Secrets: config.SecretsConfig{
			OTPTTL:      config.Duration{Duration: 5 * time.Minute},
			NewEmailTTL: config.Duration{Duration: 5 * time.Minute},
			OTPCooldown: config.Duration{Duration: 2 * time.Minute},
		},
		Security: config.SecurityConfig{
			BCryptCost: 4,
			ExposeOTP:  true,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Env: "test",
	}
}

// NewTestApp builds the application exactly as main does, on the given connections
func NewTestApp(postgres *database.Postgres, redis *database.Redis) (*TestApp, error) {
	meterProvider, metricsHandler, err := observability.InitTelemetry("gamelib-auth-test")
	if err != nil {
		return nil, err
	}

	infra := &testInfrastructure{
		postgres:       postgres,
		redis:          redis,
		logger:         zap.NewNop(),
		metricsHandler: metricsHandler,
		meterProvider:  meterProvider,
	}

	cfg := testConfig()
	application, err := app.NewApp(infra, cfg)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background())
		return nil, err
	}

	server := httptest.NewServer(application.Router())

	return &TestApp{
		Config:  cfg,
		Server:  server,
		BaseURL: server.URL,
		infra:   infra,
	}, nil
}

// Close stops the server
func (a *TestApp) Close() error {
	a.Server.Close()
	return a.infra.Shutdown(context.Background())
}
