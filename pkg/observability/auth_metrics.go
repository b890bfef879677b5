package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/prperemyshlev/gamelib-auth"

// AuthMetrics counts auth operations by outcome
type AuthMetrics struct {
	operations metric.Int64Counter
}

// NewAuthMetrics registers the auth instruments on the given provider.
// The counter is exported to Prometheus as auth_operations_total.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	meter := provider.Meter(meterName)

	operations, err := meter.Int64Counter("auth_operations",
		metric.WithDescription("Number of auth operations by operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth operations counter: %w", err)
	}

	return &AuthMetrics{operations: operations}, nil
}

// Record counts one operation. A nil receiver records nothing.
func (m *AuthMetrics) Record(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
