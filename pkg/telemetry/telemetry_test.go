package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/editorhub/editors/pkg/config"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), &config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_Prometheus(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, &config.TelemetryConfig{
		Enabled:           true,
		PrometheusEnabled: true,
		ServiceName:       "editors-test",
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(ctx)

	counter, err := Meter().Int64Counter("telemetry.test.hits")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(ctx, 3)

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "telemetry_test_hits") {
		t.Errorf("metrics output does not include the counter:\n%s", w.Body.String())
	}
}

func TestSampleRatio(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-1, 1},
		{0.25, 0.25},
		{1, 1},
		{2, 1},
	}
	for _, tt := range tests {
		if got := sampleRatio(tt.in); got != tt.want {
			t.Errorf("sampleRatio(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
