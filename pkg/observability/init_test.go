package observability_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
)

func quietConfig() observability.Config {
	cfg := observability.DefaultConfig()
	cfg.LogOutput = io.Discard

	return cfg
}

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(quietConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	require.NotNil(t, providers.Shutdown)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_NoopSpanIsValid(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(quietConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	ctx, span := providers.Tracer.Start(context.Background(), "tree.build")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

func TestInit_TreeMetricsOnNoopMeter(t *testing.T) {
	t.Parallel()

	cfg := quietConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "test"
	cfg.Mode = observability.ModeBench

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	tm, err := observability.NewTreeMetrics(providers.Meter)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		tm.RecordTree(context.Background(), observability.TreeSample{Name: "default", Inserts: 1})
	})
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "api-key=secret", want: map[string]string{"api-key": "secret"}},
		{
			name: "multiple with spaces",
			raw:  " a = 1 , b=2",
			want: map[string]string{"a": "1", "b": "2"},
		},
		{name: "no separator", raw: "garbage", want: nil},
		{name: "mixed", raw: "garbage,k=v", want: map[string]string{"k": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.raw))
		})
	}
}

func TestInit_WithEndpointBuildsExporters(t *testing.T) {
	t.Parallel()

	cfg := quietConfig()
	cfg.OTLPEndpoint = "localhost:4317"
	cfg.OTLPInsecure = true
	cfg.OTLPHeaders = map[string]string{"api-key": "secret"}
	cfg.ShutdownTimeoutSec = 1

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	_, span := providers.Tracer.Start(context.Background(), "tree.insert")
	span.End()

	// Nothing listens on the endpoint; the flush may fail but must return.
	_ = providers.Shutdown(context.Background())
}
