package observability //nolint:testpackage // sampler is unexported.

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		envName string
		envArg  string
		ratio   float64
		want    string
	}{
		{name: "always on", envName: samplerAlwaysOn, want: "AlwaysOnSampler"},
		{name: "always off", envName: samplerAlwaysOff, want: "AlwaysOffSampler"},
		{name: "ratio env", envName: samplerTraceIDRatio, envArg: "0.25", want: "TraceIDRatioBased{0.25}"},
		{name: "parent ratio env", envName: samplerParentBasedTraceIDRatio, envArg: "0.5", want: "ParentBased{root:TraceIDRatioBased{0.5}"},
		{name: "config ratio", ratio: 0.1, want: "ParentBased{root:TraceIDRatioBased{0.1}"},
		{name: "default", want: "ParentBased{root:AlwaysOnSampler"},
		{name: "unknown env", envName: "jaeger_remote", ratio: 0.1, want: "ParentBased{root:AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Contains(t, sampler(tt.envName, tt.envArg, tt.ratio).Description(), tt.want)
		})
	}
}

func TestParseRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, parseRatio(""), 0)
	assert.InDelta(t, 1.0, parseRatio("nope"), 0)
	assert.InDelta(t, 0.3, parseRatio("0.3"), 1e-9)
}
