package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_EmptyEndpointIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), "  ", "sms-relay")
	require.NoError(t, err)
	require.NotNil(t, p.TracerProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestGRPCTarget(t *testing.T) {
	testCases := []struct {
		endpoint     string
		wantTarget   string
		wantInsecure bool
	}{
		{"localhost:4317", "localhost:4317", true},
		{"http://collector:4317/v1/traces", "collector:4317", true},
		{"https://otel.example.com:4317", "otel.example.com:4317", false},
	}
	for _, tc := range testCases {
		t.Run(tc.endpoint, func(t *testing.T) {
			target, insecure, err := grpcTarget(tc.endpoint)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTarget, target)
			assert.Equal(t, tc.wantInsecure, insecure)
		})
	}
}

func TestGRPCTarget_MissingHost(t *testing.T) {
	_, _, err := grpcTarget("http://")
	assert.Error(t, err)
}
