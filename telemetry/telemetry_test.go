package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/wsgateway/gateway/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{}, "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
