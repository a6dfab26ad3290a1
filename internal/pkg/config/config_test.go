package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/dronelink/internal/pkg/device"
	"github.com/anicoll/dronelink/internal/pkg/model"
)

func TestLoadDeviceConfig_Defaults(t *testing.T) {
	cfg, err := LoadDeviceConfig()
	require.NoError(t, err)

	assert.Equal(t, device.DefaultConfig(), cfg.Device())
	assert.Empty(t, cfg.Rates())
}

func TestLoadDeviceConfig_Env(t *testing.T) {
	t.Setenv("DRONELINK_COMMAND_TIMEOUT", "250ms")
	t.Setenv("DRONELINK_HEARTBEAT_TIMEOUT", "5s")
	t.Setenv("DRONELINK_OWN_SYSTEM_ID", "200")
	t.Setenv("DRONELINK_STREAM_RATES", "148:0.5,0:2")

	cfg, err := LoadDeviceConfig()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.CommandTimeout)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, uint8(200), cfg.Device().OwnSystemID)
	assert.Equal(t, map[model.MessageID]float64{
		model.MessageIDAutopilotVersion: 0.5,
		model.MessageIDHeartbeat:        2,
	}, cfg.Rates())
}

func TestLoadDeviceConfig_Invalid(t *testing.T) {
	tests := map[string]struct {
		key, value string
		wantErr    string
	}{
		"zero timeout":        {key: "DRONELINK_COMMAND_TIMEOUT", value: "0s", wantErr: "command timeout must be positive"},
		"slow tick":           {key: "DRONELINK_TICK_INTERVAL", value: "2s", wantErr: "heartbeat interval must not be shorter"},
		"zero own system id":  {key: "DRONELINK_OWN_SYSTEM_ID", value: "0", wantErr: "own system id must not be 0"},
		"unparseable":         {key: "DRONELINK_HEARTBEAT_TIMEOUT", value: "soon", wantErr: "failed to parse device config"},
		"system id too large": {key: "DRONELINK_OWN_SYSTEM_ID", value: "300", wantErr: "failed to parse device config"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadDeviceConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
