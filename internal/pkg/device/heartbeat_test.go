package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

func TestHeartbeatMonitor_EdgeTriggered(t *testing.T) {
	clock := newFakeClock()
	h := newHeartbeatMonitor(3 * time.Second)
	h.now = clock.Now
	h.received()

	clock.Advance(2 * time.Second)
	assert.False(t, h.check())

	clock.Advance(1500 * time.Millisecond)
	assert.True(t, h.check())
	assert.True(t, h.isTimedOut())

	for range 10 {
		clock.Advance(time.Second)
		assert.False(t, h.check(), "loss must fire once per episode")
	}

	h.received()
	assert.False(t, h.isTimedOut())
	assert.False(t, h.check())

	clock.Advance(4 * time.Second)
	assert.True(t, h.check())
}

func TestOutboundHeartbeat(t *testing.T) {
	msg, err := outboundHeartbeat(245, 190)
	require.NoError(t, err)
	assert.Equal(t, model.MessageIDHeartbeat, msg.ID)
	assert.Equal(t, uint8(245), msg.SystemID)
	assert.Equal(t, uint8(190), msg.ComponentID)

	var hb model.Heartbeat
	require.NoError(t, msg.Decode(&hb))
	assert.Equal(t, model.VehicleTypeGCS, hb.Type)
}
