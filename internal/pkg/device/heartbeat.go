package device

import (
	"sync"
	"time"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

// heartbeatMonitor tracks liveness of the remote device. Loss is edge triggered:
// check reports true once per episode and re-arms only after a heartbeat arrives.
type heartbeatMonitor struct {
	mu           sync.Mutex
	lastReceived time.Time
	timedOut     bool
	timeout      time.Duration
	now          func() time.Time
}

func newHeartbeatMonitor(timeout time.Duration) *heartbeatMonitor {
	return &heartbeatMonitor{
		lastReceived: time.Now(),
		timeout:      timeout,
		now:          time.Now,
	}
}

func (h *heartbeatMonitor) received() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastReceived = h.now()
	h.timedOut = false
}

// check returns true when the device has just been declared lost.
func (h *heartbeatMonitor) check() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timedOut || h.now().Sub(h.lastReceived) <= h.timeout {
		return false
	}
	h.timedOut = true
	return true
}

func (h *heartbeatMonitor) isTimedOut() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timedOut
}

// outboundHeartbeat announces this side as a ground control station.
func outboundHeartbeat(systemID, componentID uint8) (model.Message, error) {
	return model.NewMessage(model.MessageIDHeartbeat, systemID, componentID, model.Heartbeat{
		Type: model.VehicleTypeGCS,
	})
}
