package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/dronelink/internal/pkg/device"
	"github.com/anicoll/dronelink/internal/pkg/model"
)

// autopilot answers capability requests and acks every other command with result.
type autopilot struct {
	t        *testing.T
	session  *Session
	uid      uint64
	result   model.MavResult
	failSend bool

	mu   sync.Mutex
	sent []model.Message
}

func (a *autopilot) Send(msg model.Message) error {
	a.mu.Lock()
	if a.failSend {
		a.mu.Unlock()
		return errors.New("link down")
	}
	a.sent = append(a.sent, msg)
	a.mu.Unlock()

	if msg.ID != model.MessageIDCommandLong {
		return nil
	}
	var cmd model.CommandLong
	if !assert.NoError(a.t, msg.Decode(&cmd)) {
		return nil
	}

	var reply model.Message
	var err error
	switch cmd.Command {
	case model.CommandRequestAutopilotCapabilities:
		reply, err = model.NewMessage(model.MessageIDAutopilotVersion, cmd.TargetSystem, cmd.TargetComponent,
			model.AutopilotVersion{UID: a.uid, Capabilities: model.CapabilityMissionInt})
	default:
		reply, err = model.NewMessage(model.MessageIDCommandAck, cmd.TargetSystem, cmd.TargetComponent,
			model.CommandAck{Command: cmd.Command, Result: a.result})
	}
	if !assert.NoError(a.t, err) {
		return nil
	}
	go a.session.HandleMessage(reply)
	return nil
}

func (a *autopilot) setFailSend(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failSend = fail
}

func testConfig() device.Config {
	return device.Config{
		CommandTimeout:    50 * time.Millisecond,
		HeartbeatTimeout:  60 * time.Millisecond,
		TickInterval:      2 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, ap *autopilot, opts ...Option) *Session {
	t.Helper()
	s := New(ap, testConfig(), append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	ap.t = t
	ap.session = s
	t.Cleanup(s.Close)
	return s
}

func heartbeat(t *testing.T, systemID uint8) model.Message {
	t.Helper()
	msg, err := model.NewMessage(model.MessageIDHeartbeat, systemID, 1, model.Heartbeat{Type: model.VehicleTypeQuadrotor})
	require.NoError(t, err)
	return msg
}

func nextEvent(t *testing.T, s *Session, kind model.EventKind) model.DeviceEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok, "event channel closed")
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
		}
	}
}

func TestSession_Discovery(t *testing.T) {
	hooked := make(chan uint64, 1)
	s := newTestSession(t, &autopilot{uid: 77}, WithDiscoveryHook(func(d *device.Device) {
		hooked <- d.TargetUID()
	}))

	s.HandleMessage(heartbeat(t, 3))

	ev := nextEvent(t, s, model.EventDiscovered)
	assert.Equal(t, uint64(77), ev.UID)
	assert.Equal(t, uint8(3), ev.SystemID)
	assert.Equal(t, uint64(77), <-hooked)

	d, ok := s.Device(77)
	require.True(t, ok)
	assert.True(t, d.SupportsMissionInt())

	infos := s.Devices()
	require.Len(t, infos, 1)
	assert.Equal(t, uint64(77), infos[0].UID)
	assert.Equal(t, uint8(3), infos[0].SystemID)
	assert.Equal(t, uint8(1), infos[0].ComponentID)
	assert.True(t, infos[0].SupportsMissionInt)
	assert.Equal(t, "idle", infos[0].CommandState)
}

func TestSession_OneDevicePerSystemID(t *testing.T) {
	s := newTestSession(t, &autopilot{uid: 5})

	s.HandleMessage(heartbeat(t, 2))
	s.HandleMessage(heartbeat(t, 1))
	s.HandleMessage(heartbeat(t, 2))
	s.HandleMessage(heartbeat(t, 0))

	infos := s.Devices()
	require.Len(t, infos, 2)
	assert.Equal(t, uint8(1), infos[0].SystemID)
	assert.Equal(t, uint8(2), infos[1].SystemID)
}

func TestSession_SendCommand(t *testing.T) {
	tests := map[string]struct {
		result  model.MavResult
		fail    bool
		wantErr error
		want    string
	}{
		"accepted":  {result: model.MavResultAccepted, want: "success"},
		"denied":    {result: model.MavResultDenied, wantErr: device.ErrCommandDenied, want: "command_denied"},
		"link down": {fail: true, wantErr: device.ErrConnection, want: "connection_error"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ap := &autopilot{uid: 9, result: tt.result}
			s := newTestSession(t, ap)
			s.HandleMessage(heartbeat(t, 1))
			nextEvent(t, s, model.EventDiscovered)

			ap.setFailSend(tt.fail)
			err := s.SendCommand(9, 400, device.NewCommandParams(1))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			ev := nextEvent(t, s, model.EventCommand)
			require.NotNil(t, ev.Command)
			assert.Equal(t, model.Command(400), *ev.Command)
			assert.Equal(t, tt.want, ev.Result)
		})
	}
}

func TestSession_UnknownDevice(t *testing.T) {
	s := newTestSession(t, &autopilot{})
	assert.ErrorIs(t, s.SendCommand(1, 400, device.NewCommandParams()), ErrUnknownDevice)
	assert.ErrorIs(t, s.SetMessageRate(1, model.MessageIDHeartbeat, 1), ErrUnknownDevice)
}

func TestSession_SetMessageRate(t *testing.T) {
	ap := &autopilot{uid: 4}
	s := newTestSession(t, ap)
	s.HandleMessage(heartbeat(t, 1))
	nextEvent(t, s, model.EventDiscovered)

	require.NoError(t, s.SetMessageRate(4, model.MessageIDAutopilotVersion, 2))
	ev := nextEvent(t, s, model.EventCommand)
	assert.Equal(t, model.CommandSetMessageInterval, *ev.Command)
}

func TestSession_Lost(t *testing.T) {
	s := newTestSession(t, &autopilot{uid: 12})
	s.HandleMessage(heartbeat(t, 1))
	nextEvent(t, s, model.EventDiscovered)

	ev := nextEvent(t, s, model.EventLost)
	assert.Equal(t, uint64(12), ev.UID)
	assert.True(t, s.Devices()[0].Lost)
}

func TestSession_SendCommandNoAck(t *testing.T) {
	ap := &autopilot{uid: 9, result: model.MavResultDenied}
	s := newTestSession(t, ap)
	s.HandleMessage(heartbeat(t, 1))
	nextEvent(t, s, model.EventDiscovered)

	// the denial never reaches the caller, only the transmission outcome does.
	require.NoError(t, s.SendCommandNoAck(9, 400, device.NewCommandParams(1)))
	ev := nextEvent(t, s, model.EventCommand)
	assert.Equal(t, model.Command(400), *ev.Command)
	assert.Equal(t, "success", ev.Result)

	ap.setFailSend(true)
	assert.ErrorIs(t, s.SendCommandNoAck(9, 400, device.NewCommandParams()), device.ErrConnection)
	assert.Equal(t, "connection_error", nextEvent(t, s, model.EventCommand).Result)

	assert.ErrorIs(t, s.SendCommandNoAck(1, 400, device.NewCommandParams()), ErrUnknownDevice)
}

func TestSession_SilentUndiscoveredDevice(t *testing.T) {
	s := newTestSession(t, &autopilot{})

	// an ack without any heartbeat creates the device but never discovers it.
	msg, err := model.NewMessage(model.MessageIDCommandAck, 6, 1, model.CommandAck{Command: 400})
	require.NoError(t, err)
	s.HandleMessage(msg)

	d, err := s.deviceFor(6)
	require.NoError(t, err)
	assert.Eventually(t, d.IsLost, time.Second, time.Millisecond)

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected %s event for uid %d", ev.Kind, ev.UID)
	case <-time.After(3 * testConfig().HeartbeatTimeout):
	}
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t, &autopilot{uid: 1})
	s.HandleMessage(heartbeat(t, 1))
	d, err := s.deviceFor(1)
	require.NoError(t, err)

	s.Close()
	s.Close()

	assert.Equal(t, device.WorkerStopped, d.WorkerState())
	for range s.Events() {
	}

	s.HandleMessage(heartbeat(t, 2))
	assert.Len(t, s.Devices(), 1)
	_, err = s.deviceFor(2)
	assert.ErrorIs(t, err, ErrClosed)
}
