package device

import (
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

// Parent is the session a device reports to and transmits through.
type Parent interface {
	SendMessage(msg model.Message) bool
	NotifyDiscovered(uid uint64)
	NotifyLost(uid uint64)
}

// Identity describes the remote device as far as it is known.
type Identity struct {
	SystemID           uint8
	ComponentID        uint8
	UID                uint64
	SupportsMissionInt bool
}

// Known reports whether the device has announced its addresses.
func (i Identity) Known() bool {
	return i.SystemID != 0 || i.ComponentID != 0
}

// Device tracks one remote endpoint: it dispatches its messages, keeps it alive with
// heartbeats and runs the command/acknowledgment protocol against it.
type Device struct {
	cfg    Config
	parent Parent
	logger *zap.Logger

	// tag owns the built-in handlers; commandTag keys the async command timeout.
	tag        Tag
	commandTag Tag

	handlers  *handlerTable
	timeouts  *timeoutRegistry
	heartbeat *heartbeatMonitor
	command   *commandSession
	worker    *worker

	mu       sync.RWMutex
	identity Identity
}

func New(parent Parent, cfg Config, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.L() // returns the global logger.
	}
	cfg = cfg.withDefaults()

	d := &Device{
		cfg:        cfg,
		parent:     parent,
		logger:     logger,
		tag:        NewTag(),
		commandTag: NewTag(),
		handlers:   newHandlerTable(logger),
		timeouts:   newTimeoutRegistry(cfg.CommandTimeout),
		heartbeat:  newHeartbeatMonitor(cfg.HeartbeatTimeout),
		command:    newCommandSession(),
	}
	d.worker = newWorker(cfg.TickInterval, cfg.HeartbeatInterval, d.tick)

	d.handlers.register(model.MessageIDHeartbeat, d.processHeartbeat, d.tag)
	d.handlers.register(model.MessageIDCommandAck, d.processCommandAck, d.tag)
	d.handlers.register(model.MessageIDAutopilotVersion, d.processAutopilotVersion, d.tag)
	return d
}

// Close removes the built-in handlers, stops the worker and drops pending timeouts.
// An async command still awaiting its ack is reported as timed out.
func (d *Device) Close() {
	d.handlers.unregisterAll(d.tag)
	d.worker.shutdown()
	d.timeouts.clear()

	if callback, ok := d.command.expire(d.command.currentSeq()); ok && callback != nil {
		callback(Timeout)
	}
	d.logger.Debug("device closed", zap.Uint8("system_id", d.TargetSystemID()))
}

// ProcessMessage is the entry point for every inbound message from this device.
func (d *Device) ProcessMessage(msg model.Message) {
	if d.worker.start() {
		d.logger.Debug("device worker started", zap.Uint8("system_id", msg.SystemID))
	}
	d.handlers.dispatch(msg)
}

func (d *Device) RegisterMessageHandler(id model.MessageID, callback MessageHandler, tag Tag) {
	d.handlers.register(id, callback, tag)
}

func (d *Device) UnregisterAllMessageHandlers(tag Tag) {
	d.handlers.unregisterAll(tag)
}

// RegisterTimeoutHandler arms a timeout of one command-timeout duration for tag,
// replacing any earlier one.
func (d *Device) RegisterTimeoutHandler(callback TimeoutHandler, tag Tag) {
	d.timeouts.register(tag, callback)
}

func (d *Device) UpdateTimeoutHandler(tag Tag) {
	d.timeouts.update(tag)
}

func (d *Device) UnregisterTimeoutHandler(tag Tag) {
	d.timeouts.cancel(tag)
}

func (d *Device) Identity() Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.identity
}

func (d *Device) TargetSystemID() uint8 {
	return d.Identity().SystemID
}

func (d *Device) TargetComponentID() uint8 {
	return d.Identity().ComponentID
}

func (d *Device) TargetUID() uint64 {
	return d.Identity().UID
}

func (d *Device) SupportsMissionInt() bool {
	return d.Identity().SupportsMissionInt
}

func (d *Device) CommandState() CommandState {
	return d.command.currentState()
}

func (d *Device) WorkerState() WorkerState {
	return d.worker.currentState()
}

// IsLost reports whether the device is currently in a heartbeat loss episode.
func (d *Device) IsLost() bool {
	return d.heartbeat.isTimedOut()
}

func (d *Device) tick(sendHeartbeat bool) {
	if sendHeartbeat {
		d.sendHeartbeat()
	}
	d.timeouts.sweep()
	if d.heartbeat.check() {
		uid := d.TargetUID()
		d.logger.Warn("device heartbeat lost",
			zap.Uint64("uid", uid),
			zap.Duration("timeout", d.cfg.HeartbeatTimeout))
		d.parent.NotifyLost(uid)
	}
}

func (d *Device) sendHeartbeat() {
	msg, err := outboundHeartbeat(d.cfg.OwnSystemID, d.cfg.OwnComponentID)
	if err != nil {
		d.logger.Error("failed to build heartbeat", zap.Error(err))
		return
	}
	if !d.parent.SendMessage(msg) {
		d.logger.Debug("failed to send heartbeat")
	}
}

func (d *Device) processHeartbeat(msg model.Message) {
	var hb model.Heartbeat
	if err := msg.Decode(&hb); err != nil {
		d.logger.Warn("dropping malformed heartbeat", zap.Error(err))
		return
	}

	d.mu.Lock()
	if !d.identity.Known() {
		d.identity.SystemID = msg.SystemID
		d.identity.ComponentID = msg.ComponentID
		d.logger.Info("device addresses latched",
			zap.Uint8("system_id", msg.SystemID),
			zap.Uint8("component_id", msg.ComponentID))
	}
	needVersion := d.identity.UID == 0
	d.mu.Unlock()

	if needVersion {
		d.requestAutopilotVersion()
	}
	d.heartbeat.received()
}

func (d *Device) processCommandAck(msg model.Message) {
	var ack model.CommandAck
	if err := msg.Decode(&ack); err != nil {
		d.logger.Warn("dropping malformed command ack", zap.Error(err))
		return
	}

	seq, async, handled := d.command.acknowledge(ack)
	if !handled {
		d.logger.Debug("ignoring unexpected command ack",
			zap.Uint16("command", uint16(ack.Command)),
			zap.Stringer("result", ack.Result))
		return
	}
	if !async {
		// the blocked sender releases the session itself.
		return
	}
	// the session is only released after the timeout entry is gone, so this
	// cancel cannot drop the entry of a command issued after the ack.
	d.timeouts.cancel(d.commandTag)
	callback, outcome, ok := d.command.finish(seq)
	if ok && callback != nil {
		callback(outcome)
	}
}

func (d *Device) processAutopilotVersion(msg model.Message) {
	var version model.AutopilotVersion
	if err := msg.Decode(&version); err != nil {
		d.logger.Warn("dropping malformed autopilot version", zap.Error(err))
		return
	}
	if version.UID == 0 {
		d.logger.Warn("autopilot version without uid", zap.Uint8("system_id", msg.SystemID))
		return
	}

	d.mu.Lock()
	current := d.identity.UID
	if current == 0 {
		d.identity.UID = version.UID
		d.identity.SupportsMissionInt = version.Capabilities&model.CapabilityMissionInt != 0
	}
	d.mu.Unlock()

	switch {
	case current == 0:
		d.logger.Info("device discovered",
			zap.Uint64("uid", version.UID),
			zap.Uint8("system_id", msg.SystemID))
		d.parent.NotifyDiscovered(version.UID)
	case current != version.UID:
		// TODO: invalidate the device once the session can re-key it by uid.
		d.logger.Warn("device uid changed",
			zap.Uint64("uid", current),
			zap.Uint64("announced_uid", version.UID))
	}
}

func (d *Device) requestAutopilotVersion() {
	if err := d.SendCommand(model.CommandRequestAutopilotCapabilities, NewCommandParams(1)); err != nil {
		d.logger.Debug("failed to request autopilot version", zap.Error(err))
	}
}
