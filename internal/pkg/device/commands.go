package device

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

// SendCommand transmits a command without waiting for an acknowledgment.
func (d *Device) SendCommand(cmd model.Command, params CommandParams) error {
	id := d.Identity()
	if !id.Known() {
		return ErrNoDevice
	}

	msg, err := model.NewMessage(model.MessageIDCommandLong, d.cfg.OwnSystemID, d.cfg.OwnComponentID, model.CommandLong{
		TargetSystem:    id.SystemID,
		TargetComponent: id.ComponentID,
		Command:         cmd,
		Params:          params,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !d.parent.SendMessage(msg) {
		return ErrConnection
	}
	return nil
}

// SendCommandWithAck transmits a command and blocks until it is acknowledged or the
// command timeout elapses. A nil error means the device accepted the command.
func (d *Device) SendCommandWithAck(cmd model.Command, params CommandParams) error {
	if !d.Identity().Known() {
		return ErrNoDevice
	}
	if _, ok := d.command.begin(cmd, false, nil); !ok {
		return ErrBusy
	}
	if err := d.SendCommand(cmd, params); err != nil {
		d.command.reset()
		return err
	}

	result := d.command.wait(d.cfg.CommandTimeout)
	d.logger.Debug("command completed",
		zap.Uint16("command", uint16(cmd)),
		zap.Stringer("result", result))
	return result.Err()
}

// SendCommandWithAckAsync transmits a command and returns immediately. callback
// receives exactly one outcome: on ack, on timeout, or straight away on failure.
func (d *Device) SendCommandWithAckAsync(cmd model.Command, params CommandParams, callback ResultCallback) {
	if callback == nil {
		d.logger.Warn("async command without result callback", zap.Uint16("command", uint16(cmd)))
	}
	report := func(result CommandResult) {
		if callback != nil {
			callback(result)
		}
	}

	if !d.Identity().Known() {
		report(NoDevice)
		return
	}
	seq, ok := d.command.begin(cmd, true, callback)
	if !ok {
		report(Busy)
		return
	}

	// armed before transmitting so an immediate ack cancels it.
	d.timeouts.register(d.commandTag, func() {
		expired, ok := d.command.expire(seq)
		if !ok {
			return
		}
		d.logger.Debug("async command timed out", zap.Uint16("command", uint16(cmd)))
		if expired != nil {
			expired(Timeout)
		}
	})

	if err := d.SendCommand(cmd, params); err != nil {
		d.timeouts.cancel(d.commandTag)
		d.command.reset()
		report(ResultOf(err))
	}
}

// SetMessageRate asks the device to stream messageID at rateHz. A non-positive
// rate disables the stream.
func (d *Device) SetMessageRate(messageID model.MessageID, rateHz float64) error {
	intervalUs := float32(-1)
	if rateHz > 0 {
		intervalUs = float32(1e6 / rateHz)
	}
	return d.SendCommandWithAck(model.CommandSetMessageInterval, NewCommandParams(float32(messageID), intervalUs))
}
