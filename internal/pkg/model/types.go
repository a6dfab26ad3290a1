package model

import "fmt"

// MessageID identifies the type of a decoded message.
type MessageID uint32

const (
	MessageIDHeartbeat        MessageID = 0
	MessageIDCommandLong      MessageID = 76
	MessageIDCommandAck       MessageID = 77
	MessageIDAutopilotVersion MessageID = 148
)

var messageNames = map[MessageID]string{
	MessageIDHeartbeat:        "heartbeat",
	MessageIDCommandLong:      "command_long",
	MessageIDCommandAck:       "command_ack",
	MessageIDAutopilotVersion: "autopilot_version",
}

func (id MessageID) String() string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	return fmt.Sprintf("message_%d", uint32(id))
}

// Command identifies a command carried by a CommandLong message.
type Command uint16

const (
	CommandSetMessageInterval           Command = 511
	CommandRequestAutopilotCapabilities Command = 520
)

// MavResult is the result code carried by a CommandAck.
type MavResult uint8

const (
	MavResultAccepted            MavResult = 0
	MavResultTemporarilyRejected MavResult = 1
	MavResultDenied              MavResult = 2
	MavResultUnsupported         MavResult = 3
	MavResultFailed              MavResult = 4
	MavResultInProgress          MavResult = 5
)

func (r MavResult) String() string {
	switch r {
	case MavResultAccepted:
		return "accepted"
	case MavResultTemporarilyRejected:
		return "temporarily_rejected"
	case MavResultDenied:
		return "denied"
	case MavResultUnsupported:
		return "unsupported"
	case MavResultFailed:
		return "failed"
	case MavResultInProgress:
		return "in_progress"
	}
	return fmt.Sprintf("result_%d", uint8(r))
}

// VehicleType is the entity type announced in a heartbeat.
type VehicleType uint8

const (
	VehicleTypeGeneric   VehicleType = 0
	VehicleTypeQuadrotor VehicleType = 2
	VehicleTypeGCS       VehicleType = 6
)

// Capability bits announced in AutopilotVersion.Capabilities.
const (
	CapabilityMissionFloat uint64 = 1 << 0
	CapabilityParamFloat   uint64 = 1 << 1
	CapabilityMissionInt   uint64 = 1 << 2
	CapabilityCommandInt   uint64 = 1 << 3
)
