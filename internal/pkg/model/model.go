package model

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Message is a decoded message record as delivered by the link.
// The payload stays encoded until a handler asks for its typed form.
type Message struct {
	ID          MessageID       `cbor:"1,keyasint"`
	SystemID    uint8           `cbor:"2,keyasint"`
	ComponentID uint8           `cbor:"3,keyasint"`
	Payload     cbor.RawMessage `cbor:"4,keyasint,omitempty"`
}

// NewMessage builds a message from the sender ids and a typed payload.
func NewMessage(id MessageID, systemID, componentID uint8, payload any) (Message, error) {
	msg := Message{
		ID:          id,
		SystemID:    systemID,
		ComponentID: componentID,
	}
	if payload == nil {
		return msg, nil
	}
	data, err := Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", id, err)
	}
	msg.Payload = data
	return msg, nil
}

// Decode unpacks the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("decode %s: empty payload", m.ID)
	}
	if err := Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.ID, err)
	}
	return nil
}

// ################################
// MessageIDHeartbeat

type Heartbeat struct {
	Type         VehicleType `cbor:"1,keyasint"`
	Autopilot    uint8       `cbor:"2,keyasint"`
	BaseMode     uint8       `cbor:"3,keyasint"`
	CustomMode   uint32      `cbor:"4,keyasint"`
	SystemStatus uint8       `cbor:"5,keyasint"`
}

// ################################
// MessageIDCommandLong

type CommandLong struct {
	TargetSystem    uint8      `cbor:"1,keyasint"`
	TargetComponent uint8      `cbor:"2,keyasint"`
	Command         Command    `cbor:"3,keyasint"`
	Confirmation    uint8      `cbor:"4,keyasint"`
	Params          [7]float32 `cbor:"5,keyasint"`
}

// ################################
// MessageIDCommandAck

type CommandAck struct {
	Command Command   `cbor:"1,keyasint"`
	Result  MavResult `cbor:"2,keyasint"`
}

// ################################
// MessageIDAutopilotVersion

type AutopilotVersion struct {
	Capabilities      uint64 `cbor:"1,keyasint"`
	FlightSwVersion   uint32 `cbor:"2,keyasint"`
	MiddlewareVersion uint32 `cbor:"3,keyasint"`
	VendorID          uint16 `cbor:"4,keyasint"`
	ProductID         uint16 `cbor:"5,keyasint"`
	UID               uint64 `cbor:"6,keyasint"`
}
