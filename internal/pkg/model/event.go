package model

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

func (k EventKind) String() string {
	return string(k)
}

const (
	EventDiscovered EventKind = "discovered"
	EventLost       EventKind = "lost"
	EventCommand    EventKind = "command"
)

// DeviceEvent is a record of something observed on a device link.
// Events are history only and never read back into device state.
type DeviceEvent struct {
	ID          uuid.UUID `json:"id"`
	Kind        EventKind `json:"kind"`
	UID         uint64    `json:"uid"`
	SystemID    uint8     `json:"system_id"`
	ComponentID uint8     `json:"component_id"`
	Command     *Command  `json:"command,omitempty"`
	Result      string    `json:"result,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewDeviceEvent(kind EventKind, uid uint64, systemID, componentID uint8) DeviceEvent {
	return DeviceEvent{
		ID:          uuid.New(),
		Kind:        kind,
		UID:         uid,
		SystemID:    systemID,
		ComponentID: componentID,
		Timestamp:   time.Now().UTC(),
	}
}

// WithCommand attaches a command outcome to the event.
func (e DeviceEvent) WithCommand(cmd Command, result string) DeviceEvent {
	e.Command = &cmd
	e.Result = result
	return e
}

type DeviceEvents []DeviceEvent
