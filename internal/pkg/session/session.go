package session

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/device"
	"github.com/anicoll/dronelink/internal/pkg/model"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrClosed        = errors.New("session closed")
)

const defaultEventBuffer = 64

// Transport carries outbound messages to the link.
type Transport interface {
	Send(msg model.Message) error
}

// DiscoveryHook is called once per discovered device, on its own goroutine.
type DiscoveryHook func(d *device.Device)

// DeviceInfo is a snapshot of one device known to the session.
type DeviceInfo struct {
	UID                uint64 `json:"uid"`
	SystemID           uint8  `json:"system_id"`
	ComponentID        uint8  `json:"component_id"`
	SupportsMissionInt bool   `json:"supports_mission_int"`
	Lost               bool   `json:"lost"`
	CommandState       string `json:"command_state"`
}

// Session owns every device seen on one link. It creates a device on the first
// message from a new system id and forwards that device's traffic to it.
type Session struct {
	transport  Transport
	cfg        device.Config
	logger     *zap.Logger
	onDiscover DiscoveryHook

	mu      sync.RWMutex
	devices map[uint8]*device.Device
	byUID   map[uint64]*device.Device
	closed  bool
	events  chan model.DeviceEvent
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithDiscoveryHook(hook DiscoveryHook) Option {
	return func(s *Session) {
		s.onDiscover = hook
	}
}

// WithEventBuffer sizes the event channel. Events are dropped when it is full.
func WithEventBuffer(size int) Option {
	return func(s *Session) {
		s.events = make(chan model.DeviceEvent, size)
	}
}

func New(transport Transport, cfg device.Config, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		cfg:       cfg,
		logger:    zap.L(),
		devices:   make(map[uint8]*device.Device),
		byUID:     make(map[uint64]*device.Device),
		events:    make(chan model.DeviceEvent, defaultEventBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events is closed by Close.
func (s *Session) Events() <-chan model.DeviceEvent {
	return s.events
}

// HandleMessage routes an inbound message to the device that sent it.
func (s *Session) HandleMessage(msg model.Message) {
	if msg.SystemID == 0 {
		s.logger.Debug("dropping message without system id", zap.Stringer("message", msg.ID))
		return
	}
	d, err := s.deviceFor(msg.SystemID)
	if err != nil {
		return
	}
	d.ProcessMessage(msg)
}

func (s *Session) deviceFor(systemID uint8) (*device.Device, error) {
	s.mu.RLock()
	d, ok := s.devices[systemID]
	closed := s.closed
	s.mu.RUnlock()
	if ok {
		return d, nil
	}
	if closed {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if d, ok := s.devices[systemID]; ok {
		return d, nil
	}
	d = device.New(&deviceParent{session: s, systemID: systemID}, s.cfg,
		s.logger.With(zap.Uint8("system_id", systemID)))
	s.devices[systemID] = d
	s.logger.Info("new device on link", zap.Uint8("system_id", systemID))
	return d, nil
}

// Device looks a discovered device up by uid.
func (s *Session) Device(uid uint64) (*device.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byUID[uid]
	return d, ok
}

// Devices lists every device on the link, discovered or not, ordered by system id.
func (s *Session) Devices() []DeviceInfo {
	s.mu.RLock()
	devices := lo.Values(s.devices)
	s.mu.RUnlock()

	infos := lo.Map(devices, func(d *device.Device, _ int) DeviceInfo {
		id := d.Identity()
		return DeviceInfo{
			UID:                id.UID,
			SystemID:           id.SystemID,
			ComponentID:        id.ComponentID,
			SupportsMissionInt: id.SupportsMissionInt,
			Lost:               d.IsLost(),
			CommandState:       d.CommandState().String(),
		}
	})
	slices.SortFunc(infos, func(a, b DeviceInfo) int {
		return cmp.Compare(a.SystemID, b.SystemID)
	})
	return infos
}

// SendCommand runs a blocking acknowledged command against a discovered device
// and records its outcome as an event.
func (s *Session) SendCommand(uid uint64, cmd model.Command, params device.CommandParams) error {
	d, ok := s.Device(uid)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, uid)
	}
	err := d.SendCommandWithAck(cmd, params)
	id := d.Identity()
	s.emit(model.NewDeviceEvent(model.EventCommand, uid, id.SystemID, id.ComponentID).
		WithCommand(cmd, device.ResultOf(err).String()))
	return err
}

// SendCommandNoAck transmits cmd to a discovered device without waiting for an ack.
// The recorded outcome only reflects whether the command left the link.
func (s *Session) SendCommandNoAck(uid uint64, cmd model.Command, params device.CommandParams) error {
	d, ok := s.Device(uid)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, uid)
	}
	err := d.SendCommand(cmd, params)
	id := d.Identity()
	s.emit(model.NewDeviceEvent(model.EventCommand, uid, id.SystemID, id.ComponentID).
		WithCommand(cmd, device.ResultOf(err).String()))
	return err
}

// SetMessageRate changes the stream rate of messageID on a discovered device.
func (s *Session) SetMessageRate(uid uint64, messageID model.MessageID, rateHz float64) error {
	d, ok := s.Device(uid)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDevice, uid)
	}
	err := d.SetMessageRate(messageID, rateHz)
	id := d.Identity()
	s.emit(model.NewDeviceEvent(model.EventCommand, uid, id.SystemID, id.ComponentID).
		WithCommand(model.CommandSetMessageInterval, device.ResultOf(err).String()))
	return err
}

// Close shuts every device down and closes the event channel.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	devices := lo.Values(s.devices)
	s.mu.Unlock()

	for _, d := range devices {
		d.Close()
	}

	s.mu.Lock()
	close(s.events)
	s.mu.Unlock()
	s.logger.Info("session closed", zap.Int("devices", len(devices)))
}

func (s *Session) send(msg model.Message) bool {
	if err := s.transport.Send(msg); err != nil {
		s.logger.Debug("failed to send message", zap.Stringer("message", msg.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *Session) discovered(systemID uint8, uid uint64) {
	s.mu.Lock()
	d, ok := s.devices[systemID]
	if ok {
		s.byUID[uid] = d
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	id := d.Identity()
	s.emit(model.NewDeviceEvent(model.EventDiscovered, uid, id.SystemID, id.ComponentID))
	if s.onDiscover != nil {
		// the hook may issue acknowledged commands, whose acks arrive on the
		// goroutine that is running this notification.
		go s.onDiscover(d)
	}
}

func (s *Session) lost(systemID uint8, uid uint64) {
	if uid == 0 {
		// never announced itself, so there is nothing to report as offline.
		s.logger.Debug("undiscovered device went silent", zap.Uint8("system_id", systemID))
		return
	}
	s.mu.RLock()
	d, ok := s.devices[systemID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	id := d.Identity()
	s.emit(model.NewDeviceEvent(model.EventLost, uid, id.SystemID, id.ComponentID))
}

func (s *Session) emit(event model.DeviceEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event buffer full, dropping event",
			zap.Stringer("kind", event.Kind),
			zap.Uint64("uid", event.UID))
	}
}

// deviceParent binds a device to the session together with the system id it was
// created for.
type deviceParent struct {
	session  *Session
	systemID uint8
}

func (p *deviceParent) SendMessage(msg model.Message) bool {
	return p.session.send(msg)
}

func (p *deviceParent) NotifyDiscovered(uid uint64) {
	p.session.discovered(p.systemID, uid)
}

func (p *deviceParent) NotifyLost(uid uint64) {
	p.session.lost(p.systemID, uid)
}
