package device

import (
	"math"
	"sync"
	"time"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

// CommandParams are the seven float parameters of a command. Unused slots are NaN.
type CommandParams [7]float32

// NewCommandParams fills the leading params and sets the rest to NaN.
func NewCommandParams(values ...float32) CommandParams {
	var p CommandParams
	for i := range p {
		if i < len(values) {
			p[i] = values[i]
			continue
		}
		p[i] = float32(math.NaN())
	}
	return p
}

type CommandState int32

const (
	CommandIdle CommandState = iota
	CommandAwaitingAck
	CommandAckReceived
)

func (s CommandState) String() string {
	switch s {
	case CommandIdle:
		return "idle"
	case CommandAwaitingAck:
		return "awaiting_ack"
	case CommandAckReceived:
		return "ack_received"
	}
	return "unknown"
}

// commandSession allows a single outstanding command per device and guarantees
// exactly one outcome for it.
type commandSession struct {
	mu       sync.Mutex
	state    CommandState
	command  model.Command
	result   model.MavResult
	async    bool
	callback ResultCallback
	acked    chan struct{}
	// seq tells a late timeout for an earlier async command apart from the current one.
	seq uint64
}

func newCommandSession() *commandSession {
	return &commandSession{}
}

func (s *commandSession) currentSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *commandSession) currentState() CommandState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin claims the session for cmd. It returns false until the previous command
// has been fully released.
func (s *commandSession) begin(cmd model.Command, async bool, callback ResultCallback) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != CommandIdle {
		return 0, false
	}
	s.seq++
	s.state = CommandAwaitingAck
	s.command = cmd
	s.result = model.MavResultFailed
	s.async = async
	s.callback = callback
	s.acked = make(chan struct{})
	return s.seq, true
}

// reset returns the session to idle after a failed transmission.
func (s *commandSession) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
}

func (s *commandSession) release() {
	s.state = CommandIdle
	s.async = false
	s.callback = nil
}

// acknowledge applies an ack and returns the seq of the command it completes.
// handled is false for stale, duplicate or mismatched acks.
// The session stays in AckReceived until the waiter or finish releases it.
func (s *commandSession) acknowledge(ack model.CommandAck) (seq uint64, async, handled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != CommandAwaitingAck || ack.Command != s.command {
		return 0, false, false
	}
	// result must be stored before the state flip so a waiter sees the right code.
	s.result = ack.Result
	s.state = CommandAckReceived
	close(s.acked)
	return s.seq, s.async, true
}

// finish releases the acknowledged async command seq and returns the callback and
// outcome to deliver. It is a no-op for blocking commands, which wait releases.
func (s *commandSession) finish(seq uint64) (ResultCallback, CommandResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq || s.state != CommandAckReceived || !s.async {
		return nil, Success, false
	}
	callback := s.callback
	s.release()
	return callback, outcomeOf(s.result), true
}

// wait blocks until the pending command is acknowledged or timeout elapses.
func (s *commandSession) wait(timeout time.Duration) CommandResult {
	s.mu.Lock()
	acked := s.acked
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-acked:
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// an ack may have landed between the timer firing and taking the lock.
	received := s.state == CommandAckReceived
	s.release()
	if !received {
		return Timeout
	}
	return outcomeOf(s.result)
}

// expire times out the async command issued as seq, if it is still outstanding.
func (s *commandSession) expire(seq uint64) (ResultCallback, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq || s.state != CommandAwaitingAck || !s.async {
		return nil, false
	}
	callback := s.callback
	s.release()
	return callback, true
}

func outcomeOf(result model.MavResult) CommandResult {
	if result == model.MavResultAccepted {
		return Success
	}
	return CommandDenied
}
