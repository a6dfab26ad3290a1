package device

import (
	"errors"
	"fmt"
)

var (
	ErrNoDevice      = errors.New("target device address unknown")
	ErrBusy          = errors.New("a command is already awaiting acknowledgment")
	ErrConnection    = errors.New("failed to transmit command")
	ErrTimeout       = errors.New("command acknowledgment timed out")
	ErrCommandDenied = errors.New("command denied by device")
)

// CommandResult is the outcome of a command as delivered to async callbacks.
type CommandResult int

const (
	Success CommandResult = iota
	NoDevice
	Busy
	ConnectionError
	Timeout
	CommandDenied
)

func (r CommandResult) String() string {
	switch r {
	case Success:
		return "success"
	case NoDevice:
		return "no_device"
	case Busy:
		return "busy"
	case ConnectionError:
		return "connection_error"
	case Timeout:
		return "timeout"
	case CommandDenied:
		return "command_denied"
	}
	return fmt.Sprintf("command_result_%d", int(r))
}

// Err maps the result onto its sentinel error; Success maps to nil.
func (r CommandResult) Err() error {
	switch r {
	case Success:
		return nil
	case NoDevice:
		return ErrNoDevice
	case Busy:
		return ErrBusy
	case ConnectionError:
		return ErrConnection
	case Timeout:
		return ErrTimeout
	case CommandDenied:
		return ErrCommandDenied
	}
	return fmt.Errorf("unknown command result %d", int(r))
}

// ResultOf maps an error returned by the blocking command API back onto a CommandResult.
func ResultOf(err error) CommandResult {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrNoDevice):
		return NoDevice
	case errors.Is(err, ErrBusy):
		return Busy
	case errors.Is(err, ErrTimeout):
		return Timeout
	case errors.Is(err, ErrCommandDenied):
		return CommandDenied
	default:
		return ConnectionError
	}
}

// ResultCallback receives exactly one outcome per async command.
type ResultCallback func(CommandResult)
