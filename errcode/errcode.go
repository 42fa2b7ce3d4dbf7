package errcode

import "errors"

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Timeout       Code = "timeout"
	InvalidParams Code = "invalid_params"
	Unsupported   Code = "unsupported"

	UnknownPin         Code = "unknown_pin"
	NotInitialized     Code = "not_initialized"
	AlreadyInitialized Code = "already_initialized"
	NoMem              Code = "no_mem"
	Empty              Code = "empty"
	ClockNotRunning    Code = "clock_not_running"

	DriverInit         Code = "driver_init"
	CommunicationError Code = "communication_error"
	FifoError          Code = "fifo_error"

	Error Code = "error" // generic fallback
)

// E keeps a code together with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil && e.Err != error(e.C) {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap annotates err with op. The code is taken from err when it carries
// one, otherwise fallback is used. A nil err stays nil.
func Wrap(op string, err error, fallback Code) error {
	if err == nil {
		return nil
	}
	c := Of(err)
	if c == Error {
		c = fallback
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// Is reports whether err carries code c.
func Is(err error, c Code) bool { return Of(err) == c }

// MapDriverErr maps low-level driver errors to a Code.
// Errors that already carry a code keep it; anything else is a driver
// initialisation failure.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	if c := Of(err); c != Error {
		return c
	}
	return DriverInit
}
