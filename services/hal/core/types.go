// Package core holds the hardware contracts the drivers are written against.
// Platform backends (services/hal/platform) implement them for a host,
// RP2 and nRF microcontrollers, and Linux single-board computers.
package core

import (
	"context"
	"io"
	"time"

	"boarddemo-go/types"
)

// ---- Low-frequency clock ----

type ClockSource uint8

const (
	ClockRC    ClockSource = iota // internal RC oscillator
	ClockXtal                     // external 32.768 kHz crystal
	ClockSynth                    // synthesised from the high-frequency clock
)

func (s ClockSource) String() string {
	switch s {
	case ClockXtal:
		return "xtal"
	case ClockSynth:
		return "synth"
	default:
		return "rc"
	}
}

// LFClock mirrors the start task / started event pair of a low-frequency
// oscillator.
type LFClock interface {
	SelectSource(src ClockSource)
	ClearStarted()
	TriggerStart()
	Started() bool
}

// ---- GPIO ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// IRQPin extends GPIOPin with interrupts. The handler runs in interrupt
// context and must not block.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by the board's numbering scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// ---- PWM ----

// PWMOutput is one hardware PWM channel bound to a pin. Duty is the
// physical duty in percent; polarity is handled by the driver.
type PWMOutput interface {
	Pin() int
	Configure(period time.Duration) error
	SetDuty(pct uint8)
}

type PWMFactory interface {
	ByPin(pin int) (PWMOutput, error)
}

// ---- Serial ----

// SerialPort is a byte stream with a context-aware receive.
// RecvSomeContext blocks until at least one byte is read, ctx ends, or the
// port fails.
type SerialPort interface {
	io.Writer
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// SerialConfigurer is optionally implemented by ports whose line settings
// can be changed after open.
type SerialConfigurer interface {
	SetBaudRate(baud uint32) error
	SetFormat(dataBits, stopBits uint8, parity types.Parity) error
}

type SerialFactory interface {
	ByID(id string) (SerialPort, bool)
}

// ---- Board ----

// Board is the set of resources a platform backend provides.
type Board struct {
	Name   string
	Clock  LFClock
	Pins   PinFactory
	PWM    PWMFactory
	Serial SerialFactory
}
