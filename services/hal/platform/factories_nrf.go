//go:build nrf

package platform

import (
	"context"
	"device/nrf"
	"machine"
	"runtime"

	"tinygo.org/x/drivers/servo"

	"boarddemo-go/errcode"
	"boarddemo-go/services/config"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/types"
)

// Open returns the nRF board: the CLOCK peripheral's LFCLK, GPIO with GPIOTE
// interrupts, PWM0/PWM1 in servo frames and UART0.
func Open(cfg config.BoardConfig) (core.Board, error) {
	if cfg.UART.ID != "uart0" {
		return core.Board{}, &errcode.E{C: errcode.InvalidParams, Op: "platform.open", Msg: "uart " + cfg.UART.ID}
	}
	u := machine.UART0
	u.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.Pin(cfg.UART.TX),
		RX:       machine.Pin(cfg.UART.RX),
	})
	return core.Board{
		Name:   cfg.Name,
		Clock:  nrfLFClock{},
		Pins:   nrfPinFactory{},
		PWM:    &nrfPWMFactory{},
		Serial: nrfSerialFactory{port: &nrfSerialPort{u: u}},
	}, nil
}

// ---- LFCLK ----

type nrfLFClock struct{}

func (nrfLFClock) SelectSource(src core.ClockSource) {
	var v uint32
	switch src {
	case core.ClockXtal:
		v = nrf.CLOCK_LFCLKSRC_SRC_Xtal
	case core.ClockSynth:
		v = nrf.CLOCK_LFCLKSRC_SRC_Synth
	default:
		v = nrf.CLOCK_LFCLKSRC_SRC_RC
	}
	nrf.CLOCK.LFCLKSRC.Set(v << nrf.CLOCK_LFCLKSRC_SRC_Pos)
}

func (nrfLFClock) ClearStarted() { nrf.CLOCK.EVENTS_LFCLKSTARTED.Set(0) }
func (nrfLFClock) TriggerStart() { nrf.CLOCK.TASKS_LFCLKSTART.Set(1) }
func (nrfLFClock) Started() bool { return nrf.CLOCK.EVENTS_LFCLKSTARTED.Get() != 0 }

// ---- GPIO ----

type nrfPinFactory struct{}

func (nrfPinFactory) ByNumber(n int) (core.GPIOPin, bool) {
	// P0.00..P0.31, plus P1.00..P1.15 on parts that have port 1.
	if n < 0 || n > 47 {
		return nil, false
	}
	return &nrfPin{p: machine.Pin(n), n: n}, true
}

type nrfPin struct {
	p machine.Pin
	n int
}

func (r *nrfPin) ConfigureInput(pull core.Pull) error {
	var mode machine.PinMode
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *nrfPin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *nrfPin) Set(level bool) { r.p.Set(level) }
func (r *nrfPin) Get() bool      { return r.p.Get() }
func (r *nrfPin) Toggle()        { r.p.Set(!r.p.Get()) }
func (r *nrfPin) Number() int    { return r.n }

func (r *nrfPin) SetIRQ(edge core.Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case core.EdgeRising:
		change = machine.PinRising
	case core.EdgeFalling:
		change = machine.PinFalling
	case core.EdgeBoth:
		change = machine.PinToggle
	default:
		return errcode.InvalidParams
	}
	return r.p.SetInterrupt(change, func(machine.Pin) { handler() })
}

func (r *nrfPin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

// ---- PWM ----

// nrfPWMFactory hands out one PWM peripheral per pin, in order.
type nrfPWMFactory struct{ used int }

func (f *nrfPWMFactory) ByPin(pin int) (core.PWMOutput, error) {
	var ctrl servo.PWM
	switch f.used {
	case 0:
		ctrl = machine.PWM0
	case 1:
		ctrl = machine.PWM1
	default:
		return nil, &errcode.E{C: errcode.NoMem, Op: "pwm.open", Msg: "no free pwm peripheral"}
	}
	f.used++
	return &servoPWM{pin: pin, mp: machine.Pin(pin), ctrl: ctrl}, nil
}

// ---- Serial ----

type nrfSerialFactory struct{ port *nrfSerialPort }

func (f nrfSerialFactory) ByID(id string) (core.SerialPort, bool) {
	if id != "uart0" {
		return nil, false
	}
	return f.port, true
}

// nrfSerialPort polls the machine UART's interrupt-fed receive buffer.
type nrfSerialPort struct{ u *machine.UART }

func (p *nrfSerialPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *nrfSerialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	for p.u.Buffered() == 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		runtime.Gosched()
	}
	n := 0
	for n < len(buf) && p.u.Buffered() > 0 {
		b, err := p.u.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		buf[n] = b
		n++
	}
	return n, nil
}

func (p *nrfSerialPort) SetBaudRate(br uint32) error {
	p.u.SetBaudRate(br)
	return nil
}

// SetFormat accepts 8N1 only.
func (p *nrfSerialPort) SetFormat(dataBits, stopBits uint8, parity types.Parity) error {
	if dataBits != 8 || stopBits != 1 || parity != types.ParityNone {
		return errcode.Unsupported
	}
	return nil
}
