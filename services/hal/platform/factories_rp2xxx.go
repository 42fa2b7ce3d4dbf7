//go:build rp2040 || rp2350

package platform

import (
	"context"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/servo"

	"boarddemo-go/errcode"
	"boarddemo-go/services/config"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/types"
)

// Open configures the UART named in cfg and returns the RP2 board. The RP2
// timebase runs from boot, so the clock is a SoftClock.
func Open(cfg config.BoardConfig) (core.Board, error) {
	var hw *uartx.UART
	switch cfg.UART.ID {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return core.Board{}, &errcode.E{C: errcode.InvalidParams, Op: "platform.open", Msg: "uart " + cfg.UART.ID}
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.Pin(cfg.UART.TX),
		RX:       machine.Pin(cfg.UART.RX),
	}); err != nil {
		return core.Board{}, err
	}
	return core.Board{
		Name:   cfg.Name,
		Clock:  &SoftClock{},
		Pins:   rp2PinFactory{},
		PWM:    rp2PWMFactory{},
		Serial: rp2SerialFactory{id: cfg.UART.ID, port: &rp2SerialPort{u: hw}},
	}, nil
}

// ---- GPIO (includes IRQ support) ----

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (core.GPIOPin, bool) {
	// RP2 user GPIOs GP0..GP28.
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull core.Pull) error {
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

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }

func (r *rp2Pin) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}

func (r *rp2Pin) Number() int { return r.n }

func (r *rp2Pin) SetIRQ(edge core.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e core.Edge) machine.PinChange {
	switch e {
	case core.EdgeRising:
		return machine.PinRising
	case core.EdgeFalling:
		return machine.PinFalling
	case core.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

// ---- PWM (servo frame) ----

// pwmGroupBySlice selects the PWM controller for a slice number (0..7).
func pwmGroupBySlice(slice uint8) servo.PWM {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

type rp2PWMFactory struct{}

func (rp2PWMFactory) ByPin(pin int) (core.PWMOutput, error) {
	slice, err := machine.PWMPeripheral(machine.Pin(pin))
	if err != nil {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "pwm.open", Err: err}
	}
	return &servoPWM{pin: pin, mp: machine.Pin(pin), ctrl: pwmGroupBySlice(slice)}, nil
}

// ---- Serial (uartx) ----

type rp2SerialFactory struct {
	id   string
	port *rp2SerialPort
}

func (f rp2SerialFactory) ByID(id string) (core.SerialPort, bool) {
	if id != f.id {
		return nil, false
	}
	return f.port, true
}

// rp2SerialPort adapts uartx to core.SerialPort and core.SerialConfigurer.
type rp2SerialPort struct{ u *uartx.UART }

func (p *rp2SerialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *rp2SerialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}
func (p *rp2SerialPort) SetBaudRate(br uint32) error { p.u.SetBaudRate(br); return nil }

func (p *rp2SerialPort) SetFormat(databits, stopbits uint8, parity types.Parity) error {
	var par uartx.UARTParity
	switch parity {
	case types.ParityEven:
		par = uartx.ParityEven
	case types.ParityOdd:
		par = uartx.ParityOdd
	default:
		par = uartx.ParityNone
	}
	return p.u.SetFormat(databits, stopbits, par)
}
