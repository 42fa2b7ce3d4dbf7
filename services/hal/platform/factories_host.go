//go:build !baremetal

package platform

import (
	"context"
	"io"
	"sync"
	"time"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
)

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements GPIOPin and IRQPin for host-side runs and tests.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	irqEdge core.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	// Idle level set by the bias, without raising an edge.
	switch pull {
	case core.PullUp:
		p.level = true
	case core.PullDown:
		p.level = false
	}
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

// Set drives the level and runs the IRQ handler when the edge matches.
func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq() // ISR-style callback
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

func (p *FakePin) Number() int { return p.number }

// IsOutput reports whether the pin was last configured as an output.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

func (p *FakePin) SetIRQ(edge core.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = core.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

func edgeFrom(old, new bool) core.Edge {
	switch {
	case !old && new:
		return core.EdgeRising
	case old && !new:
		return core.EdgeFalling
	default:
		return core.EdgeNone
	}
}

func irqWanted(cfg, seen core.Edge) bool {
	switch cfg {
	case core.EdgeBoth:
		return seen == core.EdgeRising || seen == core.EdgeFalling
	default:
		return cfg != core.EdgeNone && cfg == seen
	}
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *HostPinFactory) ByNumber(n int) (core.GPIOPin, bool) {
	return f.pin(n), true
}

func (f *HostPinFactory) pin(n int) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p
}

// Get exposes the underlying *FakePin (e.g. to drive button edges).
func (f *HostPinFactory) Get(n int) *FakePin { return f.pin(n) }

// ----------------------------- PWM (host) ------------------------------------

// FakePWM records every physical duty written to it.
type FakePWM struct {
	mu      sync.Mutex
	pin     int
	period  time.Duration
	history []uint8
}

func (o *FakePWM) Pin() int { return o.pin }

func (o *FakePWM) Configure(period time.Duration) error {
	if period <= 0 {
		return errcode.InvalidParams
	}
	o.mu.Lock()
	o.period = period
	o.mu.Unlock()
	return nil
}

func (o *FakePWM) SetDuty(pct uint8) {
	o.mu.Lock()
	o.history = append(o.history, pct)
	o.mu.Unlock()
}

// Duty returns the last written physical duty.
func (o *FakePWM) Duty() uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.history) == 0 {
		return 0
	}
	return o.history[len(o.history)-1]
}

func (o *FakePWM) History() []uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]uint8(nil), o.history...)
}

func (o *FakePWM) Period() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.period
}

type HostPWMFactory struct {
	mu   sync.Mutex
	outs map[int]*FakePWM
}

func (f *HostPWMFactory) ByPin(pin int) (core.PWMOutput, error) {
	return f.Get(pin), nil
}

func (f *HostPWMFactory) Get(pin int) *FakePWM {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outs == nil {
		f.outs = make(map[int]*FakePWM)
	}
	o, ok := f.outs[pin]
	if !ok {
		o = &FakePWM{pin: pin}
		f.outs[pin] = o
	}
	return o
}

// ----------------------------- Serial (host) ---------------------------------

// PipeSerial adapts a reader/writer pair (stdin/stdout, io.Pipe) to
// core.SerialPort. A background goroutine owns the reader so receives can
// be abandoned when their context ends.
type PipeSerial struct {
	r io.Reader

	wmu sync.Mutex
	w   io.Writer

	once   sync.Once
	chunks chan []byte
	rerr   error // set before chunks is closed
	rest   []byte
}

func NewPipeSerial(r io.Reader, w io.Writer) *PipeSerial {
	return &PipeSerial{r: r, w: w, chunks: make(chan []byte, 4)}
}

func (s *PipeSerial) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.w.Write(p)
}

func (s *PipeSerial) readLoop() {
	for {
		buf := make([]byte, 64)
		n, err := s.r.Read(buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			s.rerr = err
			close(s.chunks)
			return
		}
	}
}

// RecvSomeContext must be called from a single goroutine.
func (s *PipeSerial) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	s.once.Do(func() { go s.readLoop() })
	if len(s.rest) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case c, ok := <-s.chunks:
			if !ok {
				return 0, s.rerr
			}
			s.rest = c
		}
	}
	n := copy(p, s.rest)
	s.rest = s.rest[n:]
	return n, nil
}

type hostSerialFactory map[string]core.SerialPort

func (f hostSerialFactory) ByID(id string) (core.SerialPort, bool) {
	p, ok := f[id]
	return p, ok
}

// ----------------------------- Board (host) ----------------------------------

// Host is a board made entirely of in-process fakes. The fields give tests
// and the simulator direct access to them.
type Host struct {
	Clock  *SoftClock
	Pins   *HostPinFactory
	PWM    *HostPWMFactory
	Serial *PipeSerial
	UART   string
}

// NewHost builds a host board whose UART uartID reads rx and writes tx.
func NewHost(uartID string, rx io.Reader, tx io.Writer) *Host {
	return &Host{
		Clock:  &SoftClock{StartAfter: 3},
		Pins:   &HostPinFactory{},
		PWM:    &HostPWMFactory{},
		Serial: NewPipeSerial(rx, tx),
		UART:   uartID,
	}
}

func (h *Host) Board(name string) core.Board {
	return core.Board{
		Name:   name,
		Clock:  h.Clock,
		Pins:   h.Pins,
		PWM:    h.PWM,
		Serial: hostSerialFactory{h.UART: h.Serial},
	}
}
