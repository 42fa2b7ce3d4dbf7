// Package led drives a bank of on/off indicator LEDs. Levels are logical:
// the bank applies pin polarity.
package led

import (
	"sync"
	"sync/atomic"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/x/conv"
)

type led struct {
	pin core.GPIOPin
	on  atomic.Bool
}

type Bank struct {
	pins core.PinFactory

	mu        sync.Mutex
	leds      []*led
	activeLow bool
}

func New(pins core.PinFactory) *Bank { return &Bank{pins: pins} }

// Init configures every pin as an output with the LED off.
func (b *Bank) Init(numbers []int, activeLow bool) error {
	if len(numbers) == 0 {
		return errcode.InvalidParams
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.leds != nil {
		return errcode.AlreadyInitialized
	}
	ls := make([]*led, 0, len(numbers))
	for _, n := range numbers {
		p, ok := b.pins.ByNumber(n)
		if !ok {
			return &errcode.E{C: errcode.UnknownPin, Op: "led.init", Msg: "pin " + conv.Istr(n)}
		}
		if err := p.ConfigureOutput(level(false, activeLow)); err != nil {
			return errcode.Wrap("led.init", err, errcode.DriverInit)
		}
		ls = append(ls, &led{pin: p})
	}
	b.leds = ls
	b.activeLow = activeLow
	return nil
}

func level(on, activeLow bool) bool { return on != activeLow }

func (b *Bank) get(i int) (*led, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.leds == nil {
		return nil, errcode.NotInitialized
	}
	if i < 0 || i >= len(b.leds) {
		return nil, errcode.InvalidParams
	}
	return b.leds[i], nil
}

func (b *Bank) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.leds)
}

func (b *Bank) On(i int) error  { return b.Set(i, true) }
func (b *Bank) Off(i int) error { return b.Set(i, false) }

func (b *Bank) Set(i int, on bool) error {
	l, err := b.get(i)
	if err != nil {
		return err
	}
	l.pin.Set(level(on, b.activeLow))
	l.on.Store(on)
	return nil
}

// Toggle flips LED i and returns its new state.
func (b *Bank) Toggle(i int) (bool, error) {
	l, err := b.get(i)
	if err != nil {
		return false, err
	}
	on := !l.on.Load()
	l.pin.Set(level(on, b.activeLow))
	l.on.Store(on)
	return on, nil
}

func (b *Bank) IsOn(i int) bool {
	l, err := b.get(i)
	if err != nil {
		return false
	}
	return l.on.Load()
}

// AllOff switches every LED off.
func (b *Bank) AllOff() {
	for i := 0; i < b.Count(); i++ {
		_ = b.Off(i)
	}
}
