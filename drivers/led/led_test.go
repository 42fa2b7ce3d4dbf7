package led

import (
	"testing"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
)

type fakePin struct {
	n     int
	level bool
	out   bool
}

func (p *fakePin) Number() int                     { return p.n }
func (p *fakePin) ConfigureInput(core.Pull) error  { p.out = false; return nil }
func (p *fakePin) ConfigureOutput(init bool) error { p.out = true; p.level = init; return nil }
func (p *fakePin) Set(l bool)                      { p.level = l }
func (p *fakePin) Get() bool                       { return p.level }
func (p *fakePin) Toggle()                         { p.level = !p.level }

type fakePins map[int]*fakePin

func (f fakePins) ByNumber(n int) (core.GPIOPin, bool) {
	p, ok := f[n]
	if !ok {
		return nil, false
	}
	return p, true
}

func TestActiveLowLevels(t *testing.T) {
	pins := fakePins{17: {n: 17}, 18: {n: 18}}
	b := New(pins)
	if err := b.Init([]int{17, 18}, true); err != nil {
		t.Fatal(err)
	}
	if !pins[17].out || !pins[17].level {
		t.Fatalf("led 0 should start as output driven high (off): %+v", pins[17])
	}

	_ = b.On(1)
	if pins[18].level || !b.IsOn(1) {
		t.Fatal("On should drive the pin low")
	}
	_ = b.Off(1)
	if !pins[18].level || b.IsOn(1) {
		t.Fatal("Off should drive the pin high")
	}

	on, _ := b.Toggle(0)
	if !on || pins[17].level {
		t.Fatalf("toggle -> on=%v level=%v", on, pins[17].level)
	}
	on, _ = b.Toggle(0)
	if on || !pins[17].level {
		t.Fatalf("toggle back -> on=%v level=%v", on, pins[17].level)
	}
}

func TestActiveHigh(t *testing.T) {
	pins := fakePins{1: {n: 1}}
	b := New(pins)
	_ = b.Init([]int{1}, false)
	_ = b.On(0)
	if !pins[1].level {
		t.Fatal("active-high On should drive high")
	}
	b.AllOff()
	if pins[1].level {
		t.Fatal("AllOff left the pin high")
	}
}

func TestErrors(t *testing.T) {
	b := New(fakePins{1: {n: 1}})
	if err := b.On(0); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatalf("before init: %v", err)
	}
	if err := b.Init([]int{2}, true); !errcode.Is(err, errcode.UnknownPin) {
		t.Fatalf("unknown pin: %v", err)
	}
	if err := b.Init([]int{1}, true); err != nil {
		t.Fatal(err)
	}
	if err := b.Init([]int{1}, true); !errcode.Is(err, errcode.AlreadyInitialized) {
		t.Fatalf("second init: %v", err)
	}
	if _, err := b.Toggle(3); !errcode.Is(err, errcode.InvalidParams) {
		t.Fatalf("bad index: %v", err)
	}
}
