// Package button watches debounced push buttons on interrupt-capable pins.
//
// Pin interrupts only post the button index to a queue. A single worker
// goroutine owns debounce state: every edge restarts that button's window,
// and when the window elapses the pin is sampled. Handlers fire only when the
// sampled logical state differs from the last reported one, so bounces
// collapse into one Push or Release.
package button

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/types"
	"boarddemo-go/x/conv"
)

// Handler runs in the watcher goroutine.
type Handler func(pin int, action types.ButtonAction)

type Config struct {
	Pin       int
	ActiveLow bool
	Pull      core.Pull
	Handler   Handler
}

type button struct {
	cfg    Config
	pin    core.IRQPin
	pushed atomic.Bool

	// Worker-owned.
	pending  bool
	deadline time.Time
}

type Watcher struct {
	pins core.PinFactory

	mu       sync.Mutex
	inited   bool
	enabled  atomic.Bool
	buttons  []*button
	debounce time.Duration

	isrQ    chan int
	drops   atomic.Uint32
	stopped chan struct{}
}

// New returns a watcher that resolves pins through pins.
func New(pins core.PinFactory) *Watcher {
	return &Watcher{pins: pins, stopped: make(chan struct{})}
}

func (w *Watcher) pushedLevel(b *button) bool {
	l := b.pin.Get()
	if b.cfg.ActiveLow {
		return !l
	}
	return l
}

// Init configures the pins as inputs and starts the watcher goroutine.
// Detection stays off until Enable.
func (w *Watcher) Init(ctx context.Context, cfgs []Config, debounce time.Duration) error {
	if len(cfgs) == 0 || debounce < 0 {
		return errcode.InvalidParams
	}
	for _, c := range cfgs {
		if c.Handler == nil {
			return errcode.InvalidParams
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inited {
		return errcode.AlreadyInitialized
	}

	bs := make([]*button, 0, len(cfgs))
	for _, c := range cfgs {
		gp, ok := w.pins.ByNumber(c.Pin)
		if !ok {
			return &errcode.E{C: errcode.UnknownPin, Op: "button.init", Msg: "pin " + conv.Istr(c.Pin)}
		}
		ip, ok := gp.(core.IRQPin)
		if !ok {
			return &errcode.E{C: errcode.Unsupported, Op: "button.init", Msg: "pin " + conv.Istr(c.Pin) + " has no irq"}
		}
		if err := ip.ConfigureInput(c.Pull); err != nil {
			return errcode.Wrap("button.init", err, errcode.DriverInit)
		}
		b := &button{cfg: c, pin: ip}
		b.pushed.Store(w.pushedLevel(b))
		bs = append(bs, b)
	}

	w.buttons = bs
	w.debounce = debounce
	w.isrQ = make(chan int, 8*len(bs))
	w.inited = true
	go w.run(ctx)
	return nil
}

// Enable arms both-edge interrupts on every button.
func (w *Watcher) Enable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.inited {
		return errcode.NotInitialized
	}
	if w.enabled.Load() {
		return nil
	}
	for i, b := range w.buttons {
		idx := i
		if err := b.pin.SetIRQ(core.EdgeBoth, func() { w.isr(idx) }); err != nil {
			for _, prev := range w.buttons[:i] {
				_ = prev.pin.ClearIRQ()
			}
			return errcode.Wrap("button.enable", err, errcode.DriverInit)
		}
	}
	w.enabled.Store(true)
	return nil
}

// Disable disarms the interrupts. Windows already running are dropped.
func (w *Watcher) Disable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.inited {
		return errcode.NotInitialized
	}
	if !w.enabled.Swap(false) {
		return nil
	}
	for _, b := range w.buttons {
		_ = b.pin.ClearIRQ()
	}
	return nil
}

// IsPushed reports the last debounced state of button i.
func (w *Watcher) IsPushed(i int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.buttons) {
		return false
	}
	return w.buttons[i].pushed.Load()
}

// ISRDrops counts edges lost because the queue was full.
func (w *Watcher) ISRDrops() uint32 { return w.drops.Load() }

// Done is closed when the watcher goroutine exits.
func (w *Watcher) Done() <-chan struct{} { return w.stopped }

func (w *Watcher) isr(idx int) {
	select {
	case w.isrQ <- idx:
	default:
		w.drops.Add(1)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.stopped)
	tm := time.NewTimer(time.Hour)
	tm.Stop()
	armed := false

	for {
		var tc <-chan time.Time
		if armed {
			tc = tm.C
		}
		select {
		case <-ctx.Done():
			tm.Stop()
			return
		case idx := <-w.isrQ:
			if !w.enabled.Load() {
				continue
			}
			b := w.buttons[idx]
			b.pending = true
			b.deadline = time.Now().Add(w.debounce)
		case <-tc:
			armed = false
			w.settle(time.Now())
		}

		if armed && !tm.Stop() {
			select {
			case <-tm.C:
			default:
			}
		}
		armed = false
		if next, ok := w.nextDeadline(); ok {
			tm.Reset(time.Until(next))
			armed = true
		}
	}
}

func (w *Watcher) nextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, b := range w.buttons {
		if b.pending && (!found || b.deadline.Before(next)) {
			next, found = b.deadline, true
		}
	}
	return next, found
}

// settle samples every button whose window has elapsed.
func (w *Watcher) settle(now time.Time) {
	for _, b := range w.buttons {
		if !b.pending || b.deadline.After(now) {
			continue
		}
		b.pending = false
		if !w.enabled.Load() {
			continue
		}
		p := w.pushedLevel(b)
		if p == b.pushed.Load() {
			continue
		}
		b.pushed.Store(p)
		act := types.ButtonRelease
		if p {
			act = types.ButtonPush
		}
		b.cfg.Handler(b.cfg.Pin, act)
	}
}
