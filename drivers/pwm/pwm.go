// Package pwm is a duty-cycle driver with period-latched updates.
//
// SetDuty only records a pending value. A period loop latches it at the next
// period boundary, writes the physical duty to the output and clears the
// channel's busy flag. Until then further SetDuty calls on that channel are
// refused with errcode.Busy.
package pwm

import (
	"context"
	"sync"
	"time"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/x/mathx"
)

type Polarity uint8

const (
	ActiveHigh Polarity = iota
	ActiveLow
)

const MaxDuty = 100

type Config struct {
	Period   time.Duration
	Pins     []int // one or two channels
	Polarity Polarity
	Initial  uint8 // logical duty applied on Enable
}

// Callback runs in the period loop after a duty value has been latched.
type Callback func(ch int, duty uint8)

type channel struct {
	out     core.PWMOutput
	duty    uint8 // latched, logical
	pending uint8
	busy    bool
}

type Driver struct {
	outs core.PWMFactory

	mu       sync.Mutex
	inited   bool
	enabled  bool
	period   time.Duration
	polarity Polarity
	chans    []*channel
	cb       Callback
	latched  chan struct{} // closed and replaced after every latch
	stopped  chan struct{}

	onBusy func() // test hook, runs between a Busy result and the wait
}

func New(outs core.PWMFactory) *Driver {
	return &Driver{outs: outs, stopped: make(chan struct{})}
}

func (d *Driver) toPhys(logical uint8) uint8 {
	l := mathx.Clamp(logical, 0, MaxDuty)
	if d.polarity == ActiveLow {
		return MaxDuty - l
	}
	return l
}

// Init claims the outputs, leaves them inactive and starts the period loop.
func (d *Driver) Init(ctx context.Context, cfg Config, cb Callback) error {
	if cfg.Period <= 0 || len(cfg.Pins) == 0 || len(cfg.Pins) > 2 || cfg.Initial > MaxDuty {
		return errcode.InvalidParams
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inited {
		return errcode.AlreadyInitialized
	}

	d.polarity = cfg.Polarity
	chans := make([]*channel, 0, len(cfg.Pins))
	for _, pin := range cfg.Pins {
		out, err := d.outs.ByPin(pin)
		if err != nil {
			return errcode.Wrap("pwm.init", err, errcode.DriverInit)
		}
		if err := out.Configure(cfg.Period); err != nil {
			return errcode.Wrap("pwm.init", err, errcode.DriverInit)
		}
		out.SetDuty(d.toPhys(0))
		chans = append(chans, &channel{out: out, duty: cfg.Initial})
	}

	d.chans = chans
	d.period = cfg.Period
	d.cb = cb
	d.latched = make(chan struct{})
	d.inited = true
	go d.run(ctx)
	return nil
}

// Period returns the configured PWM period.
func (d *Driver) Period() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.period
}

// Enable drives every channel at its latched duty.
func (d *Driver) Enable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return errcode.NotInitialized
	}
	d.enabled = true
	for _, c := range d.chans {
		c.out.SetDuty(d.toPhys(c.duty))
	}
	return nil
}

// Disable holds every output at its inactive level. Latched values are kept.
func (d *Driver) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return errcode.NotInitialized
	}
	d.enabled = false
	for _, c := range d.chans {
		c.out.SetDuty(d.toPhys(0))
	}
	return nil
}

// SetDuty requests a new logical duty (percent, clamped to 0..100) for
// channel ch. It returns errcode.Busy while the previous request on that
// channel has not been latched.
func (d *Driver) SetDuty(ch int, pct uint8) error {
	_, err := d.trySet(ch, pct)
	return err
}

// trySet is SetDuty that, on Busy, also returns the channel closed by the
// next latch. Both are taken under one lock so a latch cannot slip between
// them.
func (d *Driver) trySet(ch int, pct uint8) (<-chan struct{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return nil, errcode.NotInitialized
	}
	if ch < 0 || ch >= len(d.chans) {
		return nil, errcode.InvalidParams
	}
	c := d.chans[ch]
	if c.busy {
		return d.latched, errcode.Busy
	}
	c.pending = mathx.Clamp(pct, 0, MaxDuty)
	c.busy = true
	return nil, nil
}

// SetDutyWait retries SetDuty while the channel is busy, yielding until the
// next latch between attempts. It gives up with errcode.Timeout when ctx ends.
func (d *Driver) SetDutyWait(ctx context.Context, ch int, pct uint8) error {
	for {
		latched, err := d.trySet(ch, pct)
		if !errcode.Is(err, errcode.Busy) {
			return err
		}
		if d.onBusy != nil {
			d.onBusy()
		}
		select {
		case <-ctx.Done():
			return &errcode.E{C: errcode.Timeout, Op: "pwm.set_duty", Err: ctx.Err()}
		case <-latched:
		}
	}
}

// Duty returns the latched logical duty of channel ch.
func (d *Driver) Duty(ch int) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return 0, errcode.NotInitialized
	}
	if ch < 0 || ch >= len(d.chans) {
		return 0, errcode.InvalidParams
	}
	return d.chans[ch].duty, nil
}

// Busy reports whether channel ch has an update in flight.
func (d *Driver) Busy(ch int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ch >= 0 && ch < len(d.chans) && d.chans[ch].busy
}

// Done is closed when the period loop exits.
func (d *Driver) Done() <-chan struct{} { return d.stopped }

type latch struct {
	ch   int
	duty uint8
}

func (d *Driver) run(ctx context.Context) {
	defer close(d.stopped)
	tk := time.NewTicker(d.period)
	defer tk.Stop()

	var done []latch
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}

		done = done[:0]
		d.mu.Lock()
		for i, c := range d.chans {
			if !c.busy {
				continue
			}
			c.duty = c.pending
			c.busy = false
			if d.enabled {
				c.out.SetDuty(d.toPhys(c.duty))
			}
			done = append(done, latch{i, c.duty})
		}
		if len(done) > 0 {
			close(d.latched)
			d.latched = make(chan struct{})
		}
		cb := d.cb
		d.mu.Unlock()

		if cb != nil {
			for _, l := range done {
				cb(l.ch, l.duty)
			}
		}
	}
}
