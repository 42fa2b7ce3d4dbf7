package pwm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
)

type fakeOut struct {
	mu      sync.Mutex
	pin     int
	period  time.Duration
	history []uint8
	cfgErr  error
}

func (o *fakeOut) Pin() int { return o.pin }
func (o *fakeOut) Configure(p time.Duration) error {
	o.period = p
	return o.cfgErr
}
func (o *fakeOut) SetDuty(pct uint8) {
	o.mu.Lock()
	o.history = append(o.history, pct)
	o.mu.Unlock()
}
func (o *fakeOut) last() uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.history) == 0 {
		return 255
	}
	return o.history[len(o.history)-1]
}

type fakeOuts map[int]*fakeOut

func (f fakeOuts) ByPin(pin int) (core.PWMOutput, error) {
	o, ok := f[pin]
	if !ok {
		return nil, errcode.UnknownPin
	}
	return o, nil
}

func newDriver(t *testing.T, pol Polarity, cb Callback) (*Driver, *fakeOut, context.CancelFunc) {
	t.Helper()
	out := &fakeOut{pin: 4}
	d := New(fakeOuts{4: out})
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Init(ctx, Config{Period: 2 * time.Millisecond, Pins: []int{4}, Polarity: pol}, cb); err != nil {
		cancel()
		t.Fatalf("Init: %v", err)
	}
	return d, out, cancel
}

func TestBusyUntilLatched(t *testing.T) {
	latched := make(chan uint8, 4)
	d, out, cancel := newDriver(t, ActiveHigh, func(_ int, duty uint8) { latched <- duty })
	defer cancel()
	_ = d.Enable()

	if err := d.SetDuty(0, 12); err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	if err := d.SetDuty(0, 4); !errcode.Is(err, errcode.Busy) {
		t.Fatalf("second SetDuty err=%v want busy", err)
	}

	select {
	case v := <-latched:
		if v != 12 {
			t.Fatalf("latched %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("never latched")
	}
	if out.last() != 12 {
		t.Fatalf("output=%d", out.last())
	}
	if d.Busy(0) {
		t.Fatal("still busy after latch")
	}
	if v, _ := d.Duty(0); v != 12 {
		t.Fatalf("Duty=%d", v)
	}
}

func TestSetDutyWaitAppliesRequestedValue(t *testing.T) {
	d, out, cancel := newDriver(t, ActiveHigh, nil)
	defer cancel()
	_ = d.Enable()

	_ = d.SetDuty(0, 50)
	ctx, c2 := context.WithTimeout(context.Background(), time.Second)
	defer c2()
	if err := d.SetDutyWait(ctx, 0, 4); err != nil {
		t.Fatalf("SetDutyWait: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for d.Busy(0) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if v, _ := d.Duty(0); v != 4 {
		t.Fatalf("Duty=%d want 4", v)
	}
	if out.last() != 4 {
		t.Fatalf("output=%d want 4", out.last())
	}
}

func TestSetDutyWaitSeesLatchBeforeWait(t *testing.T) {
	d, out, cancel := newDriver(t, ActiveHigh, nil)
	defer cancel()
	_ = d.Enable()

	// Let the latch land after the Busy result but before the wait starts.
	var once sync.Once
	d.onBusy = func() {
		once.Do(func() {
			deadline := time.Now().Add(time.Second)
			for d.Busy(0) && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
		})
	}

	_ = d.SetDuty(0, 50)
	ctx, c2 := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer c2()
	if err := d.SetDutyWait(ctx, 0, 12); err != nil {
		t.Fatalf("SetDutyWait: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for d.Busy(0) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if v, _ := d.Duty(0); v != 12 || out.last() != 12 {
		t.Fatalf("Duty=%d output=%d want 12", v, out.last())
	}
}

func TestInitialDutyDrivenOnEnable(t *testing.T) {
	out := &fakeOut{pin: 4}
	d := New(fakeOuts{4: out})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Init(ctx, Config{Period: time.Hour, Pins: []int{4}, Polarity: ActiveLow, Initial: 30}, nil); err != nil {
		t.Fatal(err)
	}
	if out.last() != 100 {
		t.Fatalf("output before Enable=%d want idle 100", out.last())
	}
	if err := d.Enable(); err != nil {
		t.Fatal(err)
	}
	if out.last() != 70 {
		t.Fatalf("output=%d want 70", out.last())
	}
	if v, _ := d.Duty(0); v != 30 || d.Busy(0) {
		t.Fatalf("Duty=%d busy=%v", v, d.Busy(0))
	}
}

func TestSetDutyWaitTimesOut(t *testing.T) {
	out := &fakeOut{pin: 4}
	d := New(fakeOuts{4: out})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Period long enough that nothing latches during the test.
	if err := d.Init(ctx, Config{Period: time.Hour, Pins: []int{4}}, nil); err != nil {
		t.Fatal(err)
	}
	_ = d.SetDuty(0, 1)

	wctx, c2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer c2()
	err := d.SetDutyWait(wctx, 0, 2)
	if !errcode.Is(err, errcode.Timeout) {
		t.Fatalf("err=%v want timeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause not kept: %v", err)
	}
}

func TestActiveLowAndDisable(t *testing.T) {
	d, out, cancel := newDriver(t, ActiveLow, nil)
	defer cancel()

	if out.last() != 100 {
		t.Fatalf("inactive active-low output=%d want 100", out.last())
	}
	_ = d.Enable()
	ctx, c2 := context.WithTimeout(context.Background(), time.Second)
	defer c2()
	_ = d.SetDutyWait(ctx, 0, 12)
	deadline := time.Now().Add(time.Second)
	for out.last() != 88 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if out.last() != 88 {
		t.Fatalf("active-low 12%% -> %d want 88", out.last())
	}

	_ = d.Disable()
	if out.last() != 100 {
		t.Fatalf("disabled output=%d want 100", out.last())
	}
	if v, _ := d.Duty(0); v != 12 {
		t.Fatalf("Disable lost latched duty: %d", v)
	}
}

func TestClampAndErrors(t *testing.T) {
	d, _, cancel := newDriver(t, ActiveHigh, nil)
	defer cancel()

	if err := d.SetDuty(1, 10); !errcode.Is(err, errcode.InvalidParams) {
		t.Fatalf("bad channel: %v", err)
	}
	_ = d.SetDuty(0, 250)
	d.mu.Lock()
	p := d.chans[0].pending
	d.mu.Unlock()
	if p != 100 {
		t.Fatalf("pending=%d want clamp to 100", p)
	}

	if err := d.Init(context.Background(), Config{Period: time.Millisecond, Pins: []int{4}}, nil); !errcode.Is(err, errcode.AlreadyInitialized) {
		t.Fatalf("second Init: %v", err)
	}
	if err := New(fakeOuts{}).SetDuty(0, 1); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatalf("before Init: %v", err)
	}
}

func TestInitValidation(t *testing.T) {
	ctx := context.Background()
	bad := []Config{
		{Period: 0, Pins: []int{4}},
		{Period: time.Millisecond},
		{Period: time.Millisecond, Pins: []int{1, 2, 3}},
		{Period: time.Millisecond, Pins: []int{4}, Initial: 101},
	}
	for i, cfg := range bad {
		if err := New(fakeOuts{}).Init(ctx, cfg, nil); !errcode.Is(err, errcode.InvalidParams) {
			t.Fatalf("case %d: err=%v", i, err)
		}
	}
	if err := New(fakeOuts{}).Init(ctx, Config{Period: time.Millisecond, Pins: []int{9}}, nil); !errcode.Is(err, errcode.UnknownPin) {
		t.Fatalf("unknown pin: %v", err)
	}
	failing := fakeOuts{4: {pin: 4, cfgErr: errors.New("slice in use")}}
	if err := New(failing).Init(ctx, Config{Period: time.Millisecond, Pins: []int{4}}, nil); !errcode.Is(err, errcode.DriverInit) {
		t.Fatalf("configure failure: %v", err)
	}
}
