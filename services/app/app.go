// Package app sequences the board bring-up and owns the state shared by the
// interrupt-context callbacks.
package app

import (
	"context"
	"errors"
	"sync/atomic"

	"boarddemo-go/bus"
	"boarddemo-go/drivers/apptimer"
	"boarddemo-go/drivers/button"
	"boarddemo-go/drivers/led"
	"boarddemo-go/drivers/lfclk"
	"boarddemo-go/drivers/pwm"
	"boarddemo-go/drivers/uartfifo"
	"boarddemo-go/errcode"
	"boarddemo-go/services/config"
	"boarddemo-go/services/echo"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/types"
	"boarddemo-go/x/conv"
	"boarddemo-go/x/strx"
	"boarddemo-go/x/timex"
)

type State uint32

const (
	Uninit State = iota
	ClockReady
	TimerReady
	ButtonsReady
	LedsReady
	PwmReady
	UartReady
	Idle
	Halted
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case ClockReady:
		return "clock_ready"
	case TimerReady:
		return "timer_ready"
	case ButtonsReady:
		return "buttons_ready"
	case LedsReady:
		return "leds_ready"
	case PwmReady:
		return "pwm_ready"
	case UartReady:
		return "uart_ready"
	case Idle:
		return "idle"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

const (
	ledHeartbeat = 0 // toggled by the timer
	ledButton    = 1 // set by the buttons
	pwmChannel   = 0
)

// FatalHandler is called once with the error that stopped the app.
type FatalHandler func(err error)

// Halt prints the error and blocks forever.
func Halt(err error) {
	println("[app] fatal:", err.Error())
	select {}
}

type Option func(*App)

func WithFatalHandler(h FatalHandler) Option {
	return func(a *App) { a.fatal = h }
}

type App struct {
	cfg   config.Config
	board core.Board
	conn  *bus.Connection
	fatal FatalHandler
	m     Mapping

	state atomic.Uint32
	duty  atomic.Uint32

	timers  *apptimer.Scheduler
	buttons *button.Watcher
	leds    *led.Bank
	pwm     *pwm.Driver
	uart    *uartfifo.FIFO
	echo    *echo.Echo

	ledsReady atomic.Bool
	pwmReady  atomic.Bool

	runCtx  context.Context
	faultCh chan error
}

// New prepares an app; nothing touches the hardware until Run. conn may be
// nil, in which case no telemetry is published.
func New(cfg config.Config, board core.Board, conn *bus.Connection, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		board:   board,
		conn:    conn,
		fatal:   Halt,
		m:       MappingFrom(cfg),
		faultCh: make(chan error, 1),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *App) State() State { return State(a.state.Load()) }

// Duty is the last duty value requested by a button.
func (a *App) Duty() uint8 { return uint8(a.duty.Load()) }

// Echo exposes the line echo (nil before UartReady).
func (a *App) Echo() *echo.Echo { return a.echo }

// Status summarises the app for the heartbeat. Component counters are only
// read once the app has settled in Idle or Halted.
func (a *App) Status() types.Heartbeat {
	st := a.State()
	hb := types.Heartbeat{State: st.String(), Duty: a.Duty(), TSms: timex.NowMs()}
	if st != Idle && st != Halted {
		return hb
	}
	if a.echo != nil {
		hb.Lines = a.echo.Lines()
	}
	if a.buttons != nil {
		hb.ISRDrops = a.buttons.ISRDrops()
	}
	if a.uart != nil {
		hb.Serial = a.uart.Stats()
	}
	return hb
}

type step struct {
	op   string
	next State
	fn   func(ctx context.Context) error
}

// Run brings the board up in order and idles until ctx ends or a runtime
// fault is raised. Any step error is fatal: it is published on app/fatal,
// handed to the fatal handler and returned.
func (a *App) Run(ctx context.Context) error {
	a.runCtx = ctx
	a.setState(Uninit)

	steps := []step{
		{"clock", ClockReady, a.startClock},
		{"timer", TimerReady, a.startTimer},
		{"buttons", ButtonsReady, a.startButtons},
		{"leds", LedsReady, a.startLEDs},
		{"pwm", PwmReady, a.startPWM},
		{"uart", UartReady, a.startUART},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				a.teardown()
				return ctx.Err()
			}
			return a.halt(&errcode.E{C: errcode.MapDriverErr(err), Op: s.op, Err: err})
		}
		a.setState(s.next)
	}

	a.setState(Idle)
	println("[app] idle")

	select {
	case <-ctx.Done():
		a.teardown()
		return nil
	case err := <-a.faultCh:
		return a.halt(err)
	}
}

// ---- bring-up steps ----

func (a *App) startClock(ctx context.Context) error {
	src, _ := config.ParseClockSource(a.cfg.Clock.Source)
	return lfclk.StartContext(ctx, a.board.Clock, src)
}

func (a *App) startTimer(ctx context.Context) error {
	a.timers = apptimer.New(a.cfg.Timer.MaxTimers)
	if err := a.timers.Init(ctx, a.board.Clock); err != nil {
		return err
	}
	id, err := a.timers.Create(apptimer.Repeated, a.onTick)
	if err != nil {
		return err
	}
	return a.timers.Start(id, a.cfg.Timer.Interval, nil)
}

func (a *App) startButtons(ctx context.Context) error {
	a.buttons = button.New(a.board.Pins)
	cfgs := make([]button.Config, 0, len(a.cfg.Board.Buttons))
	for _, pin := range a.cfg.Board.Buttons {
		cfgs = append(cfgs, button.Config{Pin: pin, ActiveLow: true, Pull: core.PullUp, Handler: a.onButton})
	}
	if err := a.buttons.Init(ctx, cfgs, a.cfg.Buttons.Debounce); err != nil {
		return err
	}
	return a.buttons.Enable()
}

func (a *App) startLEDs(context.Context) error {
	a.leds = led.New(a.board.Pins)
	if err := a.leds.Init(a.cfg.Board.LEDs, true); err != nil {
		return err
	}
	for i := 0; i < a.leds.Count(); i++ {
		a.publishLED(i, false)
	}
	a.ledsReady.Store(true)
	return nil
}

func (a *App) startPWM(ctx context.Context) error {
	pol := pwm.ActiveHigh
	if a.cfg.PWM.ActiveLow {
		pol = pwm.ActiveLow
	}
	a.pwm = pwm.New(a.board.PWM)
	err := a.pwm.Init(ctx, pwm.Config{
		Period:   a.cfg.PWM.Period,
		Pins:     a.cfg.Board.PWMPins[:1],
		Polarity: pol,
		Initial:  a.cfg.PWM.Initial,
	}, a.onLatched)
	if err != nil {
		return err
	}
	if err := a.pwm.Enable(); err != nil {
		return err
	}
	// Init latches the initial duty directly, so no period callback fires.
	a.onLatched(pwmChannel, a.cfg.PWM.Initial)
	a.duty.Store(uint32(a.cfg.PWM.Initial))
	a.pwmReady.Store(true)
	return nil
}

func (a *App) startUART(ctx context.Context) error {
	port, ok := a.board.Serial.ByID(a.cfg.Board.UART.ID)
	if !ok {
		return &errcode.E{C: errcode.InvalidParams, Op: "uart.open", Msg: "no port " + a.cfg.Board.UART.ID}
	}
	opts := []echo.Option{echo.WithFatal(func(err error) { a.raise(err) })}
	if a.conn != nil {
		opts = append(opts, echo.WithBus(a.conn, strx.After(a.cfg.Board.UART.ID, '/')))
	}
	a.echo = echo.New(ctx, a.cfg.Echo.LineCapacity, opts...)
	f, err := uartfifo.Open(ctx, port, uartfifo.Config{
		Baud:        a.cfg.UART.Baud,
		FlowControl: a.cfg.UART.FlowControl,
		Parity:      a.cfg.UART.Parity,
		RXFifo:      a.cfg.UART.RXFifo,
		TXFifo:      a.cfg.UART.TXFifo,
	}, a.echo.HandleFIFO)
	if err != nil {
		return err
	}
	a.uart = f
	return nil
}

// ---- interrupt-context callbacks ----

// onTick runs in the timer context.
func (a *App) onTick(any) {
	if !a.ledsReady.Load() {
		return
	}
	on, err := a.leds.Toggle(ledHeartbeat)
	if err != nil {
		return
	}
	a.publishLED(ledHeartbeat, on)
}

// onButton runs in the button context.
func (a *App) onButton(pin int, act types.ButtonAction) {
	a.publish(bus.T("io", "button", conv.Istr(pin), "event"),
		types.ButtonEvent{Pin: pin, Action: act, TSms: timex.NowMs()}, false)

	d, ok := DutyFor(a.m, pin, act)
	if !ok || !a.ledsReady.Load() || !a.pwmReady.Load() {
		return
	}
	if err := a.leds.Set(ledButton, d.LED2); err == nil {
		a.publishLED(ledButton, d.LED2)
	}
	a.duty.Store(uint32(d.Duty))
	if err := a.setDuty(d.Duty); err != nil {
		if a.runCtx.Err() != nil {
			return
		}
		a.raise(err)
	}
}

// onLatched runs in the PWM period context.
func (a *App) onLatched(ch int, duty uint8) {
	a.publish(bus.T("io", "pwm", conv.Istr(ch), "value"), types.PWMValue{Channel: ch, Duty: duty}, true)
}

// setDuty retries while the channel is busy, for at most RetryPeriods
// PWM periods.
func (a *App) setDuty(pct uint8) error {
	ctx, cancel := context.WithTimeout(a.runCtx, timex.Periods(a.cfg.PWM.Period, a.cfg.PWM.RetryPeriods))
	defer cancel()
	return a.pwm.SetDutyWait(ctx, pwmChannel, pct)
}

// raise reports a fault from an interrupt context. Only the first one is
// kept.
func (a *App) raise(err error) {
	select {
	case a.faultCh <- err:
	default:
	}
}

// ---- state, teardown, telemetry ----

func (a *App) halt(err error) error {
	st := a.State()
	a.setState(Halted)
	a.publish(bus.T("app", "fatal"), types.FatalReport{
		Op:    opOf(err),
		Code:  string(errcode.Of(err)),
		Error: err.Error(),
		State: st.String(),
		TSms:  timex.NowMs(),
	}, true)
	a.teardown()
	if a.fatal != nil {
		a.fatal(err)
	}
	return err
}

func opOf(err error) string {
	var e *errcode.E
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

func (a *App) teardown() {
	if a.uart != nil {
		_ = a.uart.Close()
	}
	if a.pwm != nil {
		_ = a.pwm.Disable()
	}
	if a.buttons != nil {
		_ = a.buttons.Disable()
	}
	if a.timers != nil {
		a.timers.StopAll()
	}
}

func (a *App) setState(s State) {
	a.state.Store(uint32(s))
	a.publish(bus.T("app", "state"), types.AppState{State: s.String(), TSms: timex.NowMs()}, true)
}

func (a *App) publishLED(i int, on bool) {
	a.publish(bus.T("io", "led", conv.Istr(i), "value"), types.LEDValue{Index: i, On: on}, true)
}

func (a *App) publish(t bus.Topic, payload any, retained bool) {
	if a.conn == nil {
		return
	}
	a.conn.Publish(a.conn.NewMessage(t, payload, retained))
}
