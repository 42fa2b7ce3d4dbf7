//go:build !baremetal

package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"boarddemo-go/bus"
	"boarddemo-go/services/app"
	"boarddemo-go/services/config"
	"boarddemo-go/services/hal/platform"
	"boarddemo-go/services/heartbeat"
	"boarddemo-go/types"
	"boarddemo-go/x/conv"
)

var (
	runOpts = struct {
		press   string
		monitor bool
		hold    time.Duration
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Boot the demo and echo stdin lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			presses, err := parsePresses(runOpts.press)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			host := platform.NewHost(cfg.Board.UART.ID, os.Stdin, os.Stdout)
			b := bus.NewBus(16)
			appConn := b.NewConnection("app")
			uiConn := b.NewConnection("ui")
			config.Publish(uiConn, cfg)
			if runOpts.monitor {
				go monitor(ctx, uiConn)
			}

			a := app.New(cfg, host.Board(cfg.Board.Name), appConn,
				app.WithFatalHandler(func(err error) {
					println("[sim] fatal:", err.Error())
				}))
			_ = heartbeat.New(a, cfg.Heartbeat.Interval).Start(ctx, b.NewConnection("heartbeat"))
			go script(ctx, a, host, cfg, presses, runOpts.hold)
			return a.Run(ctx)
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&runOpts.press, "press", "p", "", `button script, e.g. "a@500ms,b@2s"`)
	runCmd.Flags().BoolVarP(&runOpts.monitor, "monitor", "m", false, "print bus traffic to stderr")
	runCmd.Flags().DurationVar(&runOpts.hold, "hold", 100*time.Millisecond, "how long each scripted press is held")
}

// script waits for the app to idle, then drives the button pins.
func script(ctx context.Context, a *app.App, host *platform.Host, cfg config.Config, presses []press, hold time.Duration) {
	if len(presses) == 0 {
		return
	}
	for a.State() != app.Idle {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t0 := time.Now()
	for _, p := range presses {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(t0.Add(p.at))):
		}
		pin := host.Pins.Get(cfg.Board.Buttons[p.button])
		pin.Set(false)
		time.Sleep(hold)
		pin.Set(true)
	}
}

func monitor(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(bus.T("#"))
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			println("[monitor]", m.Topic.String(), describe(m.Payload))
		}
	}
}

func describe(v any) string {
	switch p := v.(type) {
	case types.AppState:
		return p.State
	case types.FatalReport:
		return p.Op + " " + p.Error
	case types.LEDValue:
		return "led" + conv.Istr(p.Index) + "=" + onOff(p.On)
	case types.PWMValue:
		return "duty=" + conv.Istr(int(p.Duty))
	case types.ButtonEvent:
		return string(p.Action)
	case types.Heartbeat:
		return p.State + " duty=" + conv.Istr(int(p.Duty))
	case types.SerialLine:
		return conv.Istr(len(p.Data)) + " bytes"
	}
	return ""
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
