package main

import (
	"context"
	"time"

	"boarddemo-go/bus"
	"boarddemo-go/services/app"
	"boarddemo-go/services/config"
	"boarddemo-go/services/hal/platform"
	"boarddemo-go/services/heartbeat"
	"boarddemo-go/types"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(bootDelay)
	println("[main] boot", boardName)

	cfg, err := config.ForBoard(boardName)
	if err != nil {
		app.Halt(err)
	}

	b := bus.NewBus(8)
	appConn := b.NewConnection("app")
	uiConn := b.NewConnection("ui")
	config.Publish(uiConn, cfg)

	mon := uiConn.Subscribe(bus.T("app", "#"))
	go func() {
		for m := range mon.Channel() {
			print("[monitor] ", m.Topic.String())
			switch v := m.Payload.(type) {
			case types.AppState:
				print(" ", v.State)
			case types.FatalReport:
				print(" ", v.Op, " ", v.Error)
			}
			println()
		}
	}()

	board, err := platform.Open(cfg.Board)
	if err != nil {
		app.Halt(err)
	}

	ctx := context.Background()
	a := app.New(cfg, board, appConn)
	_ = heartbeat.New(a, cfg.Heartbeat.Interval).Start(ctx, b.NewConnection("heartbeat"))

	// Run only returns after the fatal handler, which never returns.
	_ = a.Run(ctx)
}
