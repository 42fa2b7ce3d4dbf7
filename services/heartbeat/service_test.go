package heartbeat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"boarddemo-go/bus"
	"boarddemo-go/services/config"
	"boarddemo-go/types"
)

type fakeSource struct{ calls atomic.Int32 }

func (f *fakeSource) Status() types.Heartbeat {
	f.calls.Add(1)
	return types.Heartbeat{State: "idle", Duty: 12}
}

func TestPublishesStatus(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")
	sub := conn.Subscribe(topicHeartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = New(&fakeSource{}, 5*time.Millisecond).Start(ctx, conn)

	select {
	case m := <-sub.Channel():
		hb, ok := m.Payload.(types.Heartbeat)
		if !ok || hb.State != "idle" || hb.Duty != 12 || !m.Retained {
			t.Fatalf("heartbeat = %+v retained=%v", m.Payload, m.Retained)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestConfigChangesInterval(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")
	src := &fakeSource{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = New(src, time.Hour).Start(ctx, conn)

	time.Sleep(20 * time.Millisecond)
	if src.calls.Load() != 0 {
		t.Fatal("ticked before the interval")
	}
	conn.Publish(conn.NewMessage(topicConfigHeartbeat, config.HeartbeatConfig{Interval: 5 * time.Millisecond}, true))

	deadline := time.Now().Add(time.Second)
	for src.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("calls = %d after interval change", src.calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
