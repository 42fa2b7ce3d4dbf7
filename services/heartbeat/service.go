package heartbeat

import (
	"context"
	"time"

	"boarddemo-go/bus"
	"boarddemo-go/services/config"
	"boarddemo-go/types"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicHeartbeat       = bus.Topic{"app", "heartbeat"}
)

// Source supplies the status summary.
type Source interface {
	Status() types.Heartbeat
}

type Service struct {
	src      Source
	interval time.Duration
	t0       time.Time
}

func New(src Source, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Service{src: src, interval: interval}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			hb := s.src.Status()
			hb.UptimeMs = time.Since(s.t0).Milliseconds()
			println("[heartbeat]", hb.State, "duty", hb.Duty, "lines", hb.Lines)
			conn.Publish(conn.NewMessage(topicHeartbeat, hb, true))
		case msg := <-cfgSub.Channel():
			hc, ok := msg.Payload.(config.HeartbeatConfig)
			if !ok || hc.Interval <= 0 || hc.Interval == s.interval {
				continue
			}
			s.interval = hc.Interval
			tick.Reset(s.interval)
			println("[heartbeat] interval set to", s.interval.String())
		}
	}
}

// Start runs the heartbeat until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.t0 = time.Now()
	go s.serviceLoop(ctx, conn)
	return nil
}
