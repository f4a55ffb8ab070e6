package shadowhub

import (
	"context"
	"time"

	"thingcode-go/bus"
)

var (
	topicHeartbeat       = bus.T("hub", "heartbeat")
	topicConfigHeartbeat = bus.T("config", "heartbeat")
)

// Beat is the retained heartbeat payload.
type Beat struct {
	Time   int64 `json:"time"`
	Things int   `json:"things"`
}

// Heartbeat publishes a retained Beat every interval. A {"interval": seconds}
// message on config/heartbeat changes the period.
func (h *Hub) Heartbeat(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	conn := h.b.NewConnection("heartbeat")
	defer conn.Disconnect()
	cfg := conn.Subscribe(topicConfigHeartbeat)

	tick := time.NewTicker(interval)
	defer tick.Stop()
	h.beat(conn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			h.beat(conn)
		case m, ok := <-cfg.Channel():
			if !ok {
				return nil
			}
			if p, ok := m.Payload.(map[string]any); ok {
				if s, ok := p["interval"].(float64); ok && s > 0 {
					tick.Reset(time.Duration(s * float64(time.Second)))
					h.log.Info("heartbeat interval", "seconds", s)
				}
			}
		}
	}
}

func (h *Hub) beat(conn *bus.Connection) {
	n := len(h.b.RetainedMatching(bus.T(topicShadow, bus.Single)))
	conn.Publish(conn.NewMessage(topicHeartbeat, Beat{Time: h.Now(), Things: n}, true))
}
