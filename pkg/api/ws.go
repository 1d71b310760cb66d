package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nineking424/nificdc-sub002/pkg/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy belongs to the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the wire shape of every websocket frame.
type wsMessage struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	TS   time.Time `json:"ts"`
}

// handleWS upgrades the connection and streams broker events for the
// requested channels (?channels=metrics,alerts; empty means all). The
// first frame is always initial_state.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var channels []events.Channel
	if raw := r.URL.Query().Get("channels"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			channels = append(channels, events.Channel(strings.TrimSpace(name)))
		}
	}
	sub := s.broker.Subscribe(channels...)
	defer s.broker.Unsubscribe(sub)

	if err := conn.WriteJSON(wsMessage{
		Type: "initial_state",
		Data: map[string]any{
			"channels":    channels,
			"subscribers": s.broker.SubscriberCount(),
		},
		TS: time.Now().UTC(),
	}); err != nil {
		return
	}

	// Reader goroutine only detects client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsMessage{Type: messageType(ev.Channel), Data: ev, TS: time.Now().UTC()}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				s.logger.Debug().
					Err(err).
					Uint64("dropped", s.broker.Dropped(sub)).
					Msg("websocket client gone")
				return
			}
		case <-done:
			return
		}
	}
}

func messageType(ch events.Channel) string {
	switch ch {
	case events.ChannelMetrics:
		return "metrics"
	case events.ChannelAlerts:
		return "alert"
	case events.ChannelSystem:
		return "health"
	default:
		return "event"
	}
}
