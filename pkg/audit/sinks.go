package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/events"
	"github.com/nineking424/nificdc-sub002/pkg/log"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Sink delivers a fired alert to one destination kind.
type Sink interface {
	Dispatch(alert *types.Alert, action types.AlertAction) error
}

// LogSink writes the alert to the structured log.
type LogSink struct{}

func (s *LogSink) Dispatch(alert *types.Alert, action types.AlertAction) error {
	logger := log.WithComponent("audit")
	logger.Warn().
		Str("rule", alert.RuleName).
		Str("group", alert.GroupKey).
		Str("severity", string(alert.Severity)).
		Int("count", alert.Count).
		Msg("Security alert fired")
	return nil
}

// EventSink republishes the alert on the event bus, for websocket
// clients subscribed to the alerts channel.
type EventSink struct {
	Broker *events.Broker
}

func (s *EventSink) Dispatch(alert *types.Alert, action types.AlertAction) error {
	s.Broker.Publish(&events.Event{
		Channel: events.ChannelAlerts,
		Type:    events.EventAlertFired,
		Message: alert.RuleName,
		Data:    alert,
	})
	return nil
}

// WebhookSink POSTs the alert as JSON to the action's target URL.
type WebhookSink struct {
	Client *http.Client
}

func (s *WebhookSink) Dispatch(alert *types.Alert, action types.AlertAction) error {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return errdefs.Wrap(errdefs.KindInternal, err, "marshal alert")
	}
	resp, err := client.Post(action.Target, "application/json", bytes.NewReader(body))
	if err != nil {
		return errdefs.Wrap(errdefs.KindConnectorIO, err, "webhook %s", action.Target)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errdefs.New(errdefs.KindConnectorIO, "webhook %s returned %d", action.Target, resp.StatusCode)
	}
	return nil
}
