package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	appoutbox "stationbeds/internal/app/outbox"
)

// Mailer delivers one rendered notification.
type Mailer interface {
	Deliver(ctx context.Context, n Notification) error
}

// Deduper remembers delivered notifications across redeliveries.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Relay hands notification requests to the mailer, at most once per event id
// when a Deduper is set.
type Relay struct {
	Mailer Mailer
	Inbox  Deduper
	Logger *slog.Logger
}

var ErrMalformedEvent = errors.New("notify: malformed event")

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handle consumes a CloudEvent from the notification topic. Other event types
// on the topic are acknowledged and skipped.
func (r *Relay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		r.logger().WarnContext(ctx, "dropping undecodable message", slog.Int64("offset", msg.Offset), slog.Any("error", err))
		return nil
	}
	if evt.Type != EventName+".v1" {
		return nil
	}
	var n Notification
	if err := json.Unmarshal(evt.Data, &n); err != nil {
		r.logger().WarnContext(ctx, "dropping malformed notification", slog.String("event_id", evt.ID), slog.Any("error", err))
		return nil
	}
	return r.deliver(ctx, evt.ID, n)
}

// Sink adapts the relay to the in-memory outbox, which hands over records
// directly instead of going through the broker.
func (r *Relay) Sink(ctx context.Context, records []appoutbox.EventRecord) error {
	var errs []error
	for _, rec := range records {
		if rec.Name != EventName {
			continue
		}
		var n Notification
		if err := json.Unmarshal(rec.Payload, &n); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, rec.ID, err))
			continue
		}
		if err := r.deliver(ctx, rec.ID, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Relay) deliver(ctx context.Context, eventID string, n Notification) error {
	if r.Inbox != nil {
		seen, err := r.Inbox.Seen(ctx, eventID)
		if err != nil {
			return err
		}
		if seen {
			r.logger().DebugContext(ctx, "duplicate notification skipped", slog.String("event_id", eventID))
			return nil
		}
	}
	if err := r.Mailer.Deliver(ctx, n); err != nil {
		if r.Inbox != nil {
			_ = r.Inbox.Forget(ctx, eventID)
		}
		return err
	}
	return nil
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// LogMailer writes notifications to the log instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Deliver(ctx context.Context, n Notification) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		slog.String("id", n.ID),
		slog.String("to", n.To),
		slog.String("template", n.Template),
		slog.String("data", string(n.Data)),
	)
	return nil
}
