// Package notify turns decision notices into outbox records and delivers them
// on the other side of the broker. Message bodies are the mailer's business;
// the engine only names a template and supplies its data.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "stationbeds/internal/app/outbox"
	"stationbeds/internal/app/policies"
)

// EventName is the outbox event carrying a notification request.
const EventName = "notification.requested"

// Notification is the payload of a notification.requested event.
type Notification struct {
	ID          string          `json:"id"`
	To          string          `json:"to"`
	Template    string          `json:"template"`
	Data        json.RawMessage `json:"data"`
	RequestedAt time.Time       `json:"requested_at"`
}

var ErrNoRecipient = errors.New("notify: recipient required")

// OutboxNotifier stages notifications in the outbox of the running command,
// so a notice is sent only if the decision that triggered it commits.
type OutboxNotifier struct {
	Outbox appoutbox.Outbox
	Now    func() time.Time
}

func (n OutboxNotifier) Send(ctx context.Context, to string, template string, data any) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if n.Now != nil {
		now = n.Now().UTC()
	}
	note := Notification{ID: uuid.NewString(), To: to, Template: template, Data: raw, RequestedAt: now}
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return n.Outbox.Add(ctx, appoutbox.EventRecord{
		ID:         note.ID,
		Name:       EventName,
		Payload:    payload,
		OccurredAt: now,
		Aggregate:  to,
		Headers:    map[string]string{"template": template},
	})
}

var _ policies.Notifier = OutboxNotifier{}
