package memory

import (
	"context"
	"log/slog"
	"sync"

	appoutbox "stationbeds/internal/app/outbox"
)

// Sink receives records once the command that staged them has succeeded.
type Sink func(ctx context.Context, records []appoutbox.EventRecord) error

// Outbox keeps the records of a command in its context batch until Flush.
// Published records are retained for inspection, up to Keep of them.
type Outbox struct {
	Sink   Sink
	Logger *slog.Logger
	Keep   int

	mu        sync.Mutex
	published []appoutbox.EventRecord
}

const defaultKeep = 1000

func NewOutbox(sink Sink, logger *slog.Logger) *Outbox {
	return &Outbox{Sink: sink, Logger: logger, Keep: defaultKeep}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if b, ok := appoutbox.BatchFromContext(ctx); ok {
		b.Append(record)
		return nil
	}
	return o.publish(ctx, []appoutbox.EventRecord{record})
}

func (o *Outbox) Flush(ctx context.Context) error {
	b, ok := appoutbox.BatchFromContext(ctx)
	if !ok {
		return nil
	}
	records := b.Take()
	if len(records) == 0 {
		return nil
	}
	return o.publish(ctx, records)
}

func (o *Outbox) Discard(ctx context.Context) {
	if b, ok := appoutbox.BatchFromContext(ctx); ok {
		b.Take()
	}
}

// Published returns a copy of the retained records, oldest first.
func (o *Outbox) Published() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, len(o.published))
	copy(out, o.published)
	return out
}

func (o *Outbox) publish(ctx context.Context, records []appoutbox.EventRecord) error {
	o.mu.Lock()
	o.published = append(o.published, records...)
	keep := o.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	if over := len(o.published) - keep; over > 0 {
		o.published = append([]appoutbox.EventRecord(nil), o.published[over:]...)
	}
	o.mu.Unlock()

	if o.Logger != nil {
		for _, rec := range records {
			o.Logger.DebugContext(ctx, "outbox record published", slog.String("event", rec.Name), slog.String("aggregate", rec.Aggregate))
		}
	}
	if o.Sink == nil {
		return nil
	}
	// the command already committed; a failing sink is reported, not returned
	if err := o.Sink(ctx, records); err != nil && o.Logger != nil {
		o.Logger.WarnContext(ctx, "outbox sink failed", slog.Int("records", len(records)), slog.Any("error", err))
	}
	return nil
}

var _ appoutbox.Outbox = (*Outbox)(nil)
var _ appoutbox.Discarder = (*Outbox)(nil)
