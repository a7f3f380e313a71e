package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClaims struct {
	queue  []*EventDocument
	sent   []string
	failed map[string]time.Time
}

func (f *fakeClaims) Claim(context.Context, string) (*EventDocument, error) {
	if len(f.queue) == 0 {
		return nil, nil
	}
	doc := f.queue[0]
	f.queue = f.queue[1:]
	return doc, nil
}

func (f *fakeClaims) MarkSent(_ context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeClaims) MarkFailed(_ context.Context, id string, next time.Time, _ string) error {
	if f.failed == nil {
		f.failed = map[string]time.Time{}
	}
	f.failed[id] = next
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	msgs []published
	err  error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func doc(id, name string, attempts int) *EventDocument {
	return &EventDocument{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"visit_id":"v-1"}`),
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Aggregate:  "v-1",
		Headers:    map[string]string{"template": "visit.approved"},
		Attempts:   attempts,
	}
}

func TestWorker_PublishesCloudEvents(t *testing.T) {
	store := &fakeClaims{queue: []*EventDocument{doc("e-1", "visit.approved", 0), doc("e-2", "notification.requested", 0)}}
	producer := &fakeProducer{}
	w := &Worker{Store: store, Producer: producer, TopicPrefix: "dev.", Logger: quiet}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"e-1", "e-2"}, store.sent)

	require.Len(t, producer.msgs, 2)
	first := producer.msgs[0]
	assert.Equal(t, "dev.visit.events.v1", first.topic)
	assert.Equal(t, "v-1", first.key)
	assert.Equal(t, "application/cloudevents+json", first.headers["content-type"])
	assert.Equal(t, "visit.approved", first.headers["template"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(first.payload, &evt))
	assert.Equal(t, "e-1", evt["id"])
	assert.Equal(t, "visit.approved.v1", evt["type"])
	assert.Equal(t, "app://stationbeds", evt["source"])
	assert.Equal(t, map[string]any{"visit_id": "v-1"}, evt["data"])

	assert.Equal(t, "dev.notification.events.v1", producer.msgs[1].topic)
}

func TestWorker_ReschedulesFailedDeliveries(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeClaims{queue: []*EventDocument{doc("e-1", "visit.approved", 0), doc("e-2", "visit.approved", 7)}}
	w := &Worker{
		Store:    store,
		Producer: &fakeProducer{err: errors.New("broker down")},
		Backoff:  []time.Duration{time.Second, time.Minute},
		Logger:   quiet,
		Now:      func() time.Time { return now },
	}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, store.sent)
	assert.Equal(t, now.Add(time.Second), store.failed["e-1"])
	assert.Equal(t, now.Add(time.Minute), store.failed["e-2"])
}

func TestWorker_DrainStopsAtBatchSize(t *testing.T) {
	store := &fakeClaims{queue: []*EventDocument{doc("a", "visit.requested", 0), doc("b", "visit.requested", 0), doc("c", "visit.requested", 0)}}
	w := &Worker{Store: store, Producer: &fakeProducer{}, BatchSize: 2, Logger: quiet}

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.queue, 1)
}

func TestWorker_RunRequiresDependencies(t *testing.T) {
	err := (&Worker{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrWorkerNotConfigured)
}
