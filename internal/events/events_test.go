package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/memstore"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecipientsSurvivesJSON(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	e := Event{Type: EventPaymentHeld, Payload: map[string]any{
		PayloadRecipients: []string{a.String(), b.String()},
	}}
	assert.Equal(t, []uuid.UUID{a, b}, e.Recipients())

	data, err := json.Marshal(e)
	require.NoError(t, err)
	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []uuid.UUID{a, b}, decoded.Recipients())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

func (p *recordingPublisher) Publish(ctx context.Context, stream string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, event)
	return nil
}

func TestRelayPublishesAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.Outbox().Enqueue(ctx, &models.OutboxEvent{EventType: EventPetListed, Payload: map[string]any{"pet_id": "x"}}))
	require.NoError(t, st.Outbox().Enqueue(ctx, &models.OutboxEvent{EventType: EventPetVerified, Payload: map[string]any{}}))

	pub := &recordingPublisher{}
	relay := NewRelay(st, pub, 10, zap.NewNop())

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, pub.events, 2)

	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayKeepsFailedEventsPending(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.Outbox().Enqueue(ctx, &models.OutboxEvent{EventType: EventPetListed}))

	pub := &recordingPublisher{fail: errors.New("redis down")}
	relay := NewRelay(st, pub, 10, zap.NewNop())

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := st.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	pub.fail = nil
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryBusDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewMemoryBus(zap.NewNop())
	got := make(chan Event, 1)
	require.NoError(t, bus.Subscribe(ctx, StreamRehoming, func(e Event) { got <- e }))
	require.NoError(t, bus.Publish(ctx, StreamRehoming, Event{Type: EventDisputeOpened}))

	select {
	case e := <-got:
		assert.Equal(t, EventDisputeOpened, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
