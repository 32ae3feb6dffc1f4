package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-docquery/core/command"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []persistence.OperationEvent
}

func (r *recorder) record(_ context.Context, ev persistence.OperationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) snapshot() []persistence.OperationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]persistence.OperationEvent(nil), r.events...)
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, persistence.DocumentWriteSuccess, persistence.EventTypeFor(command.OperationWrite, persistence.PhaseSuccess))
	assert.Equal(t, persistence.DocumentQueryFailed, persistence.EventTypeFor(command.OperationQuery, persistence.PhaseFailed))
	assert.Equal(t, persistence.DocumentReadStart, persistence.EventTypeFor(command.OperationRead, persistence.PhaseStart))
}

func TestAdapter_EmitsOperationEvents(t *testing.T) {
	a := persistence.NewAdapter(memory.NewStore(nil))
	ctx := context.Background()

	success := &recorder{}
	failed := &recorder{}
	started := &recorder{}
	a.Subscribe(persistence.DocumentWriteSuccess, success.record)
	a.Subscribe(persistence.DocumentReadFailed, failed.record)
	a.Subscribe(persistence.DocumentWriteStart, started.record)

	a.Interact(ctx, `write:bookings:b1:{"status":"pending"}`)
	a.Interact(ctx, "read:bookings:ghost")

	require.Eventually(t, func() bool {
		return len(success.snapshot()) == 1 && len(failed.snapshot()) == 1 && len(started.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	ev := success.snapshot()[0]
	assert.Equal(t, persistence.DocumentWriteSuccess, ev.Type)
	assert.Equal(t, command.OperationWrite, ev.Operation)
	assert.Equal(t, "bookings", ev.Collection)
	assert.Equal(t, "b1", ev.DocumentID)
	assert.Equal(t, map[string]any{"status": "pending"}, ev.Input)
	assert.NotNil(t, ev.Duration)
	assert.Nil(t, ev.Error)

	fail := failed.snapshot()[0]
	require.NotNil(t, fail.Error)
	assert.Contains(t, *fail.Error, "Document ghost not found in collection bookings")

	assert.Nil(t, started.snapshot()[0].Duration)
}

func TestAdapter_AutoIDEventCarriesGeneratedID(t *testing.T) {
	a := persistence.NewAdapter(memory.NewStore(nil))
	ctx := context.Background()
	rec := &recorder{}
	a.Subscribe(persistence.DocumentWriteSuccess, rec.record)

	env := a.Envelope(ctx, `write:c::{"n":1}`)
	id, _ := env.Get("id")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, id, rec.snapshot()[0].DocumentID)
}

func TestAdapter_Subscriptions(t *testing.T) {
	a := persistence.NewAdapter(memory.NewStore(nil))
	ctx := context.Background()
	rec := &recorder{}

	id1 := a.Subscribe(persistence.DocumentWriteSuccess, rec.record)
	id2 := a.Subscribe(persistence.DocumentDeleteSuccess, rec.record)
	require.NotEmpty(t, id1)
	require.NotEqual(t, id1, id2)

	subs := a.Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, persistence.DocumentDeleteSuccess, subs[0].Event)
	assert.Equal(t, persistence.DocumentWriteSuccess, subs[1].Event)

	a.Unsubscribe(id1)
	a.Unsubscribe("unknown")
	assert.Len(t, a.Subscriptions(), 1)

	a.Interact(ctx, `write:c:x:{"n":1}`)
	a.Interact(ctx, "delete:c:x")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, persistence.DocumentDeleteSuccess, events[0].Type)
}
