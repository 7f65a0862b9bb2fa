package service

import (
	"context"
	"testing"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_DeliversInOrder(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()

	var got []string
	n.Subscribe(func(_ context.Context, ev oauth.Event) { got = append(got, "a:"+string(ev.Type)) })
	n.Subscribe(func(_ context.Context, ev oauth.Event) { got = append(got, "b:"+string(ev.Type)) })

	n.Emit(ctx, oauth.Event{Type: oauth.EventCreate, SessionID: "s1"})
	n.Emit(ctx, oauth.Event{Type: oauth.EventBegin, SessionID: "s1"})
	n.Emit(ctx, oauth.Event{Type: oauth.EventKill, SessionID: "s1"})

	assert.Equal(t, []string{
		"a:create", "b:create",
		"a:begin", "b:begin",
		"a:kill", "b:kill",
	}, got)
}

func TestNotifier_NoReplay(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()

	n.Emit(ctx, oauth.Event{Type: oauth.EventCreate, SessionID: "early"})

	rec := &eventRecorder{}
	n.Subscribe(rec.handle)
	n.Emit(ctx, oauth.Event{Type: oauth.EventKill, SessionID: "late"})

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "late", events[0].SessionID)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()

	rec := &eventRecorder{}
	other := &eventRecorder{}
	unsubscribe := n.Subscribe(rec.handle)
	n.Subscribe(other.handle)
	assert.Equal(t, 2, n.Len())

	n.Emit(ctx, oauth.Event{Type: oauth.EventCreate})
	unsubscribe()
	unsubscribe()
	n.Emit(ctx, oauth.Event{Type: oauth.EventCreate})

	assert.Len(t, rec.all(), 1)
	assert.Len(t, other.all(), 2)
	assert.Equal(t, 1, n.Len())
}

func TestNotifier_RecoversSubscriberPanic(t *testing.T) {
	n := NewNotifier(nil)
	rec := &eventRecorder{}

	n.Subscribe(func(context.Context, oauth.Event) { panic("boom") })
	n.Subscribe(rec.handle)

	assert.NotPanics(t, func() {
		n.Emit(context.Background(), oauth.Event{Type: oauth.EventBegin})
	})
	assert.Len(t, rec.all(), 1)
}

func TestNotifier_NilHandler(t *testing.T) {
	n := NewNotifier(nil)
	unsubscribe := n.Subscribe(nil)
	assert.NotNil(t, unsubscribe)
	assert.Zero(t, n.Len())
}
