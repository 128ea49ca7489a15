package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_SubscribePublish(t *testing.T) {
	d := NewDispatcher()

	var got []Event
	d.Subscribe(EventStateChanged, func(e Event) {
		got = append(got, e)
	})

	d.Publish(Event{Kind: EventStateChanged, State: StatePlaying})
	d.Publish(Event{Kind: EventPlaybackError}) // no handler for this kind

	assert.Len(t, got, 1)
	assert.Equal(t, StatePlaying, got[0].State)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()

	calls := 0
	token := d.Subscribe(EventDuck, func(Event) { calls++ })
	assert.Equal(t, 1, d.SubscriberCount(EventDuck))

	d.Publish(Event{Kind: EventDuck, Ducked: true})
	d.Unsubscribe(token)
	d.Publish(Event{Kind: EventDuck, Ducked: false})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, d.SubscriberCount(EventDuck))

	// Unknown token is a no-op
	d.Unsubscribe("not-a-token")
}

func TestDispatcher_MultipleHandlers(t *testing.T) {
	d := NewDispatcher()

	a, b := 0, 0
	d.Subscribe(EventRemoteCommand, func(Event) { a++ })
	d.Subscribe(EventRemoteCommand, func(Event) { b++ })

	d.Publish(Event{Kind: EventRemoteCommand, Command: RemotePlay})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
