package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eist-radio/streamd/internal/player"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe("sub-1")
	bus.Publish(player.Status{Playing: true, EngineState: "playing"})

	got := <-ch
	assert.True(t, got.Playing)
	assert.Equal(t, "playing", got.EngineState)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe("sub-1")
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe("sub-1")
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	// Publishing with no subscribers is fine
	bus.Publish(player.Status{})
}

func TestBus_SlowSubscriberDropsUpdates(t *testing.T) {
	bus := NewBus()

	ch := bus.Subscribe("slow")
	for i := 0; i < subBufferSize+5; i++ {
		bus.Publish(player.Status{ReconnectAttempt: i})
	}

	// The buffer holds the first subBufferSize updates; the rest were dropped
	assert.Len(t, ch, subBufferSize)
	got := <-ch
	assert.Equal(t, 0, got.ReconnectAttempt)
}
