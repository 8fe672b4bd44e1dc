package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishToSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch1 := bus.Subscribe("vid-1")
	ch2 := bus.Subscribe("vid-1")
	other := bus.Subscribe("vid-2")

	bus.Publish("vid-1", Event{Type: "job", VideoID: "vid-1", Progress: 50})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "vid-1", ev.VideoID)
			assert.Equal(t, float64(50), ev.Progress)
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
	select {
	case <-other:
		t.Fatal("event leaked to another video's subscriber")
	default:
	}
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("vid-1")
	bus.Unsubscribe("vid-1", ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after the last unsubscribe is a no-op.
	bus.Publish("vid-1", Event{Type: "job", VideoID: "vid-1"})
}

func TestEventBus_SlowSubscriberDropsEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("vid-1")

	// Fill the buffer and keep publishing; the bus must not block.
	for i := 0; i < 100; i++ {
		bus.Publish("vid-1", Event{Type: "job", VideoID: "vid-1", Progress: float64(i)})
	}

	require.Equal(t, 16, len(ch), "buffered events kept, the rest dropped")
}

func TestCancelRegistry(t *testing.T) {
	reg := NewCancelRegistry()
	assert.False(t, reg.Cancelled("job-1"))

	reg.Request("job-1")
	assert.True(t, reg.Cancelled("job-1"))
	assert.False(t, reg.Cancelled("job-2"))

	reg.Clear("job-1")
	assert.False(t, reg.Cancelled("job-1"))

	// Clearing an unknown id is harmless.
	reg.Clear("job-9")
}
