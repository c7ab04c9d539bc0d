package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golyo/golyo-calendar/internal/model"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()

	first, cancelFirst := bus.Subscribe(4)
	second, cancelSecond := bus.Subscribe(4)
	defer cancelSecond()

	event := &model.Event{ID: "e1", GroupID: "g1"}
	bus.Publish(EventChange{Event: event, Type: Added})

	got := <-first
	assert.Equal(t, Added, got.Type)
	assert.Equal(t, "e1", got.Event.ID)

	got = <-second
	assert.Equal(t, "e1", got.Event.ID)

	// unsubscribed listeners stop receiving and their channel closes
	cancelFirst()
	bus.Publish(EventChange{Event: event, Type: Removed})

	_, open := <-first
	assert.False(t, open)

	got = <-second
	assert.Equal(t, Removed, got.Type)
}

func TestBusDropsWhenSubscriberLags(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	event := &model.Event{ID: "e1"}
	bus.Publish(EventChange{Event: event, Type: Added})
	bus.Publish(EventChange{Event: event, Type: Changed}) // buffer full, dropped

	got := <-ch
	require.Equal(t, Added, got.Type)

	select {
	case extra := <-ch:
		t.Fatalf("expected dropped signal, got %v", extra.Type)
	default:
	}
}
