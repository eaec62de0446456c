package kanban

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDispatchOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string

	bus.Subscribe("card_created", func(json.RawMessage) { got = append(got, "first") })
	bus.Subscribe("card_created", func(json.RawMessage) { got = append(got, "second") })
	bus.Subscribe("card_deleted", func(json.RawMessage) { got = append(got, "other") })

	bus.Publish("card_created", nil)

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	unsub := bus.Subscribe("ping", func(json.RawMessage) { calls++ })

	bus.Publish("ping", nil)
	unsub()
	unsub() // double unsubscribe is a no-op
	bus.Publish("ping", nil)

	assert.Equal(t, 1, calls)
}

func TestBusPanicIsolation(t *testing.T) {
	bus := NewBus(nil)
	survived := false

	bus.Subscribe("list_moved", func(json.RawMessage) { panic("boom") })
	bus.Subscribe("list_moved", func(json.RawMessage) { survived = true })

	assert.NotPanics(t, func() { bus.Publish("list_moved", nil) })
	assert.True(t, survived)
}

func TestBusPayloadPassthrough(t *testing.T) {
	bus := NewBus(nil)
	var got json.RawMessage
	bus.Subscribe("card_updated", func(data json.RawMessage) { got = data })

	bus.Publish("card_updated", json.RawMessage(`{"id":"c1"}`))

	assert.JSONEq(t, `{"id":"c1"}`, string(got))
}
