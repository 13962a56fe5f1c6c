package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishJSON(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe("shift.clock_in", func(ev Event) error {
		got = append(got, ev)
		return nil
	})

	err := bus.PublishJSON("shift.clock_in", map[string]string{"staff_id": "s1"})
	assert.NoError(t, err)

	// Other event types do not reach the handler.
	err = bus.PublishJSON("shift.clock_out", map[string]string{"staff_id": "s1"})
	assert.NoError(t, err)

	assert.Len(t, got, 1)
	assert.JSONEq(t, `{"staff_id":"s1"}`, string(got[0].Payload))
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestBus_PublishJSON_BadPayload(t *testing.T) {
	bus := NewBus()
	err := bus.PublishJSON("shift.clock_in", make(chan int))
	assert.Error(t, err)
}
