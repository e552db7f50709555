package events

import (
	"testing"
	"time"

	"biteback/config"
	"biteback/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_LocalDelivery(t *testing.T) {
	bus := New(nil, config.Config{})
	defer bus.Close()

	received := make(chan Event, 1)
	require.NoError(t, bus.Subscribe(MISSIONS_CHANNEL, func(event Event) error {
		received <- event
		return nil
	}))

	require.NoError(t, bus.Publish(MISSIONS_CHANNEL, Event{Type: MISSION_COMPLETED}))

	select {
	case event := <-received:
		assert.Equal(t, MISSION_COMPLETED, event.Type)
		assert.Equal(t, MISSIONS_CHANNEL, event.Channel)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestEventBus_OtherChannelNotNotified(t *testing.T) {
	bus := New(nil, config.Config{})
	defer bus.Close()

	received := make(chan Event, 1)
	require.NoError(t, bus.Subscribe(BROADCAST_CHANNEL, func(event Event) error {
		received <- event
		return nil
	}))

	require.NoError(t, bus.Publish(MISSIONS_CHANNEL, Event{Type: VOUCHER_REDEEMED}))

	select {
	case <-received:
		t.Fatal("unexpected delivery")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewCompletionEvent(t *testing.T) {
	voucher := "VOUCHER"
	completion := &models.MissionCompletion{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		MissionID:    uuid.New(),
		RestaurantID: uuid.New(),
		MissionTitle: "Taco Tuesday",
		VoucherID:    &voucher,
	}

	event := NewCompletionEvent(MISSION_COMPLETED, completion)

	assert.Equal(t, MISSIONS_CHANNEL, event.Channel)
	assert.Equal(t, completion.CustomerID, *event.UserID)
	assert.Equal(t, completion.RestaurantID, *event.RestaurantID)
	assert.Equal(t, completion.MissionID, *event.MissionID)
	assert.Equal(t, "VOUCHER", event.Data["voucherId"])
	assert.Equal(t, "Taco Tuesday", event.Data["missionTitle"])
}
