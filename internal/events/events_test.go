package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	bus.Subscribe(PriceUpdated, func(e *Event) { got = append(got, e) })

	bus.Publish(PriceUpdated, &PriceUpdatedData{CoinIDs: []string{"bitcoin"}, Count: 1})

	require.Len(t, got, 1)
	assert.Equal(t, PriceUpdated, got[0].Type)
	assert.False(t, got[0].Timestamp.IsZero())

	data, ok := got[0].Data.(*PriceUpdatedData)
	require.True(t, ok)
	assert.Equal(t, []string{"bitcoin"}, data.CoinIDs)
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var balanceEvents, lotEvents int
	bus.Subscribe(BalanceChanged, func(*Event) { balanceEvents++ })
	bus.Subscribe(LotAdded, func(*Event) { lotEvents++ })

	bus.Publish(BalanceChanged, nil)
	bus.Publish(BalanceChanged, nil)

	assert.Equal(t, 2, balanceEvents)
	assert.Equal(t, 0, lotEvents)
}

func TestPublishWithNoSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	assert.NotPanics(t, func() { bus.Publish(BackupCompleted, nil) })
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var kept, removed int
	bus.Subscribe(LotUpdated, func(*Event) { kept++ })
	unsubscribe := bus.Subscribe(LotUpdated, func(*Event) { removed++ })

	bus.Publish(LotUpdated, nil)
	unsubscribe()
	bus.Publish(LotUpdated, nil)

	assert.Equal(t, 2, kept)
	assert.Equal(t, 1, removed)

	// A second call is a no-op
	assert.NotPanics(t, unsubscribe)
}

func TestMultipleSubscribersSameType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var first, second bool
	bus.Subscribe(WatchlistChanged, func(*Event) { first = true })
	bus.Subscribe(WatchlistChanged, func(*Event) { second = true })

	bus.Publish(WatchlistChanged, &WatchlistChangedData{CoinID: "bitcoin", Removed: true})

	assert.True(t, first)
	assert.True(t, second)
}
