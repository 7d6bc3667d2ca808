package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/costura/pkg/channels/gochannel"
	"github.com/dukex/costura/pkg/eventbus"
	"github.com/dukex/costura/pkg/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		require.NoError(t, bus.Close())
	})

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	bus := newBus(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	received := make(chan *events.FlowChanged, 1)

	err := bus.Handle(events.FlowChangedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.FlowChanged)

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "flow-1", events.NewFlowChanged("style-1", "flow-1", events.FlowEdgeAdded))
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "flow-1", event.FlowID)
		assert.Equal(t, "style-1", event.StyleID)
		assert.Equal(t, events.FlowEdgeAdded, event.Change)
	case <-time.After(5 * time.Second):
		t.Fatal("flow.changed event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	bus := newBus(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	received := make(chan *events.FlowChanged, 2)

	require.NoError(t, bus.Handle(events.FlowChangedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.FlowChanged)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "variant-1", events.NewCalculationCreated("style-1", "variant-1", "flow-1", "calc-1", 1,
		decimal.NewFromInt(10), decimal.NewFromInt(5)))
	require.NoError(t, err)

	err = bus.Publish(ctx, "flow-2", events.NewFlowChanged("style-1", "flow-2", events.FlowSaved))
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "flow-2", event.FlowID)
	case <-time.After(5 * time.Second):
		t.Fatal("flow.changed event was not delivered")
	}

	assert.NotEmpty(t, bus.GenerateID())
}
