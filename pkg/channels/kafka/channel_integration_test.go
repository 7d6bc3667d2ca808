//go:build integration

package kafka_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/costura/pkg/channels/kafka"
	"github.com/dukex/costura/pkg/eventbus"
	"github.com/dukex/costura/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

// setupKafkaContainer starts a single broker and returns its address.
func setupKafkaContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	admin, err := sarama.NewClusterAdmin(brokers, config)
	require.NoError(t, err)

	defer func() { _ = admin.Close() }()

	require.NoError(t, admin.CreateTopic(events.Topic, &sarama.TopicDetail{
		NumPartitions:     1,
		ReplicationFactor: 1,
	}, false))

	return brokers[0]
}

func TestKafkaChannel_DeliversFlowChanges(t *testing.T) {
	broker := setupKafkaContainer(t)

	pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, kafka.ParseBrokers(broker), "costura-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	var received atomic.Value

	require.NoError(t, bus.Handle(events.FlowChangedEvent, func(_ context.Context, event any) error {
		received.Store(event.(*events.FlowChanged).FlowID)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "flow-1", events.NewFlowChanged("style-1", "flow-1", events.FlowActivated)))

	require.Eventually(t, func() bool {
		id, _ := received.Load().(string)

		return id == "flow-1"
	}, 60*time.Second, 200*time.Millisecond)
}
