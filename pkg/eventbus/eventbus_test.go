package eventbus_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

type orderCreated struct {
	ID int
}

func newTestBus() eventbus.EventBus {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return eventbus.NewEventPublisher(logger)
}

func TestEventBus_PublishToMatchingSubscriber(t *testing.T) {
	bus := newTestBus()

	var received *orderCreated
	bus.Subscribe(func(e *orderCreated) {
		received = e
	})

	bus.Publish(&orderCreated{ID: 42})

	require.NotNil(t, received)
	require.Equal(t, 42, received.ID)
}

func TestEventBus_SignatureMismatchIgnored(t *testing.T) {
	bus := newTestBus()

	called := false
	bus.Subscribe(func(s string) {
		called = true
	})

	bus.Publish(&orderCreated{ID: 1})

	require.False(t, called)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	calls := 0
	handler := func(e *orderCreated) { calls++ }
	bus.Subscribe(handler)
	require.Equal(t, 1, bus.SubscribersCount())

	bus.Publish(&orderCreated{})
	bus.Unsubscribe(handler)
	bus.Publish(&orderCreated{})

	require.Equal(t, 1, calls)
	require.Equal(t, 0, bus.SubscribersCount())
}

func TestEventBus_PanickingHandlerDoesNotPropagate(t *testing.T) {
	bus := newTestBus()

	bus.Subscribe(func(e *orderCreated) {
		panic("boom")
	})

	require.NotPanics(t, func() {
		bus.Publish(&orderCreated{})
	})
}
