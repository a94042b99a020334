package request

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/pkg/logger"
)

type fakeBroker struct {
	ch         chan []byte
	subscribes int32
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{ch: make(chan []byte, 10)}
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.ch <- []byte("{}")
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	atomic.AddInt32(&b.subscribes, 1)
	return b.ch, nil
}

func (b *fakeBroker) Close() error { return nil }

func newFeedFixture(t *testing.T) (*Feed, *fakeBroker, *int32) {
	t.Helper()

	var fetches int32
	svc, _, _ := newTestService(&stubRepo{
		listFn: func(ctx context.Context, _ *model.RequestFilters) ([]*model.EmergencyRequest, error) {
			atomic.AddInt32(&fetches, 1)
			return []*model.EmergencyRequest{sampleRow(model.UrgencyUrgent)}, nil
		},
	})

	broker := newFakeBroker()
	feed := NewFeed(broker, svc, logger.New(nil))
	feed.debounce = 10 * time.Millisecond
	return feed, broker, &fetches
}

func TestFeedRefetchesOnNotification(t *testing.T) {
	feed, broker, fetches := newFeedFixture(t)

	require.NoError(t, feed.Subscribe(context.Background()))
	defer feed.Unsubscribe()

	require.NoError(t, broker.Publish(context.Background(), "requests.changes", nil))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(fetches) >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestFeedDebouncesBursts(t *testing.T) {
	feed, broker, fetches := newFeedFixture(t)

	require.NoError(t, feed.Subscribe(context.Background()))
	defer feed.Unsubscribe()

	for i := 0; i < 5; i++ {
		require.NoError(t, broker.Publish(context.Background(), "requests.changes", nil))
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(fetches) >= 1
	}, time.Second, 5*time.Millisecond)

	// The burst collapses into a single refetch.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(fetches))
}

func TestFeedSubscribeIsIdempotent(t *testing.T) {
	feed, broker, _ := newFeedFixture(t)

	require.NoError(t, feed.Subscribe(context.Background()))
	require.NoError(t, feed.Subscribe(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&broker.subscribes))

	feed.Unsubscribe()
}

func TestFeedUnsubscribeIsIdempotent(t *testing.T) {
	feed, _, _ := newFeedFixture(t)

	// Unsubscribing before subscribing is a no-op.
	feed.Unsubscribe()

	require.NoError(t, feed.Subscribe(context.Background()))
	feed.Unsubscribe()
	feed.Unsubscribe()

	// A fresh subscription still works after teardown.
	require.NoError(t, feed.Subscribe(context.Background()))
	feed.Unsubscribe()
}
