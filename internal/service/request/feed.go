package request

import (
	"context"
	"sync"
	"time"

	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/messaging"
	"github.com/raktaseva/blood-api/pkg/worker"
)

const defaultDebounce = 250 * time.Millisecond

// Feed keeps the service snapshot fresh by listening to the change-feed
// channel and refetching after each burst of notifications. One feed per
// service; Subscribe is a no-op while already live and Unsubscribe is
// idempotent.
type Feed struct {
	broker   messaging.Broker
	svc      *Service
	logger   *logger.Logger
	debounce time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFeed(broker messaging.Broker, svc *Service, log *logger.Logger) *Feed {
	return &Feed{
		broker:   broker,
		svc:      svc,
		logger:   log,
		debounce: defaultDebounce,
	}
}

// Subscribe opens the change-feed subscription and starts the refresh
// loop. Calling it while a subscription is live does nothing.
func (f *Feed) Subscribe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := f.broker.Subscribe(subCtx, worker.RequestFeedChannel)
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	go f.run(subCtx, ch, done)

	f.logger.Info("subscribed to request change feed", "channel", worker.RequestFeedChannel)
	return nil
}

// Unsubscribe tears down the subscription and waits for the loop to
// drain. Safe to call repeatedly or before Subscribe.
func (f *Feed) Unsubscribe() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	f.logger.Info("unsubscribed from request change feed")
}

// run coalesces notification bursts: a short debounce timer restarts on
// every message, and only its expiry triggers a refetch. Payload content
// is ignored; any change means "refetch".
func (f *Feed) run(ctx context.Context, ch <-chan []byte, done chan struct{}) {
	defer close(done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if timer == nil {
				timer = time.NewTimer(f.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(f.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			f.svc.Fetch(ctx, nil)
		}
	}
}
