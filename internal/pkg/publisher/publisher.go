package publisher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

var (
	mu                  sync.RWMutex
	registerdPublishers = make(map[string]publisher)
)

type publisher interface {
	// Write publishes device events to the registered adapter
	Write(ctx context.Context, events model.DeviceEvents) error
}

func RegisterPublisher(name string, publisher publisher) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registerdPublishers[name]; ok {
		return errAlreadyRegistered
	}
	registerdPublishers[name] = publisher
	return nil
}

func UnregisterPublisher(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(registerdPublishers, name)
}

// PublishEvents hands events to every registered publisher. A failing publisher is
// logged and does not stop the others.
func PublishEvents(ctx context.Context, events model.DeviceEvents) error {
	if len(events) == 0 {
		return nil
	}
	mu.RLock()
	defer mu.RUnlock()
	for name, publisher := range registerdPublishers {
		if err := publisher.Write(ctx, events); err != nil {
			zap.L().Error("failed to publish events", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("published events", zap.Int("count", len(events)), zap.String("publisher", name))
	}
	return nil
}

// Drain batches events from the channel and publishes them until the channel closes
// or ctx is done.
func Drain(ctx context.Context, events <-chan model.DeviceEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			batch := model.DeviceEvents{event}
		more:
			for {
				select {
				case next, ok := <-events:
					if !ok {
						break more
					}
					batch = append(batch, next)
				default:
					break more
				}
			}
			if err := PublishEvents(ctx, batch); err != nil {
				return err
			}
		}
	}
}
