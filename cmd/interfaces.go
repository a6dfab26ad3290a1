package cmd

import (
	"context"
	"time"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

// LinkService defines the interface that cmd.run expects from the device link.
type LinkService interface {
	Connect(ctx context.Context) error
	// Done is closed when the current connection drops.
	Done() <-chan struct{}
	Send(msg model.Message) error
	Close() error
}

// Journal is the part of the event database cmd.run schedules and serves.
type Journal interface {
	Cleanup(ctx context.Context, retention time.Duration) error
	GetEvents(ctx context.Context, uid uint64, from, to *time.Time) (model.DeviceEvents, error)
}
