package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

// MockLinkService is a mock implementation of the LinkService interface.
type MockLinkService struct {
	ConnectFunc func(ctx context.Context) error
	DoneFunc    func() <-chan struct{}
	SendFunc    func(msg model.Message) error

	mu       sync.Mutex
	connects int
	closed   bool
}

func (m *MockLinkService) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connects++
	m.mu.Unlock()
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockLinkService) Done() <-chan struct{} {
	if m.DoneFunc != nil {
		return m.DoneFunc()
	}
	// never closes, so the link stays up until the test cancels.
	return make(chan struct{})
}

func (m *MockLinkService) Send(msg model.Message) error {
	if m.SendFunc != nil {
		return m.SendFunc(msg)
	}
	return nil
}

func (m *MockLinkService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockLinkService) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *MockLinkService) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockJournal is a mock implementation of the Journal interface.
type MockJournal struct {
	CleanupFunc   func(ctx context.Context, retention time.Duration) error
	GetEventsFunc func(ctx context.Context, uid uint64, from, to *time.Time) (model.DeviceEvents, error)
}

func (m *MockJournal) Cleanup(ctx context.Context, retention time.Duration) error {
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx, retention)
	}
	return nil
}

func (m *MockJournal) GetEvents(ctx context.Context, uid uint64, from, to *time.Time) (model.DeviceEvents, error) {
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(ctx, uid, from, to)
	}
	return nil, nil
}
