package mqtt

import (
	"sync"

	"github.com/cheew/terratherm/internal/models"
)

// FakePublisher records published snapshots and events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Snapshots contains all status snapshots that were published.
	Snapshots []models.StatusSnapshot

	// Events contains all log entries that were published.
	Events []models.Event

	// PublishError, if set, is returned by both publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishStatus(snapshot models.StatusSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Snapshots = append(f.Snapshots, snapshot)
	return nil
}

func (f *FakePublisher) PublishEvent(e models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Events = append(f.Events, e)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SnapshotCount returns how many snapshots were published.
func (f *FakePublisher) SnapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Snapshots)
}
