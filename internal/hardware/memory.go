package hardware

import (
	"context"
	"sync"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// MemoryBoard is an in-memory Board used by the simulated driver and by tests.
// Doors start closed and the relay starts off.
type MemoryBoard struct {
	mu         sync.Mutex
	closed     [door.ChannelCount]bool
	readErr    [door.ChannelCount]error
	relayErr   error
	relay      bool
	relayLog   []bool
	closeCalls int
}

// NewMemoryBoard creates a board with both doors closed.
func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{closed: [door.ChannelCount]bool{true, true}}
}

// SetDoor sets the simulated door position.
func (b *MemoryBoard) SetDoor(id door.ChannelID, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed[id.Index()] = closed
}

// FailRead makes reads of the channel return err until cleared with nil.
func (b *MemoryBoard) FailRead(id door.ChannelID, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.readErr[id.Index()] = err
}

// FailRelay makes relay writes return err until cleared with nil.
func (b *MemoryBoard) FailRelay(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.relayErr = err
}

// ReadSensor returns the simulated door position.
func (b *MemoryBoard) ReadSensor(_ context.Context, id door.ChannelID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.readErr[id.Index()]; err != nil {
		return false, err
	}

	return b.closed[id.Index()], nil
}

// SetRelay records the relay write.
func (b *MemoryBoard) SetRelay(_ context.Context, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.relayErr != nil {
		return b.relayErr
	}

	b.relay = on
	b.relayLog = append(b.relayLog, on)

	return nil
}

// Relay returns the current relay state.
func (b *MemoryBoard) Relay() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.relay
}

// RelayWrites returns every successful relay write in order.
func (b *MemoryBoard) RelayWrites() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]bool(nil), b.relayLog...)
}

// Close counts close calls.
func (b *MemoryBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeCalls++

	return nil
}

// Closed reports whether Close was called.
func (b *MemoryBoard) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closeCalls > 0
}
