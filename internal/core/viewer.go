package core

import "github.com/dkeye/WaterRocket/internal/domain"

// Frame is a serialized outbound message, encoded once per broadcast.
type Frame []byte

// ViewerConnection abstracts a viewer's transport.
// Owned by the adapter; TrySend must never block and Close must be idempotent.
type ViewerConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats of one broadcast.
type PublishResult struct {
	Delivered int
	Dropped   []domain.ViewerID
}

// HubObserver receives hub statistics. All methods are called without hub locks held.
type HubObserver interface {
	ViewersChanged(count int)
	Published(channel domain.Channel, res PublishResult)
}

type nopObserver struct{}

func (nopObserver) ViewersChanged(int)                       {}
func (nopObserver) Published(domain.Channel, PublishResult) {}

type viewerEntry struct {
	info domain.ViewerInfo
	conn ViewerConnection
}
