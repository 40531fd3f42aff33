package app

import (
	"time"

	"github.com/dkeye/WaterRocket/internal/app/flight"
	"github.com/dkeye/WaterRocket/internal/core"
	"github.com/dkeye/WaterRocket/internal/domain"
)

// Broadcaster is the slice of core.Hub the services need.
type Broadcaster interface {
	Broadcast(msg domain.BroadcastMessage) core.PublishResult
}

// EventRoller produces the cosmetic live events of a launch.
type EventRoller interface {
	Roll() []flight.LiveEvent
}

// LaunchObserver receives launch statistics.
type LaunchObserver interface {
	LaunchCompleted(res domain.LaunchResult, took time.Duration)
	LiveEventFired(kind flight.EventKind)
}

// ChatObserver receives the outcome of each inbound chat frame.
type ChatObserver interface {
	ChatFrame(result ChatResult)
}

type ChatResult string

const (
	ChatAccepted  ChatResult = "accepted"
	ChatLimited   ChatResult = "rate_limited"
	ChatMalformed ChatResult = "malformed"
)

type nopObserver struct{}

func (nopObserver) LaunchCompleted(domain.LaunchResult, time.Duration) {}
func (nopObserver) LiveEventFired(flight.EventKind)                     {}
func (nopObserver) ChatFrame(ChatResult)                                 {}
