package flight

import (
	"math/rand"
	"sync"
)

// EventKind identifies a live event type.
type EventKind string

const (
	EventWindGust   EventKind = "wind_gust"
	EventLeak       EventKind = "leak"
	EventTurboBoost EventKind = "turbo_boost"
	EventStormMode  EventKind = "storm_mode"
)

// LiveEvent is narrative flavor attached to a launch. It never touches the physics.
type LiveEvent struct {
	Kind        EventKind `json:"kind"`
	Text        string    `json:"text"`
	Probability float64   `json:"-"`
}

// DefaultEvents is the fixed event table, rolled in this order.
var DefaultEvents = []LiveEvent{
	{Kind: EventWindGust, Text: "🌬 Wind gust: sudden crosswind!", Probability: 0.20},
	{Kind: EventLeak, Text: "💦 Leak: pressure drops faster!", Probability: 0.15},
	{Kind: EventTurboBoost, Text: "🔥 Turbo Boost: extra thrust!", Probability: 0.08},
	{Kind: EventStormMode, Text: "🌩 Storm mode: turbulence active!", Probability: 0.10},
}

// EventRoller runs one independent Bernoulli trial per event type.
// It is safe for concurrent use.
type EventRoller struct {
	mu     sync.Mutex
	rng    func() float64
	events []LiveEvent
}

// NewEventRoller uses the process-wide random source when rng is nil.
func NewEventRoller(rng func() float64) *EventRoller {
	if rng == nil {
		rng = rand.Float64
	}
	return &EventRoller{rng: rng, events: DefaultEvents}
}

// NewSeededEventRoller gives a reproducible sequence of rolls.
func NewSeededEventRoller(seed int64) *EventRoller {
	return NewEventRoller(rand.New(rand.NewSource(seed)).Float64)
}

// Roll returns the events that fired; several, one or none may co-occur.
func (r *EventRoller) Roll() []LiveEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fired []LiveEvent
	for _, e := range r.events {
		if r.rng() < e.Probability {
			fired = append(fired, e)
		}
	}
	return fired
}
