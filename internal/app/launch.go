package app

import (
	"context"
	"time"

	"github.com/dkeye/WaterRocket/internal/app/flight"
	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dkeye/WaterRocket/internal/app"

// LaunchService is the only component that knows both the simulator and the hub.
// In-flight simulations are never cancelled; ctx only carries the trace.
type LaunchService struct {
	Hub      Broadcaster
	Roller   EventRoller
	Observer LaunchObserver
	Clock    func() time.Time
}

func NewLaunchService(hub Broadcaster, roller EventRoller, observer LaunchObserver) *LaunchService {
	return &LaunchService{Hub: hub, Roller: roller, Observer: observer, Clock: time.Now}
}

// Launch simulates, announces the result on launch_log and, when enabled,
// rolls live events and announces each on chat as SYSTEM.
func (s *LaunchService) Launch(ctx context.Context, p domain.LaunchParameters) domain.LaunchOutcome {
	_, span := otel.Tracer(tracerName).Start(ctx, "rocket.launch", trace.WithAttributes(
		attribute.String("rocket.player", p.Player),
		attribute.Float64("rocket.bottle_volume_l", p.BottleVolumeL),
		attribute.Float64("rocket.nozzle_diameter_cm", p.NozzleDiameterCM),
		attribute.Float64("rocket.water_volume_l", p.WaterVolumeL),
		attribute.Float64("rocket.air_pressure_psi", p.AirPressurePSI),
		attribute.Bool("rocket.events_enabled", p.EventsEnabled),
	))
	defer span.End()

	started := time.Now()
	res := flight.Simulate(p)
	took := time.Since(started)

	obs := s.observer()
	obs.LaunchCompleted(res, took)
	span.SetAttributes(
		attribute.Int("rocket.samples", len(res.Trajectory)),
		attribute.Float64("rocket.max_altitude_m", res.MaxAltitudeM),
		attribute.Float64("rocket.range_m", res.RangeM),
	)

	s.Hub.Broadcast(domain.NewLaunchLogMessage(domain.LaunchLog{
		Player:       p.Player,
		MaxAltitudeM: res.MaxAltitudeM,
		RangeM:       res.RangeM,
		Timestamp:    domain.FormatTimestamp(s.now()),
	}))

	summary := domain.LaunchSummary{
		MaxAltitudeM: res.MaxAltitudeM,
		RangeM:       res.RangeM,
		Events:       []string{},
	}
	if p.EventsEnabled && s.Roller != nil {
		for _, e := range s.Roller.Roll() {
			summary.Events = append(summary.Events, e.Text)
			s.Hub.Broadcast(domain.NewChatMessage(domain.SystemUser, p.Player+": "+e.Text))
			obs.LiveEventFired(e.Kind)
			span.AddEvent("live_event", trace.WithAttributes(attribute.String("rocket.event", string(e.Kind))))
		}
	}

	log.Info().
		Str("module", "app.launch").
		Str("player", p.Player).
		Float64("max_altitude_m", res.MaxAltitudeM).
		Float64("range_m", res.RangeM).
		Int("samples", len(res.Trajectory)).
		Int("events", len(summary.Events)).
		Dur("took", took).
		Msg("launch simulated")

	return domain.LaunchOutcome{Result: res, Summary: summary}
}

func (s *LaunchService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *LaunchService) observer() LaunchObserver {
	if s.Observer == nil {
		return nopObserver{}
	}
	return s.Observer
}
