// Package flight integrates a water rocket flight and rolls cosmetic live events.
// Simulate is pure: it shares nothing between calls and may run on any number of goroutines.
package flight

import (
	"math"

	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/samber/lo"
)

// MaxSamples bounds the trajectory length of any run.
const MaxSamples = int(MaxDuration/Step) + 1

// Simulate integrates the flight with a fixed step until the rocket lands or the cutoff is hit.
// Water volume outside [0, bottle volume] is clamped; a zero nozzle simply gives no thrust.
func Simulate(p domain.LaunchParameters) domain.LaunchResult {
	samples, _ := run(p, nil)
	return newResult(samples)
}

// run is the integration loop. observe, when set, sees the state after every step.
func run(p domain.LaunchParameters, observe func(Phase, State)) ([]domain.TrajectorySample, State) {
	b, s := newBottle(p)
	samples := make([]domain.TrajectorySample, 0, 1024)

	for s.T < MaxDuration {
		phase, thrust, mass := b.propel(&s)
		dragX, dragY := b.drag(&s)

		ax := dragX / mass
		ay := thrust/mass + dragY/mass - Gravity

		s.VX += ax * Step
		s.VY += ay * Step
		s.X += s.VX * Step
		s.Y += s.VY * Step

		// The unclamped height decides takeoff; only the reported height is floored.
		if s.Y > 0 {
			s.Airborne = true
		}
		samples = append(samples, domain.TrajectorySample{
			T: roundTo(s.T, 3),
			X: s.X,
			Y: math.Max(s.Y, 0),
		})
		if observe != nil {
			observe(phase, s)
		}

		s.T += Step
		if s.Airborne && s.Y <= 0 && s.VY <= 0 {
			break
		}
	}
	return samples, s
}

func newResult(samples []domain.TrajectorySample) domain.LaunchResult {
	res := domain.LaunchResult{Trajectory: samples}
	if len(samples) == 0 {
		return res
	}
	highest := lo.MaxBy(samples, func(a, b domain.TrajectorySample) bool { return a.Y > b.Y })
	res.MaxAltitudeM = roundTo(highest.Y, 2)
	res.RangeM = roundTo(samples[len(samples)-1].X, 2)
	return res
}

// roundTo rounds halves to even.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}
