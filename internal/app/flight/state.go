package flight

import (
	"math"

	"github.com/dkeye/WaterRocket/internal/domain"
)

// Phase is the propulsion regime of a single integration step.
type Phase int

const (
	PhaseWater Phase = iota
	PhaseAir
	PhaseBallistic
)

func (p Phase) String() string {
	switch p {
	case PhaseWater:
		return "water"
	case PhaseAir:
		return "air"
	default:
		return "ballistic"
	}
}

// bottle holds the geometry derived once from the launch parameters.
type bottle struct {
	volume     float64 // m³
	nozzleArea float64 // m²
	crossArea  float64 // m²
	airVolume0 float64 // m³, reference air pocket, never zero
	p0         float64 // Pa, absolute
	dryMass    float64 // kg
	wind       float64 // m/s
}

// State is owned by exactly one run and discarded when it ends.
type State struct {
	T         float64
	X, Y      float64
	VX, VY    float64
	WaterMass float64
	AirMass   float64
	Pressure  float64 // Pa, absolute
	Airborne  bool
}

func circleArea(diameterCM float64) float64 {
	r := (diameterCM / 100.0) / 2.0
	return math.Pi * r * r
}

func newBottle(p domain.LaunchParameters) (bottle, State) {
	volume := p.BottleVolumeL / 1000.0
	water := math.Max(math.Min(p.WaterVolumeL/1000.0, volume), 0.0)
	air := volume - water

	b := bottle{
		volume:     volume,
		nozzleArea: circleArea(p.NozzleDiameterCM),
		crossArea:  circleArea(p.BottleDiameterCM),
		airVolume0: math.Max(air, minAirVolume),
		p0:         p.AirPressurePSI*PSIToPascal + AtmPressure,
		dryMass:    BaseDryMass + SoapMassFactor*p.SoapAmount,
		wind:       p.WindSpeedMS,
	}
	s := State{
		WaterMass: WaterDensity * water,
		AirMass:   math.Max(air, 0.0) * AirDensity,
		Pressure:  b.p0,
	}
	return b, s
}

func (b bottle) phase(s *State) Phase {
	if b.nozzleArea <= 0 {
		return PhaseBallistic
	}
	if s.WaterMass > propellantEps {
		return PhaseWater
	}
	if s.AirMass > propellantEps {
		return PhaseAir
	}
	return PhaseBallistic
}

// capped limits a step's ejected mass to a quarter of what is left.
func capped(rate, remaining float64) float64 {
	return math.Min(rate*Step, math.Max(remaining*ejectCapRatio, ejectFloor))
}

// waterThrust expands the air pocket adiabatically as water leaves the nozzle.
func (b bottle) waterThrust(s *State) float64 {
	airNow := b.volume - s.WaterMass/WaterDensity
	s.Pressure = AtmPressure + (b.p0-AtmPressure)*math.Pow(b.airVolume0/math.Max(airNow, minAirVolume), Gamma)
	dp := math.Max(s.Pressure-AtmPressure, 0)
	if dp <= 0 {
		s.WaterMass = 0
		return 0
	}
	thrust := b.nozzleArea * math.Sqrt(2.0*dp*WaterDensity)
	mdot := WaterDensity * b.nozzleArea * math.Sqrt(2.0*dp/WaterDensity)
	s.WaterMass -= capped(mdot, s.WaterMass)
	return thrust
}

// airThrust vents the remaining gas; pressure is referenced to the full bottle volume.
func (b bottle) airThrust(s *State) float64 {
	s.Pressure = b.p0 * math.Pow(b.volume/b.airVolume0, -Gamma)
	dp := math.Max(s.Pressure-AtmPressure, 0)
	if dp <= 0 {
		s.AirMass = 0
		return 0
	}
	thrust := b.nozzleArea * dp
	mdot := b.nozzleArea * AirDensity * math.Sqrt(2.0*dp/AirDensity)
	s.AirMass -= capped(mdot, s.AirMass)
	return thrust
}

// propel runs one step of the active phase and returns thrust and the mass to accelerate.
func (b bottle) propel(s *State) (Phase, float64, float64) {
	switch ph := b.phase(s); ph {
	case PhaseWater:
		thrust := b.waterThrust(s)
		return ph, thrust, b.dryMass + s.WaterMass + s.AirMass
	case PhaseAir:
		thrust := b.airThrust(s)
		return ph, thrust, b.dryMass + s.AirMass
	default:
		s.Pressure = AtmPressure
		return ph, 0, b.dryMass
	}
}

// drag opposes the velocity relative to the wind.
func (b bottle) drag(s *State) (float64, float64) {
	relX := s.VX - b.wind
	relY := s.VY
	rel := math.Hypot(relX, relY)
	f := 0.5 * AirDensity * rel * rel * DragCoeff * b.crossArea
	return -f * (relX / (rel + dragSpeedEps)), -f * (relY / (rel + dragSpeedEps))
}
