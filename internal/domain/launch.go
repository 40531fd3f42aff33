package domain

// LaunchParameters is a single launch request after transport validation.
// Units follow the launch pad UI: liters, centimeters, psi, m/s and °C.
type LaunchParameters struct {
	BottleVolumeL    float64
	BottleDiameterCM float64
	NozzleDiameterCM float64
	WaterVolumeL     float64
	AirPressurePSI   float64
	SoapAmount       float64
	WindSpeedMS      float64
	TemperatureC     float64
	Player           string
	EventsEnabled    bool
}

// TrajectorySample is one integration step of a flight.
type TrajectorySample struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LaunchResult is built once from the final sample sequence and never changed afterwards.
type LaunchResult struct {
	Trajectory   []TrajectorySample
	MaxAltitudeM float64
	RangeM       float64
}

// Samples returns a copy so callers cannot mutate the result.
func (r LaunchResult) Samples() []TrajectorySample {
	out := make([]TrajectorySample, len(r.Trajectory))
	copy(out, r.Trajectory)
	return out
}

// LaunchSummary is what the launch caller gets back next to the trajectory.
type LaunchSummary struct {
	MaxAltitudeM float64  `json:"max_altitude_m" msgpack:"max_altitude_m"`
	RangeM       float64  `json:"range_m" msgpack:"range_m"`
	Events       []string `json:"events" msgpack:"events"`
}

// LaunchOutcome pairs the flight with its summary.
type LaunchOutcome struct {
	Result  LaunchResult
	Summary LaunchSummary
}
