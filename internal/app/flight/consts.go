package flight

const (
	WaterDensity   = 1000.0   // kg/m³
	AirDensity     = 1.225    // kg/m³
	Gravity        = 9.81     // m/s²
	DragCoeff      = 0.5      // bottle with nose cone
	AtmPressure    = 101325.0 // Pa
	PSIToPascal    = 6894.76
	Gamma          = 1.4   // polytropic exponent for trapped air
	Step           = 0.005 // s
	MaxDuration    = 60.0  // s, safety cutoff
	BaseDryMass    = 0.15  // kg
	SoapMassFactor = 0.1   // kg per unit of soap

	propellantEps = 1e-8
	ejectCapRatio = 0.25
	ejectFloor    = 1e-6
	dragSpeedEps  = 1e-9
	minAirVolume  = 1e-9
)
