// Package risk maps current weather readings to a three-level sweat risk
// category. The category gates whether a climate alert is sent at all, so the
// constants here are pinned and must not be retuned casually.
package risk

// Level is the classified sweat risk for a set of readings.
type Level string

const (
	Normal   Level = "normal"
	Moderate Level = "moderate"
	Extreme  Level = "extreme"
)

// Rothfusz regression coefficients for the NOAA heat index, Fahrenheit domain.
// Relative humidity enters the regression as a fraction.
const (
	hiC1 = -42.379
	hiC2 = 2.04901523
	hiC3 = 10.14333127
	hiC4 = -0.22475541
	hiC5 = -0.00683783
	hiC6 = -0.05481717
	hiC7 = 0.00122874
	hiC8 = 0.00085282
	hiC9 = -0.00000199
)

// Category thresholds, Celsius / percent.
const (
	extremeTempC      = 35.0
	extremeHumidTempC = 32.0
	moderateTempC     = 28.0
	humidityGate      = 70.0
	extremeUVIndex    = 10.0
	heatIndexFloorF   = 80.0 // below this the regression does not apply
)

// HeatIndexC returns the apparent temperature in Celsius. Below the 80 °F
// regression floor the heat index equals the input temperature.
func HeatIndexC(tempC, humidityPct float64) float64 {
	tf := tempC*9/5 + 32
	if tf < heatIndexFloorF {
		return tempC
	}
	rh := humidityPct / 100
	hi := hiC1 +
		hiC2*tf +
		hiC3*rh +
		hiC4*tf*rh +
		hiC5*tf*tf +
		hiC6*rh*rh +
		hiC7*tf*tf*rh +
		hiC8*tf*rh*rh +
		hiC9*tf*tf*rh*rh
	return (hi - 32) * 5 / 9
}

// Classify maps temperature (°C), relative humidity (%) and UV index to a
// risk level. The effective temperature is the warmer of the measured
// temperature and the heat index.
func Classify(tempC, humidityPct, uvIndex float64) Level {
	eff := tempC
	if hi := HeatIndexC(tempC, humidityPct); hi > eff {
		eff = hi
	}

	switch {
	case eff >= extremeTempC,
		eff >= extremeHumidTempC && humidityPct >= humidityGate,
		uvIndex > extremeUVIndex:
		return Extreme
	case eff >= moderateTempC && humidityPct >= humidityGate:
		return Moderate
	}
	return Normal
}
