package battery

import (
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Config holds the battery divider calibration and filter settings.
type Config struct {
	Alpha              float64       // EMA weight of a new sample, close to 0
	MinLevel           float64       // volts reported as 0%
	MaxLevel           float64       // volts reported as 100%
	DividerRatio       float64       // battery voltage divider ratio
	Correction         float64       // empirical correction of the battery reading
	ChargeDividerRatio float64       // charger input voltage divider ratio
	MaxChargeLevel     float64       // charger input volts reported as 100%
	SampleInterval     time.Duration // minimum time between filter updates
}

func DefaultConfig() Config {
	return Config{
		Alpha:              0.05,
		MinLevel:           3.3,
		MaxLevel:           4.2,
		DividerRatio:       2.0,
		Correction:         1.0,
		ChargeDividerRatio: 2.0,
		MaxChargeLevel:     5.0,
		SampleInterval:     500 * time.Millisecond,
	}
}

// ADC is a single analog input. periph.io analog.PinADC satisfies it.
type ADC interface {
	Read() (analog.Sample, error)
}

// DigitalIn is a single digital input. periph.io gpio.PinIn satisfies it.
type DigitalIn interface {
	Read() gpio.Level
}

// Status is a snapshot of the battery monitor. Voltage, Level and Raw move
// together: Raw is the ADC count of the sample that last fed the filter, so
// it only changes when the sample interval elapses. ChargeLevel and the
// status lines are read fresh for every snapshot.
type Status struct {
	Voltage     float64   `json:"voltage"`
	Level       int       `json:"level"`
	Raw         int32     `json:"raw"`
	ChargeLevel int       `json:"charge_level"`
	Charging    bool      `json:"charging"`
	Full        bool      `json:"full"`
	Timestamp   time.Time `json:"timestamp"`
}

// Filter is one step of an exponential moving average.
func Filter(alpha, sample, previous float64) float64 {
	return alpha*sample + (1-alpha)*previous
}

// LevelPercent maps voltage linearly from [lo,hi] to [0,100], clamped and
// truncated.
func LevelPercent(voltage, lo, hi float64) int {
	if hi <= lo {
		return 0
	}
	pct := 100 * (voltage - lo) / (hi - lo)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}

// Volts converts a periph.io potential to volts.
func Volts(v physic.ElectricPotential) float64 {
	return float64(v) / float64(physic.Volt)
}
