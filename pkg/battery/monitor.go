package battery

import (
	"errors"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Monitor smooths the battery voltage and reports the charger status lines.
// It is not safe for concurrent use; a single polling loop drives it.
type Monitor struct {
	cfg        Config
	bat        ADC
	chg        ADC
	isCharging DigitalIn
	isFull     DigitalIn
	now        func() time.Time

	voltage  float64
	lastRaw  int32
	deadline time.Time
}

// New builds a Monitor and primes the filter with one immediate reading.
// chg, isCharging and isFull may be nil when the board does not wire them.
// now defaults to time.Now.
func New(cfg Config, bat, chg ADC, isCharging, isFull DigitalIn, now func() time.Time) (*Monitor, error) {
	if bat == nil {
		return nil, errors.New("battery: no battery ADC")
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("battery: alpha %v out of (0,1]", cfg.Alpha)
	}
	if cfg.MaxLevel <= cfg.MinLevel {
		return nil, fmt.Errorf("battery: max level %v must exceed min level %v", cfg.MaxLevel, cfg.MinLevel)
	}
	if now == nil {
		now = time.Now
	}
	m := &Monitor{cfg: cfg, bat: bat, chg: chg, isCharging: isCharging, isFull: isFull, now: now}
	v, err := m.readBattery()
	if err != nil {
		return nil, fmt.Errorf("battery: initial read: %w", err)
	}
	m.voltage = v
	m.deadline = m.now().Add(cfg.SampleInterval)
	return m, nil
}

func (m *Monitor) readBattery() (float64, error) {
	s, err := m.bat.Read()
	if err != nil {
		return 0, err
	}
	m.lastRaw = s.Raw
	return Volts(s.V) * m.cfg.DividerRatio * m.cfg.Correction, nil
}

// Loop feeds a new sample into the filter once the sample interval has
// elapsed. It returns true when the filter was updated.
func (m *Monitor) Loop() bool {
	now := m.now()
	if now.Before(m.deadline) {
		return false
	}
	m.deadline = now.Add(m.cfg.SampleInterval)
	v, err := m.readBattery()
	if err != nil {
		log.Printf("[battery] read error: %v", err)
		return false
	}
	m.voltage = Filter(m.cfg.Alpha, v, m.voltage)
	return true
}

// Voltage returns the smoothed battery voltage.
func (m *Monitor) Voltage() float64 { return m.voltage }

// Level returns the smoothed battery level in percent.
func (m *Monitor) Level() int {
	return LevelPercent(m.voltage, m.cfg.MinLevel, m.cfg.MaxLevel)
}

// ChargeLevel returns the charger input voltage in percent of MaxChargeLevel.
// It reads the charge ADC directly, without smoothing.
func (m *Monitor) ChargeLevel() int {
	if m.chg == nil || m.cfg.MaxChargeLevel <= 0 {
		return 0
	}
	s, err := m.chg.Read()
	if err != nil {
		log.Printf("[battery] charge level read error: %v", err)
		return 0
	}
	v := Volts(s.V) * m.cfg.ChargeDividerRatio
	return LevelPercent(v, 0, m.cfg.MaxChargeLevel)
}

// IsCharging reports the charger's active-low charging line.
func (m *Monitor) IsCharging() bool {
	return m.isCharging != nil && m.isCharging.Read() == gpio.Low
}

// IsFull reports the charger's active-low full-charge line.
func (m *Monitor) IsFull() bool {
	return m.isFull != nil && m.isFull.Read() == gpio.Low
}

func (m *Monitor) Status() Status {
	return Status{
		Voltage:     m.voltage,
		Level:       m.Level(),
		Raw:         m.lastRaw,
		ChargeLevel: m.ChargeLevel(),
		Charging:    m.IsCharging(),
		Full:        m.IsFull(),
		Timestamp:   m.now(),
	}
}
