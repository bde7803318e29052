package sensor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/krembot-to-mqtt/pkg/battery"
	"github.com/ericogr/krembot-to-mqtt/pkg/color"
	"github.com/ericogr/krembot-to-mqtt/pkg/config"
	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// FakeSensor simulates a slowly discharging battery and random color
// readings, run through the same filter and color code as the real drivers.
type FakeSensor struct {
	battery  *battery.Monitor
	channels []channelSetting
	rnd      *rand.Rand
	mu       sync.Mutex
}

func NewFakeSensor(cfg config.Config) (Sensor, error) {
	f := &FakeSensor{
		channels: buildChannelSettings(cfg),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.Battery.Enabled {
		bc := batteryConfig(cfg.Battery)
		// the simulated ADC sees the divided voltage
		bat := &fakeDivider{rnd: f.rnd, volts: bc.MaxLevel, floor: bc.MinLevel, ratio: bc.DividerRatio * bc.Correction}
		m, err := battery.New(bc, bat, nil, nil, nil, nil)
		if err != nil {
			return nil, err
		}
		f.battery = m
	}
	return f, nil
}

func (f *FakeSensor) Read() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	r := Reading{Timestamp: now}
	if f.battery != nil {
		f.battery.Loop()
		st := f.battery.Status()
		r.Battery = &st
	}
	for _, c := range f.channels {
		res := rgba.Result{
			Ambient: uint16(f.rnd.Intn(4000)),
			Red:     uint16(f.rnd.Intn(1000)),
			Green:   uint16(f.rnd.Intn(1000)),
			Blue:    uint16(f.rnd.Intn(1000)),
		}
		p := uint8(f.rnd.Intn(256))
		res.Proximity = color.ClampProximity(p)
		res.Distance = color.ProximityToDistance(p)
		r.Colors = append(r.Colors, rgba.Derive(c.opts.Name, c.channel, res, now))
	}
	return r, nil
}

func (f *FakeSensor) Close() error { return nil }

// fakeDivider is a battery voltage divider that drains by a few millivolts
// per read with some noise, and recharges once it reaches the floor.
type fakeDivider struct {
	rnd   *rand.Rand
	volts float64
	floor float64
	top   float64
	ratio float64
}

func (d *fakeDivider) Read() (analog.Sample, error) {
	if d.top == 0 {
		d.top = d.volts
	}
	d.volts -= 0.002
	if d.volts < d.floor {
		d.volts = d.top
	}
	v := d.volts + (d.rnd.Float64()-0.5)*0.05
	divided := v / d.ratio
	return analog.Sample{
		V:   physic.ElectricPotential(divided * float64(physic.Volt)),
		Raw: int32(divided / 4.096 * 32768),
	}, nil
}
