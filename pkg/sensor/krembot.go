package sensor

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ericogr/krembot-to-mqtt/pkg/adc"
	"github.com/ericogr/krembot-to-mqtt/pkg/battery"
	"github.com/ericogr/krembot-to-mqtt/pkg/config"
	"github.com/ericogr/krembot-to-mqtt/pkg/i2cmux"
	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// KrembotSensor reads the battery monitor and the RGBA sensor ring of a
// Krembot base sharing one I2C bus.
type KrembotSensor struct {
	bus     i2c.BusCloser
	battery *battery.Monitor
	colors  []*rgba.Sensor
}

func NewKrembotSensor(cfg config.Config) (Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	k, err := newKrembot(cfg, bus, gpioreg.ByName)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	k.bus = bus
	return k, nil
}

// newKrembot wires the drivers on bus. Devices that fail to initialise are
// logged and left out; it fails only when nothing came up.
func newKrembot(cfg config.Config, bus i2c.Bus, pinByName func(string) gpio.PinIO) (*KrembotSensor, error) {
	k := &KrembotSensor{}
	if cfg.Battery.Enabled {
		m, err := newBatteryMonitor(cfg.Battery, bus, pinByName)
		if err != nil {
			log.Printf("[battery] disabled: %v", err)
		} else {
			k.battery = m
		}
	}
	settings := buildChannelSettings(cfg)
	if len(settings) > 0 {
		mux := i2cmux.New(bus, uint16(cfg.I2C.MuxAddress))
		for _, cs := range settings {
			opts := cs.opts
			s, err := rgba.New(bus, mux, cs.channel, &opts)
			if err != nil {
				continue
			}
			k.colors = append(k.colors, s)
		}
		log.Printf("[rgba] %d of %d sensors ready", len(k.colors), len(settings))
	}
	if k.battery == nil && len(k.colors) == 0 {
		return nil, errors.New("no battery monitor or rgba sensor available")
	}
	return k, nil
}

func newBatteryMonitor(b config.BatteryConfig, bus i2c.Bus, pinByName func(string) gpio.PinIO) (*battery.Monitor, error) {
	conv := adc.NewADS1115(bus, uint16(b.ADCAddress), b.SampleRate)
	level, err := conv.Channel(b.LevelChannel)
	if err != nil {
		return nil, fmt.Errorf("level channel: %w", err)
	}
	var charge battery.ADC
	if b.ChargeChannel >= 0 {
		p, err := conv.Channel(b.ChargeChannel)
		if err != nil {
			return nil, fmt.Errorf("charge channel: %w", err)
		}
		charge = p
	}
	charging, err := openInput(b.ChargingPin, pinByName)
	if err != nil {
		return nil, err
	}
	full, err := openInput(b.FullPin, pinByName)
	if err != nil {
		return nil, err
	}
	return battery.New(batteryConfig(b), level, charge, charging, full, nil)
}

// openInput looks up an active-low status line and enables its pull-up.
// An empty name returns a nil input.
func openInput(name string, pinByName func(string) gpio.PinIO) (battery.DigitalIn, error) {
	if name == "" {
		return nil, nil
	}
	p := pinByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("gpio %q: %w", name, err)
	}
	return p, nil
}

// Read updates the battery filter when its interval elapsed and reads every
// RGBA sensor once, in mux channel order.
func (k *KrembotSensor) Read() (Reading, error) {
	r := Reading{Timestamp: time.Now()}
	if k.battery != nil {
		k.battery.Loop()
		st := k.battery.Status()
		r.Battery = &st
	}
	for _, s := range k.colors {
		r.Colors = append(r.Colors, s.Read())
	}
	return r, nil
}

func (k *KrembotSensor) Close() error {
	if k.bus != nil {
		return k.bus.Close()
	}
	return nil
}
