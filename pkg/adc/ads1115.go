package adc

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	DefaultAddress    = 0x48
	DefaultSampleRate = 128

	pointerConv   = 0x00
	pointerConfig = 0x01

	// full scale of PGA setting 001 (±4.096V)
	fullScale = 4096 * physic.MilliVolt
)

// ADS1115 is a TI ADS1115 converter read in single-shot mode.
type ADS1115 struct {
	dev        *i2c.Dev
	sampleRate int
	sleep      func(time.Duration)
}

func NewADS1115(bus i2c.Bus, addr uint16, sampleRate int) *ADS1115 {
	if addr == 0 {
		addr = DefaultAddress
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &ADS1115{dev: &i2c.Dev{Addr: addr, Bus: bus}, sampleRate: sampleRate, sleep: time.Sleep}
}

// Channel returns single-ended input ch (0-3) as an analog input.
func (a *ADS1115) Channel(ch int) (*Pin, error) {
	if _, _, err := configForChannel(ch, a.sampleRate); err != nil {
		return nil, err
	}
	return &Pin{adc: a, channel: ch}, nil
}

// Pin is one input of an ADS1115.
type Pin struct {
	adc     *ADS1115
	channel int
}

func (p *Pin) String() string { return fmt.Sprintf("ADS1115/A%d", p.channel) }

// Read starts a conversion, waits for it and returns the result.
func (p *Pin) Read() (analog.Sample, error) {
	a := p.adc
	msb, lsb, err := configForChannel(p.channel, a.sampleRate)
	if err != nil {
		return analog.Sample{}, err
	}
	if err := a.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return analog.Sample{}, fmt.Errorf("write config: %w", err)
	}
	delayMs := int(1000.0/float64(a.sampleRate)) + 2
	a.sleep(time.Duration(delayMs) * time.Millisecond)
	readBuf := make([]byte, 2)
	if err := a.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return analog.Sample{}, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return analog.Sample{V: rawToPotential(raw), Raw: int32(raw)}, nil
}

func rawToPotential(raw int16) physic.ElectricPotential {
	return physic.ElectricPotential(int64(raw) * int64(fullScale) / 32768)
}

func configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	// PGA: use ±4.096V -> bits 001
	pga := byte(0x1)
	var dr byte
	switch sampleRate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	case 860:
		dr = 0x7
	default:
		dr = 0x4
	}
	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	// comparator disabled (bits 1:0 = 11)
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}
