package rgba

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ericogr/krembot-to-mqtt/pkg/color"
	"github.com/ericogr/krembot-to-mqtt/pkg/i2cmux"
	"periph.io/x/conn/v3/i2c"
)

var ErrUnknownChip = errors.New("rgba: unknown chip id")

// Result is one raw read of the sensor. Channels whose read failed are zero
// and have their error flag set.
type Result struct {
	Ambient   uint16  `json:"ambient"`
	Red       uint16  `json:"red"`
	Green     uint16  `json:"green"`
	Blue      uint16  `json:"blue"`
	Proximity uint8   `json:"proximity"`
	Distance  float64 `json:"distance"`

	AmbientError   bool `json:"ambient_error,omitempty"`
	RedError       bool `json:"red_error,omitempty"`
	GreenError     bool `json:"green_error,omitempty"`
	BlueError      bool `json:"blue_error,omitempty"`
	ProximityError bool `json:"proximity_error,omitempty"`
}

// HasError reports whether any channel failed.
func (r Result) HasError() bool {
	return r.AmbientError || r.RedError || r.GreenError || r.BlueError || r.ProximityError
}

// HSV converts the red, green and blue counts.
func (r Result) HSV() color.HSV {
	return color.RGBToHSV(float64(r.Red), float64(r.Green), float64(r.Blue))
}

// Reading is a Result with everything derived from it.
type Reading struct {
	Name      string      `json:"name"`
	Channel   uint8       `json:"channel"`
	Result    Result      `json:"rgba"`
	HSV       color.HSV   `json:"hsv"`
	Color     color.Class `json:"color"`
	Timestamp time.Time   `json:"timestamp"`
}

// Derive builds a Reading from a Result.
func Derive(name string, channel uint8, res Result, ts time.Time) Reading {
	hsv := res.HSV()
	return Reading{
		Name:      name,
		Channel:   channel,
		Result:    res,
		HSV:       hsv,
		Color:     color.Classify(hsv, res.Distance, float64(res.Ambient)),
		Timestamp: ts,
	}
}

// Sensor is an APDS-9960 behind one channel of an I2C mux.
type Sensor struct {
	dev     *i2c.Dev
	mux     *i2cmux.Mux
	channel uint8
	name    string
}

// New selects the sensor's mux channel, checks the chip id and enables
// the ambient light and proximity engines. mux may be nil for a sensor
// wired directly to the bus; channel then only names the sensor.
func New(bus i2c.Bus, mux *i2cmux.Mux, channel uint8, opts *Opts) (*Sensor, error) {
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	name := opts.Name
	if name == "" {
		name = Position(channel).String()
	}
	s := &Sensor{
		dev:     &i2c.Dev{Addr: DefaultAddress, Bus: bus},
		mux:     mux,
		channel: channel,
		name:    name,
	}
	if err := s.init(opts); err != nil {
		log.Printf("[rgba %s] init failed: %v", s.name, err)
		return nil, err
	}
	return s, nil
}

func (s *Sensor) init(opts *Opts) error {
	if err := s.selectMe(); err != nil {
		return err
	}
	id := make([]byte, 1)
	if err := s.dev.Tx([]byte{regID}, id); err != nil {
		return fmt.Errorf("read id: %w", err)
	}
	if id[0] != chipID1 && id[0] != chipID2 {
		return fmt.Errorf("%w %#02x", ErrUnknownChip, id[0])
	}
	writes := [][2]byte{
		{regEnable, 0},
		{regATime, defaultATime},
		{regWTime, defaultWTime},
		{regPPulse, defaultPPulse},
		{regPOffsetUR, 0},
		{regPOffsetDL, 0},
		{regConfig1, defaultConfig1},
		{regControl, opts.control()},
		{regPers, defaultPers},
		{regConfig2, defaultConfig2},
		{regConfig3, defaultConfig3},
		{regEnable, enablePON | enableAEN | enablePEN},
	}
	for _, w := range writes {
		if err := s.dev.Tx(w[:], nil); err != nil {
			return fmt.Errorf("write reg %#02x: %w", w[0], err)
		}
	}
	return nil
}

func (s *Sensor) selectMe() error {
	if s.mux == nil {
		return nil
	}
	return s.mux.Select(s.channel)
}

func (s *Sensor) Name() string   { return s.name }
func (s *Sensor) Channel() uint8 { return s.channel }

func (s *Sensor) String() string {
	return fmt.Sprintf("APDS9960 %s (channel %d)", s.name, s.channel)
}

func (s *Sensor) readWord(reg byte) (uint16, error) {
	b := make([]byte, 2)
	if err := s.dev.Tx([]byte{reg}, b); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (s *Sensor) readByte(reg byte) (uint8, error) {
	b := make([]byte, 1)
	if err := s.dev.Tx([]byte{reg}, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadRGBA selects the sensor and reads all channels. A channel that fails
// is flagged and logged; the remaining channels are still read.
func (s *Sensor) ReadRGBA() Result {
	var res Result
	if err := s.selectMe(); err != nil {
		log.Printf("[rgba %s] mux select error: %v", s.name, err)
		res.AmbientError, res.RedError, res.GreenError, res.BlueError, res.ProximityError = true, true, true, true, true
		return res
	}
	var err error
	if res.Ambient, err = s.readWord(regCDataL); err != nil {
		res.AmbientError = true
		log.Printf("[rgba %s] ambient read error: %v", s.name, err)
	}
	if res.Red, err = s.readWord(regRDataL); err != nil {
		res.RedError = true
		log.Printf("[rgba %s] red read error: %v", s.name, err)
	}
	if res.Green, err = s.readWord(regGDataL); err != nil {
		res.GreenError = true
		log.Printf("[rgba %s] green read error: %v", s.name, err)
	}
	if res.Blue, err = s.readWord(regBDataL); err != nil {
		res.BlueError = true
		log.Printf("[rgba %s] blue read error: %v", s.name, err)
	}
	p, err := s.readByte(regPData)
	if err != nil {
		res.ProximityError = true
		log.Printf("[rgba %s] proximity read error: %v", s.name, err)
	} else {
		res.Proximity = color.ClampProximity(p)
		res.Distance = color.ProximityToDistance(p)
	}
	return res
}

// ReadHSV reads the sensor and converts the result to HSV.
func (s *Sensor) ReadHSV() color.HSV {
	return s.ReadRGBA().HSV()
}

// ReadColor reads the sensor and classifies the result.
func (s *Sensor) ReadColor() color.Class {
	res := s.ReadRGBA()
	return color.Classify(res.HSV(), res.Distance, float64(res.Ambient))
}

// Read reads the sensor once and derives HSV and color from that read.
func (s *Sensor) Read() Reading {
	return Derive(s.name, s.channel, s.ReadRGBA(), time.Now())
}
