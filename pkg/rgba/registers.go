package rgba

// APDS-9960 registers and field values.
const (
	DefaultAddress = 0x39

	regEnable    = 0x80
	regATime     = 0x81
	regWTime     = 0x83
	regPers      = 0x8C
	regConfig1   = 0x8D
	regPPulse    = 0x8E
	regControl   = 0x8F
	regConfig2   = 0x90
	regID        = 0x92
	regCDataL    = 0x94
	regRDataL    = 0x96
	regGDataL    = 0x98
	regBDataL    = 0x9A
	regPData     = 0x9C
	regPOffsetUR = 0x9D
	regPOffsetDL = 0x9E
	regConfig3   = 0x9F

	chipID1 = 0xAB
	chipID2 = 0x9C

	enablePON = 0x01
	enableAEN = 0x02
	enablePEN = 0x04

	defaultATime   = 219  // 103ms
	defaultWTime   = 246  // 27ms
	defaultPPulse  = 0x87 // 16us, 8 pulses
	defaultConfig1 = 0x60 // no 12x wait
	defaultPers    = 0x11 // 1 proximity, 1 ALS cycle
	defaultConfig2 = 0x01 // no saturation interrupts or LED boost
	defaultConfig3 = 0x00 // all photodiodes active
)

// Gain is a proximity or ambient light gain setting.
type Gain uint8

const (
	Gain1X Gain = iota
	Gain2X
	Gain4X
	Gain8X
)

// LEDDrive is the proximity LED drive current.
type LEDDrive uint8

const (
	LEDDrive100mA LEDDrive = iota
	LEDDrive50mA
	LEDDrive25mA
	LEDDrive12mA
)

// Opts holds the sensor settings applied at init. An empty Name defaults to
// the Position of the mux channel.
type Opts struct {
	Name          string
	ProximityGain Gain
	AmbientGain   Gain
	LEDDrive      LEDDrive
}

// DefaultOpts matches the distance calibration in color.ProximityToDistance.
var DefaultOpts = Opts{
	ProximityGain: Gain2X,
	AmbientGain:   Gain4X,
	LEDDrive:      LEDDrive100mA,
}

func (o *Opts) control() byte {
	return byte(o.LEDDrive&0x3)<<6 | byte(o.ProximityGain&0x3)<<2 | byte(o.AmbientGain&0x3)
}
