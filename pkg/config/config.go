package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
)

type MQTTConfig struct {
	Server            string `json:"server"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	Topic             string `json:"topic"`
	DiscoveryPrefix   string `json:"discovery_prefix,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty"`
}

type OutputConfig struct {
	Type       string      `json:"type"`
	IntervalMs int         `json:"interval_ms,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty"`
}

type I2CConfig struct {
	Bus        string `json:"bus"`
	MuxAddress int    `json:"mux_address"`
}

// BatteryConfig describes the battery divider wiring. The battery and
// charger input dividers are read through an ADS1115; ChargeChannel -1
// leaves the charger input unread. Empty pin names leave the charger status
// lines unwired.
type BatteryConfig struct {
	Enabled            bool    `json:"enabled"`
	ADCAddress         int     `json:"adc_address"`
	SampleRate         int     `json:"sample_rate"`
	LevelChannel       int     `json:"level_channel"`
	ChargeChannel      int     `json:"charge_channel"`
	ChargingPin        string  `json:"charging_pin,omitempty"`
	FullPin            string  `json:"full_pin,omitempty"`
	Alpha              float64 `json:"alpha"`
	MinLevel           float64 `json:"min_level"`
	MaxLevel           float64 `json:"max_level"`
	DividerRatio       float64 `json:"divider_ratio"`
	Correction         float64 `json:"correction"`
	ChargeDividerRatio float64 `json:"charge_divider_ratio"`
	MaxChargeLevel     float64 `json:"max_charge_level"`
	SampleIntervalMs   int     `json:"sample_interval_ms"`
}

// ChannelConfig describes the RGBA sensor on one mux channel.
type ChannelConfig struct {
	Channel       int    `json:"channel"`
	Enabled       bool   `json:"enabled"`
	Name          string `json:"name,omitempty"`
	ProximityGain int    `json:"proximity_gain,omitempty"`
}

type Config struct {
	I2C        I2CConfig       `json:"i2c"`
	Battery    BatteryConfig   `json:"battery"`
	Channels   []ChannelConfig `json:"channels"`
	Outputs    []OutputConfig  `json:"outputs"`
	SensorType string          `json:"sensor_type"`
	IntervalMs int             `json:"interval_ms"`
}

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"

	DefaultProximityGain = 2
)

func DefaultConfig() Config {
	chans := make([]ChannelConfig, 0, 8)
	for i := 0; i < 8; i++ {
		chans = append(chans, ChannelConfig{Channel: i, Enabled: true, ProximityGain: DefaultProximityGain})
	}
	return Config{
		I2C: I2CConfig{Bus: "1", MuxAddress: 0x70},
		Battery: BatteryConfig{
			Enabled:            true,
			ADCAddress:         0x48,
			SampleRate:         128,
			LevelChannel:       0,
			ChargeChannel:      1,
			Alpha:              0.05,
			MinLevel:           3.3,
			MaxLevel:           4.2,
			DividerRatio:       2.0,
			Correction:         1.0,
			ChargeDividerRatio: 2.0,
			MaxChargeLevel:     5.0,
			SampleIntervalMs:   500,
		},
		Channels:   chans,
		Outputs:    []OutputConfig{{Type: OutputConsole, IntervalMs: 1000}},
		SensorType: SensorReal,
		IntervalMs: 1000,
	}
}

// LoadFromFlags loads configuration from a JSON file (optional) and the
// process command line. Flags override values present in the JSON file.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadFromFlags for an explicit argument list.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("krembot-to-mqtt", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON config file")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus (e.g., '1' -> /dev/i2c-1)")
	flagMuxAddr := fs.String("mux-address", "", "TCA9548A I2C address (decimal or 0x hex)")
	flagADCAddr := fs.String("adc-address", "", "ADS1115 I2C address for the battery dividers (decimal or 0x hex)")
	flagNoBattery := fs.Bool("no-battery", false, "Disable the battery monitor")
	flagAlpha := fs.Float64("battery-alpha", math.NaN(), "Battery low-pass filter weight of a new sample (0,1]")
	flagMinLevel := fs.Float64("battery-min", math.NaN(), "Battery voltage reported as 0%")
	flagMaxLevel := fs.Float64("battery-max", math.NaN(), "Battery voltage reported as 100%")
	flagCorrection := fs.Float64("battery-correction", math.NaN(), "Battery reading correction factor (multiplier)")
	flagBatInterval := fs.Int("battery-interval-ms", -1, "Battery sample interval in ms")
	flagChargingPin := fs.String("charging-pin", "", "GPIO name of the active-low charging line")
	flagFullPin := fs.String("full-pin", "", "GPIO name of the active-low full-charge line")
	flagChannels := fs.String("channels", "", "Comma-separated enabled RGBA mux channels e.g. 0,2,4,6")
	flagChannelsEnabled := fs.String("channels-enabled", "", "Per channel enable e.g. 0=true,3=false")
	flagChannelNames := fs.String("channel-names", "", "Per channel names e.g. 0=Front,4=Rear")
	flagProxGain := fs.String("proximity-gain", "", "Per channel proximity gain (1,2,4,8) e.g. 0=2,1=4")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT topic base")
	flagDiscovery := fs.String("mqtt-discovery-prefix", "", "Home Assistant discovery prefix (e.g. homeassistant)")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagInterval := fs.Int("interval-ms", -1, "Poll interval in ms")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		fileCfg, err := parseJSON(b)
		if err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		cfg = fileCfg
	}

	if *flagI2CBus != "" {
		cfg.I2C.Bus = *flagI2CBus
	}
	if *flagMuxAddr != "" {
		v, err := parseIntOrHex(*flagMuxAddr)
		if err != nil {
			return cfg, fmt.Errorf("mux-address: %w", err)
		}
		cfg.I2C.MuxAddress = v
	}
	if *flagADCAddr != "" {
		v, err := parseIntOrHex(*flagADCAddr)
		if err != nil {
			return cfg, fmt.Errorf("adc-address: %w", err)
		}
		cfg.Battery.ADCAddress = v
	}
	if *flagNoBattery {
		cfg.Battery.Enabled = false
	}
	if !math.IsNaN(*flagAlpha) {
		cfg.Battery.Alpha = *flagAlpha
	}
	if !math.IsNaN(*flagMinLevel) {
		cfg.Battery.MinLevel = *flagMinLevel
	}
	if !math.IsNaN(*flagMaxLevel) {
		cfg.Battery.MaxLevel = *flagMaxLevel
	}
	if !math.IsNaN(*flagCorrection) {
		cfg.Battery.Correction = *flagCorrection
	}
	if *flagBatInterval != -1 {
		cfg.Battery.SampleIntervalMs = *flagBatInterval
	}
	if *flagChargingPin != "" {
		cfg.Battery.ChargingPin = *flagChargingPin
	}
	if *flagFullPin != "" {
		cfg.Battery.FullPin = *flagFullPin
	}

	if *flagChannels != "" {
		chs, err := parseChannels(*flagChannels)
		if err != nil {
			return cfg, err
		}
		enabled := make(map[int]bool, len(chs))
		for _, c := range chs {
			enabled[c] = true
		}
		for i := range cfg.Channels {
			cfg.Channels[i].Enabled = enabled[cfg.Channels[i].Channel]
			delete(enabled, cfg.Channels[i].Channel)
		}
		for _, c := range chs {
			if enabled[c] {
				cfg.Channels = append(cfg.Channels, ChannelConfig{Channel: c, Enabled: true, ProximityGain: DefaultProximityGain})
				delete(enabled, c)
			}
		}
	}
	if *flagChannelsEnabled != "" {
		m, err := parseKeyBoolMap(*flagChannelsEnabled)
		if err != nil {
			return cfg, fmt.Errorf("channels-enabled: %w", err)
		}
		for ch, v := range m {
			channelEntry(&cfg, ch).Enabled = v
		}
	}
	if *flagChannelNames != "" {
		m, err := parseKeyStringMap(*flagChannelNames)
		if err != nil {
			return cfg, fmt.Errorf("channel-names: %w", err)
		}
		for ch, v := range m {
			channelEntry(&cfg, ch).Name = v
		}
	}
	if *flagProxGain != "" {
		m, err := parseKeyIntMap(*flagProxGain)
		if err != nil {
			return cfg, fmt.Errorf("proximity-gain: %w", err)
		}
		for ch, v := range m {
			channelEntry(&cfg, ch).ProximityGain = v
		}
	}

	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagOutputs != "" {
		// convert simple CSV of types into structured OutputConfig entries
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p), IntervalMs: cfg.IntervalMs})
		}
		cfg.Outputs = outs
	}
	if *flagOutputIntervals != "" {
		outIntervals := map[string]int{}
		for _, p := range parseCSV(*flagOutputIntervals) {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				return cfg, fmt.Errorf("output-intervals: invalid entry %q", p)
			}
			v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
			if err != nil {
				return cfg, fmt.Errorf("output-intervals: %w", err)
			}
			outIntervals[strings.TrimSpace(kv[0])] = v
		}
		for i := range cfg.Outputs {
			if v, ok := outIntervals[cfg.Outputs[i].Type]; ok {
				cfg.Outputs[i].IntervalMs = v
			}
		}
	}
	// MQTT flags apply to every mqtt output; one is created if none exists.
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" || *flagDiscovery != "" {
		apply := func(m *MQTTConfig) {
			if *flagMQTTServer != "" {
				m.Server = *flagMQTTServer
			}
			if *flagMQTTUser != "" {
				m.Username = *flagMQTTUser
			}
			if *flagMQTTPass != "" {
				m.Password = *flagMQTTPass
			}
			if *flagClientID != "" {
				m.ClientID = *flagClientID
			}
			if *flagTopic != "" {
				m.Topic = *flagTopic
			}
			if *flagDiscovery != "" {
				m.DiscoveryPrefix = *flagDiscovery
			}
		}
		applied := false
		for i := range cfg.Outputs {
			if cfg.Outputs[i].Type == OutputMQTT {
				if cfg.Outputs[i].MQTT == nil {
					cfg.Outputs[i].MQTT = &MQTTConfig{}
				}
				apply(cfg.Outputs[i].MQTT)
				applied = true
			}
		}
		if !applied {
			mqttOut := OutputConfig{Type: OutputMQTT, IntervalMs: cfg.IntervalMs, MQTT: &MQTTConfig{}}
			apply(mqttOut.MQTT)
			cfg.Outputs = append(cfg.Outputs, mqttOut)
		}
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	// ensure outputs have interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.IntervalMs
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseJSON decodes a config file over the defaults. Lists present in the
// file replace the default lists instead of merging into them.
func parseJSON(b []byte) (Config, error) {
	def := DefaultConfig()
	cfg := def
	cfg.Channels, cfg.Outputs = nil, nil
	if err := json.Unmarshal(b, &cfg); err != nil {
		return def, err
	}
	if cfg.Channels == nil {
		cfg.Channels = def.Channels
	}
	if cfg.Outputs == nil {
		cfg.Outputs = def.Outputs
	}
	return cfg, nil
}

// Validate checks ranges the drivers cannot recover from.
func (c Config) Validate() error {
	var errs []error
	if c.IntervalMs <= 0 {
		errs = append(errs, errors.New("interval-ms must be > 0"))
	}
	switch c.SensorType {
	case SensorReal, SensorSimulation:
	default:
		errs = append(errs, fmt.Errorf("unknown sensor type %q", c.SensorType))
	}
	if c.Battery.Enabled {
		b := c.Battery
		if b.Alpha <= 0 || b.Alpha > 1 {
			errs = append(errs, fmt.Errorf("battery alpha %v out of (0,1]", b.Alpha))
		}
		if b.MaxLevel <= b.MinLevel {
			errs = append(errs, fmt.Errorf("battery max level %v must exceed min level %v", b.MaxLevel, b.MinLevel))
		}
		if b.DividerRatio <= 0 || b.Correction <= 0 {
			errs = append(errs, errors.New("battery divider ratio and correction must be > 0"))
		}
		if b.SampleRate <= 0 {
			errs = append(errs, errors.New("battery sample-rate must be > 0"))
		}
		if b.LevelChannel < 0 || b.LevelChannel > 3 {
			errs = append(errs, fmt.Errorf("battery level channel %d out of 0-3", b.LevelChannel))
		}
		if b.ChargeChannel < -1 || b.ChargeChannel > 3 {
			errs = append(errs, fmt.Errorf("battery charge channel %d out of -1..3", b.ChargeChannel))
		}
	}
	seen := map[int]bool{}
	names := map[string]int{}
	for _, ch := range c.Channels {
		if ch.Enabled {
			key := TopicSegment(ch.DisplayName())
			if other, ok := names[key]; ok {
				errs = append(errs, fmt.Errorf("channels %d and %d both publish as %q", other, ch.Channel, key))
			}
			names[key] = ch.Channel
		}
		if ch.Channel < 0 || ch.Channel > 7 {
			errs = append(errs, fmt.Errorf("channel %d out of 0-7", ch.Channel))
		}
		if seen[ch.Channel] {
			errs = append(errs, fmt.Errorf("channel %d configured twice", ch.Channel))
		}
		seen[ch.Channel] = true
		switch ch.ProximityGain {
		case 0, 1, 2, 4, 8:
		default:
			errs = append(errs, fmt.Errorf("channel %d: proximity gain %d not one of 1,2,4,8", ch.Channel, ch.ProximityGain))
		}
	}
	for _, o := range c.Outputs {
		switch o.Type {
		case OutputConsole:
		case OutputMQTT:
			if o.MQTT == nil || o.MQTT.Server == "" {
				errs = append(errs, errors.New("mqtt output requires a server"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown output type %q", o.Type))
		}
	}
	return errors.Join(errs...)
}

// EnabledChannels returns the enabled RGBA channel entries in config order.
func (c Config) EnabledChannels() []ChannelConfig {
	out := make([]ChannelConfig, 0, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out
}

// DisplayName is the configured name, or the body position of the channel.
func (ch ChannelConfig) DisplayName() string {
	if ch.Name != "" {
		return ch.Name
	}
	return rgba.Position(ch.Channel).String()
}

// TopicSegment lowercases s and replaces characters that are not safe in an
// MQTT topic level or a discovery unique id.
func TopicSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// channelEntry returns the entry for ch, appending a disabled one if absent.
func channelEntry(cfg *Config, ch int) *ChannelConfig {
	for i := range cfg.Channels {
		if cfg.Channels[i].Channel == ch {
			return &cfg.Channels[i]
		}
	}
	cfg.Channels = append(cfg.Channels, ChannelConfig{Channel: ch, ProximityGain: DefaultProximityGain})
	return &cfg.Channels[len(cfg.Channels)-1]
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseChannels(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		v, err := strconv.Atoi(t)
		if err != nil {
			return nil, fmt.Errorf("invalid channel '%s': %w", t, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseKeyValues splits "k=v,k=v" into channel keys and raw values.
func parseKeyValues(s string, fn func(ch int, v string) error) error {
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("invalid entry '%s'", p)
		}
		ch, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil {
			return fmt.Errorf("invalid channel '%s': %w", kv[0], err)
		}
		if err := fn(ch, strings.TrimSpace(kv[1])); err != nil {
			return err
		}
	}
	return nil
}

func parseKeyIntMap(s string) (map[int]int, error) {
	out := map[int]int{}
	err := parseKeyValues(s, func(ch int, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		out[ch] = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseKeyBoolMap(s string) (map[int]bool, error) {
	out := map[int]bool{}
	err := parseKeyValues(s, func(ch int, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		out[ch] = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseKeyStringMap(s string) (map[int]string, error) {
	out := map[int]string{}
	err := parseKeyValues(s, func(ch int, v string) error {
		out[ch] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
