package sensor

import (
	"time"

	"github.com/ericogr/krembot-to-mqtt/pkg/battery"
	"github.com/ericogr/krembot-to-mqtt/pkg/config"
	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
)

// channelSetting is the driver view of one enabled RGBA channel.
type channelSetting struct {
	channel uint8
	opts    rgba.Opts
}

// buildChannelSettings extracts the enabled RGBA channels from the config.
func buildChannelSettings(cfg config.Config) []channelSetting {
	out := make([]channelSetting, 0, len(cfg.Channels))
	for _, c := range cfg.EnabledChannels() {
		opts := rgba.DefaultOpts
		opts.Name = c.DisplayName()
		opts.ProximityGain = gainFromInt(c.ProximityGain)
		out = append(out, channelSetting{channel: uint8(c.Channel), opts: opts})
	}
	return out
}

// gainFromInt maps a 1/2/4/8 multiplier to the register setting; anything
// else selects the default 2x.
func gainFromInt(g int) rgba.Gain {
	switch g {
	case 1:
		return rgba.Gain1X
	case 4:
		return rgba.Gain4X
	case 8:
		return rgba.Gain8X
	default:
		return rgba.Gain2X
	}
}

func batteryConfig(b config.BatteryConfig) battery.Config {
	return battery.Config{
		Alpha:              b.Alpha,
		MinLevel:           b.MinLevel,
		MaxLevel:           b.MaxLevel,
		DividerRatio:       b.DividerRatio,
		Correction:         b.Correction,
		ChargeDividerRatio: b.ChargeDividerRatio,
		MaxChargeLevel:     b.MaxChargeLevel,
		SampleInterval:     time.Duration(b.SampleIntervalMs) * time.Millisecond,
	}
}
