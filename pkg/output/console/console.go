package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ericogr/krembot-to-mqtt/pkg/output"
	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
	"github.com/ericogr/krembot-to-mqtt/pkg/sensor"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{} }

func (c *ConsoleOutput) writer() io.Writer {
	if c.w != nil {
		return c.w
	}
	return os.Stdout
}

func (c *ConsoleOutput) Publish(r sensor.Reading) error {
	w := c.writer()
	ts := r.Timestamp.Format(time.RFC3339)
	if b := r.Battery; b != nil {
		if _, err := fmt.Fprintf(w, "%s battery raw=%d voltage=%.3f level=%d%% charge=%d%% charging=%s full=%s\n",
			ts, b.Raw, b.Voltage, b.Level, b.ChargeLevel, yesNo(b.Charging), yesNo(b.Full)); err != nil {
			return err
		}
	}
	for _, cr := range r.Colors {
		res := cr.Result
		line := fmt.Sprintf("%s rgba name=%s ambient=%d red=%d green=%d blue=%d distance=%.2f",
			ts, cr.Name, res.Ambient, res.Red, res.Green, res.Blue, res.Distance)
		if errs := failedChannels(res); len(errs) > 0 {
			line += " errors=" + strings.Join(errs, ",")
		}
		if _, err := fmt.Fprintf(w, "%s\n%s hsv name=%s hue=%.2f saturation=%.2f value=%.2f\n%s color name=%s color=%s\n",
			line, ts, cr.Name, cr.HSV.H, cr.HSV.S, cr.HSV.V, ts, cr.Name, cr.Color); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func failedChannels(res rgba.Result) []string {
	var out []string
	if res.AmbientError {
		out = append(out, "ambient")
	}
	if res.RedError {
		out = append(out, "red")
	}
	if res.GreenError {
		out = append(out, "green")
	}
	if res.BlueError {
		out = append(out, "blue")
	}
	if res.ProximityError {
		out = append(out, "proximity")
	}
	return out
}
