package sensor

import (
	"time"

	"github.com/ericogr/krembot-to-mqtt/pkg/battery"
	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
)

// Reading is one poll of the robot's peripherals. Battery is nil when the
// battery monitor is disabled.
type Reading struct {
	Timestamp time.Time       `json:"timestamp"`
	Battery   *battery.Status `json:"battery,omitempty"`
	Colors    []rgba.Reading  `json:"colors,omitempty"`
}

type Sensor interface {
	Read() (Reading, error)
	Close() error
}
