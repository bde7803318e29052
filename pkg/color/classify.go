package color

import (
	"fmt"
	"math"
	"strings"
)

// Class is the discrete color a sensor reading is classified as.
type Class int

const (
	None Class = iota
	Red
	Green
	Blue
)

const (
	minSaturation = 0.5
	// below this distance (cm) with little ambient light the proximity
	// LED saturates the color channels
	minDistance = 12.0
	minAmbient  = 200.0
)

func (c Class) String() string {
	switch c {
	case Red:
		return "Red"
	case Green:
		return "Green"
	case Blue:
		return "Blue"
	default:
		return "None"
	}
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "none", "":
		*c = None
	case "red":
		*c = Red
	case "green":
		*c = Green
	case "blue":
		*c = Blue
	default:
		return fmt.Errorf("unknown color %q", string(b))
	}
	return nil
}

// Classify maps an HSV reading, together with the distance (cm) and ambient
// count of the reading it came from, to a Class. Hues between the bands
// (30-85, 165-175, 270-330) are left unclassified.
func Classify(hsv HSV, distance, ambient float64) Class {
	if hsv.S < minSaturation || math.IsNaN(hsv.H) {
		return None
	}
	if distance < minDistance && ambient < minAmbient {
		return None
	}
	switch {
	case hsv.H > 85 && hsv.H < 165:
		return Green
	case hsv.H > 175 && hsv.H < 270:
		return Blue
	case hsv.H > 330 || hsv.H < 30:
		return Red
	}
	return None
}
