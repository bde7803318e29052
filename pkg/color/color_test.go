package color

import (
	"encoding/json"
	"math"
	"testing"
)

func TestRGBToHSVPrimaries(t *testing.T) {
	tests := []struct {
		r, g, b float64
		h, s, v float64
	}{
		{255, 0, 0, 0, 1, 255},
		{0, 255, 0, 120, 1, 255},
		{0, 0, 255, 240, 1, 255},
		{255, 255, 0, 60, 1, 255},
		{0, 255, 255, 180, 1, 255},
		{255, 0, 255, 300, 1, 255},
		{200, 100, 100, 0, 0.5, 200},
	}
	for _, tt := range tests {
		got := RGBToHSV(tt.r, tt.g, tt.b)
		if math.Abs(got.H-tt.h) > 1e-9 || math.Abs(got.S-tt.s) > 1e-9 || got.V != tt.v {
			t.Fatalf("RGBToHSV(%v,%v,%v) = %+v; want H=%v S=%v V=%v", tt.r, tt.g, tt.b, got, tt.h, tt.s, tt.v)
		}
	}
}

func TestRGBToHSVAchromatic(t *testing.T) {
	for _, c := range []float64{0, 1, 17.5, 255, 65535} {
		got := RGBToHSV(c, c, c)
		if got.H != 0 || got.S != 0 {
			t.Fatalf("RGBToHSV(%v,%v,%v) = %+v; want H=0 S=0", c, c, c, got)
		}
		if got.V != c {
			t.Fatalf("value: got %v want %v", got.V, c)
		}
	}
}

func TestRGBToHSVNonPositiveMax(t *testing.T) {
	got := RGBToHSV(-1, -2, -3)
	if !math.IsNaN(got.H) || got.S != 0 {
		t.Fatalf("got %+v; want NaN hue and zero saturation", got)
	}
	if Classify(got, 30, 1000) != None {
		t.Fatalf("undefined hue must classify as None")
	}
}

func TestRGBToHSVHueRange(t *testing.T) {
	// magenta-ish red goes negative before wrapping
	got := RGBToHSV(255, 0, 10)
	if got.H < 0 || got.H >= 360 {
		t.Fatalf("hue out of range: %v", got.H)
	}
	if got.H < 357 {
		t.Fatalf("hue: got %v want ~357.6", got.H)
	}
	// hue a hair below zero must not wrap to exactly 360
	for _, c := range [][3]float64{{1, 0, 1e-17}, {1e6, 0, 1e-10}, {0.5, 0, 1e-18}} {
		h := RGBToHSV(c[0], c[1], c[2]).H
		if h < 0 || h >= 360 {
			t.Fatalf("RGBToHSV(%v,%v,%v) hue %v out of [0,360)", c[0], c[1], c[2], h)
		}
	}
	for r := 0.0; r <= 1000; r += 97 {
		for g := 0.0; g <= 1000; g += 89 {
			for b := 0.0; b <= 1000; b += 83 {
				h := RGBToHSV(r, g, b).H
				if h < 0 || h >= 360 {
					t.Fatalf("RGBToHSV(%v,%v,%v) hue %v out of [0,360)", r, g, b, h)
				}
			}
		}
	}
}

func TestClassify(t *testing.T) {
	far, bright := 20.0, 1000.0
	tests := []struct {
		name     string
		hsv      HSV
		distance float64
		ambient  float64
		want     Class
	}{
		{"red low", HSV{H: 10, S: 0.9}, far, bright, Red},
		{"red high", HSV{H: 350, S: 0.9}, far, bright, Red},
		{"green", HSV{H: 120, S: 0.9}, far, bright, Green},
		{"blue", HSV{H: 240, S: 0.9}, far, bright, Blue},
		{"washed out red", HSV{H: 0, S: 0.49}, far, bright, None},
		{"washed out green", HSV{H: 120, S: 0.1}, far, bright, None},
		{"close and dark", HSV{H: 120, S: 0.9}, 11.9, 199, None},
		{"close but bright", HSV{H: 120, S: 0.9}, 8, 200, Green},
		{"dark but far", HSV{H: 240, S: 0.9}, 12, 10, Blue},
		{"yellow gap", HSV{H: 60, S: 0.9}, far, bright, None},
		{"cyan gap", HSV{H: 170, S: 0.9}, far, bright, None},
		{"magenta gap", HSV{H: 300, S: 0.9}, far, bright, None},
		{"green lower edge", HSV{H: 85, S: 0.9}, far, bright, None},
		{"red edge 30", HSV{H: 30, S: 0.9}, far, bright, None},
		{"red edge 330", HSV{H: 330, S: 0.9}, far, bright, None},
		{"blue edge 270", HSV{H: 270, S: 0.9}, far, bright, None},
	}
	for _, tt := range tests {
		if got := Classify(tt.hsv, tt.distance, tt.ambient); got != tt.want {
			t.Fatalf("%s: got %v want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassString(t *testing.T) {
	want := map[Class]string{None: "None", Red: "Red", Green: "Green", Blue: "Blue", Class(42): "None"}
	for c, s := range want {
		if c.String() != s {
			t.Fatalf("Class(%d).String() = %q; want %q", int(c), c.String(), s)
		}
	}
	b, err := json.Marshal(map[string]Class{"color": Green})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"color":"Green"}` {
		t.Fatalf("json: got %s", b)
	}
	var c Class
	if err := c.UnmarshalText([]byte("blue")); err != nil || c != Blue {
		t.Fatalf("unmarshal: got %v err %v", c, err)
	}
	if err := c.UnmarshalText([]byte("purple")); err == nil {
		t.Fatalf("expected error for unknown color")
	}
}

func TestProximityToDistance(t *testing.T) {
	if ProximityToDistance(10) != ProximityToDistance(20) {
		t.Fatalf("proximity below floor must clamp to 20")
	}
	if ProximityToDistance(0) != ProximityToDistance(20) {
		t.Fatalf("proximity 0 must clamp to 20")
	}
	want := 117.55 * math.Pow(20, -0.51)
	if got := ProximityToDistance(20); math.Abs(got-want) > 1e-12 {
		t.Fatalf("distance(20): got %v want %v", got, want)
	}
	near := ProximityToDistance(255)
	if near < 6 || near > 7.5 {
		t.Fatalf("distance(255): got %v want ~6.6", near)
	}
	farthest := ProximityToDistance(20)
	if farthest < 25 || farthest > 26 {
		t.Fatalf("distance(20): got %v want ~25.5", farthest)
	}
	prev := farthest
	for p := 21; p <= 255; p++ {
		d := ProximityToDistance(uint8(p))
		if d >= prev {
			t.Fatalf("distance must decrease with proximity: p=%d d=%v prev=%v", p, d, prev)
		}
		prev = d
	}
}
