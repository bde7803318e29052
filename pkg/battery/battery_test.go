package battery

import (
	"math"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestFilterConverges(t *testing.T) {
	const sample = 3.9
	v := 0.0
	for i := 0; i < 2000; i++ {
		v = Filter(0.05, sample, v)
	}
	if math.Abs(v-sample) > 1e-9 {
		t.Fatalf("filter did not converge: got %v want %v", v, sample)
	}
}

func TestFilterStep(t *testing.T) {
	if got := Filter(0.1, 4.0, 3.0); math.Abs(got-3.1) > 1e-12 {
		t.Fatalf("Filter(0.1, 4, 3) = %v; want 3.1", got)
	}
	if got := Filter(1, 4.0, 3.0); got != 4.0 {
		t.Fatalf("alpha=1 must follow the sample, got %v", got)
	}
}

func TestLevelPercent(t *testing.T) {
	tests := []struct {
		v    float64
		want int
	}{
		{3.0, 0},
		{4.0, 100},
		{3.5, 50},
		{3.499, 49},
		{2.0, 0},
		{-1, 0},
		{5.0, 100},
		{100, 100},
	}
	for _, tt := range tests {
		if got := LevelPercent(tt.v, 3.0, 4.0); got != tt.want {
			t.Fatalf("LevelPercent(%v) = %d; want %d", tt.v, got, tt.want)
		}
	}
	if got := LevelPercent(4, 4, 4); got != 0 {
		t.Fatalf("degenerate range: got %d", got)
	}
}

func TestVolts(t *testing.T) {
	if got := Volts(1500 * physic.MilliVolt); math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("Volts: got %v want 1.5", got)
	}
}
