package strength

import (
	"testing"

	"vibratord/internal/wire"
)

func TestScaleFactors(t *testing.T) {
	cases := []struct {
		intensity wire.Intensity
		raw       uint8
		want      uint8
	}{
		{wire.IntensityLow, 100, 30},
		{wire.IntensityMedium, 100, 60},
		{wire.IntensityHigh, 100, 100},
		{wire.IntensityOff, 100, 255},
	}
	for _, c := range cases {
		if got := Scale(c.raw, c.intensity); got != c.want {
			t.Errorf("Scale(%d, %v) = %d, want %d", c.raw, c.intensity, got, c.want)
		}
	}
}

func TestShouldVibrate(t *testing.T) {
	if ShouldVibrate(wire.IntensityOff) {
		t.Fatal("Off must never vibrate")
	}
	if !ShouldVibrate(wire.IntensityLow) {
		t.Fatal("Low must vibrate")
	}
}

func TestToMagnitude(t *testing.T) {
	if got := ToMagnitude(wire.StrengthLight, MediumMag); got != LightMag {
		t.Fatalf("Light = %#x, want %#x", got, LightMag)
	}
	if got := ToMagnitude(wire.StrengthDefault, MediumMag); got != MediumMag {
		t.Fatalf("DefaultES should preserve current magnitude, got %#x", got)
	}
}

func TestShouldRepeat(t *testing.T) {
	timings := [24]uint32{500, 0, 0}
	if ShouldRepeat(1, timings, 3) {
		t.Fatal("all-zero tail from repeat index must not repeat")
	}
	timings2 := [24]uint32{500, 0, 300}
	if !ShouldRepeat(1, timings2, 3) {
		t.Fatal("nonzero timing in tail must repeat")
	}
	if ShouldRepeat(-1, timings2, 3) {
		t.Fatal("negative repeat must never repeat")
	}
}
