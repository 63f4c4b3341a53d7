// Package strength implements the small pure-function scaling rules shared
// by the playback engine and the command dispatcher: strength-to-magnitude,
// intensity-based amplitude scaling, and the should_repeat rewrite rule.
package strength

import "vibratord/internal/wire"

// Magnitude band, mirrored from internal/ffdev to keep this package free of
// a dependency on the device adapter.
const (
	LightMag  = 0x3FFF
	MediumMag = 0x5FFF
	StrongMag = 0x7FFF
)

// ToMagnitude maps a PredefinedEffect strength onto the fixed magnitude
// band. DefaultES leaves the current magnitude unchanged.
func ToMagnitude(s wire.Strength, current int16) int16 {
	switch s {
	case wire.StrengthLight:
		return LightMag
	case wire.StrengthMedium:
		return MediumMag
	case wire.StrengthStrong:
		return StrongMag
	default: // StrengthDefault
		return current
	}
}

// AmplitudeToMagnitude linearly maps a 0..255 client amplitude into the
// magnitude band, the same mapping ffdev.Device.SetGain uses, exposed here
// so the dispatcher can precompute current_magnitude for Primitive without
// going through a gain write.
func AmplitudeToMagnitude(amplitude uint8) int16 {
	return int16(LightMag + int32(amplitude)*(StrongMag-LightMag)/255)
}

// Scale applies the user's intensity preference to a raw 0..255 amplitude.
// Off is never expected to reach here: ShouldVibrate(Off) is false and
// callers must gate on it before scaling.
func Scale(raw uint8, intensity wire.Intensity) uint8 {
	var factor float64
	switch intensity {
	case wire.IntensityLow:
		factor = 0.3
	case wire.IntensityMedium:
		factor = 0.6
	case wire.IntensityHigh:
		factor = 1.0
	default: // Off
		return 255
	}
	return uint8(float64(raw) * factor)
}

// ShouldVibrate is the master-mute check: no play request may reach the
// device while intensity is Off.
func ShouldVibrate(intensity wire.Intensity) bool {
	return intensity != wire.IntensityOff
}

// ShouldRepeat reports whether timings[repeat:length] contains any nonzero
// duration. If it does not, the caller should treat this waveform as
// non-repeating (rewrite repeat to -1) rather than spawn a worker that
// would cycle through zero-duration steps until it is stopped.
func ShouldRepeat(repeat int8, timings [24]uint32, length uint8) bool {
	if repeat < 0 {
		return false
	}
	for j := int(repeat); j < int(length); j++ {
		if timings[j] != 0 {
			return true
		}
	}
	return false
}
