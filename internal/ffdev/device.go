// Package ffdev is the thin, stateful wrapper around a Linux force-feedback
// character device: effect upload, play, gain and stop, plus capability
// discovery. It owns exactly the state the driver forces on a caller — the
// currently uploaded effect slot, the last magnitude and amplitude written,
// and the capability bitmask discovered at startup.
package ffdev

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"vibratord/internal/wire"
)

// Magnitude band the driver is driven within, chosen to stay clear of
// inaudible/unnoticeable vibration at the low end.
const (
	LightMag  = 0x3FFF
	MediumMag = 0x5FFF
	StrongMag = 0x7FFF
)

// rawDevice is the syscall surface Device needs from an open device file.
// Tests substitute NewMock for a real character device.
type rawDevice interface {
	ioctl(req uintptr, arg unsafe.Pointer) error
	write(ev inputEvent) error
	close() error
}

// fileDevice implements rawDevice against a real /dev/input/eventN node.
type fileDevice struct {
	fd int
}

func openFileDevice(path string) (*fileDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("ffdev: open %s: %w", path, err)
	}
	return &fileDevice{fd: fd}, nil
}

func (d *fileDevice) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *fileDevice) write(ev inputEvent) error {
	buf := (*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:]
	_, err := unix.Write(d.fd, buf)
	return err
}

func (d *fileDevice) close() error {
	return unix.Close(d.fd)
}

// Open opens the FF device file at path and wraps it in a Device with a
// quiescent initial state. It does not probe capabilities; call Probe for
// that once the device is open.
func Open(path string) (*Device, error) {
	raw, err := openFileDevice(path)
	if err != nil {
		return nil, err
	}
	return newDevice(raw), nil
}

func newDevice(raw rawDevice) *Device {
	return &Device{
		raw:              raw,
		currentMagnitude: StrongMag,
		currentAmplitude: 255,
		intensity:        wire.IntensityMedium,
	}
}

// Device is the FF device adapter described in SPEC_FULL.md §4.1. All
// methods are synchronous and single-threaded: the dispatcher and the
// playback worker never call it concurrently (see internal/playback).
type Device struct {
	raw rawDevice

	currentEffectSlot *int16
	currentMagnitude  int16
	currentAmplitude  uint8
	capabilities      int32
	intensity         wire.Intensity
}

// Intensity returns the last intensity SetIntensity stored.
func (d *Device) Intensity() wire.Intensity { return d.intensity }

// SetIntensity stores the current intensity on the device object. It does
// not touch the driver: intensity is a pure gating/scaling preference.
func (d *Device) SetIntensity(i wire.Intensity) { d.intensity = i }

// Probe queries the driver's force-feedback bitmap and computes the
// capability mask returned to clients via GetCapabilities. It requires
// FF_CONSTANT or FF_PERIODIC to be present; callers should treat the
// "neither present" case as ENODEV (see cmd/vibratord).
func (d *Device) Probe() (int32, error) {
	var bits [ffMax/8 + 1]byte
	if err := d.raw.ioctl(evGBit(evFF, uintptr(len(bits))), unsafe.Pointer(&bits[0])); err != nil {
		return 0, fmt.Errorf("ffdev: EVIOCGBIT: %w", err)
	}

	has := func(bit int) bool { return bits[bit/8]&(1<<(uint(bit)%8)) != 0 }

	var caps int32
	if has(ffCustom) {
		caps |= CapAmplitudeControl
	}
	if has(ffGain) {
		caps |= CapPerformCallback | CapComposeEffects
	}
	if !has(ffConstant) && !has(ffPeriodic) {
		return 0, fmt.Errorf("ffdev: device has neither FF_CONSTANT nor FF_PERIODIC")
	}
	d.capabilities = caps
	return caps, nil
}

// Capabilities returns the mask computed by the last Probe.
func (d *Device) Capabilities() int32 { return d.capabilities }

// removeSlot removes the currently held effect slot, if any.
func (d *Device) removeSlot() error {
	if d.currentEffectSlot == nil {
		return nil
	}
	id := int32(*d.currentEffectSlot)
	err := d.raw.ioctl(evRMFF, unsafe.Pointer(&id))
	d.currentEffectSlot = nil
	if err != nil {
		return fmt.Errorf("ffdev: EVIOCRMFF: %w", err)
	}
	return nil
}

// UploadAndStart uploads and plays either a periodic-custom effect (when
// effectID is non-nil, smuggling the predefined effect id through the
// custom-data words the way the reference driver does) or a plain constant
// effect of the given duration. It returns the play length in milliseconds
// the driver reports back for a predefined effect, or 0 for a constant.
//
// The stop path — remove the held slot and upload nothing — only applies
// when both effectID is nil and timeoutMs is 0. A predefined or primitive
// play passes timeoutMs of 0 with a non-nil effectID and must still upload.
func (d *Device) UploadAndStart(effectID *int32, timeoutMs uint32) (playLengthMs int32, err error) {
	if d.currentEffectSlot != nil && (effectID != nil || timeoutMs != 0) {
		if err := d.removeSlot(); err != nil {
			return 0, err
		}
	}
	if effectID == nil && timeoutMs == 0 {
		return 0, d.removeSlot()
	}

	var id int16
	if effectID != nil {
		custom := [3]int16{int16(*effectID), 0, 0}
		eff := periodicEffect{
			Header: effectHeader{
				Type: ffPeriodic,
				ID:   -1,
				// The driver computes its own predicted duration for a
				// predefined effect; timeoutMs does not apply here.
			},
			Waveform:   ffCustom,
			Magnitude:  d.currentMagnitude,
			CustomLen:  uint32(len(custom)),
			CustomData: uintptr(unsafe.Pointer(&custom[0])),
		}
		if err := d.raw.ioctl(evSFF, unsafe.Pointer(&eff)); err != nil {
			return 0, fmt.Errorf("ffdev: EVIOCSFF periodic: %w", err)
		}
		id = eff.Header.ID
		// The driver echoes the predicted duration into custom words 1
		// and 2 as (high*1000 + low) once the effect is uploaded.
		playLengthMs = int32(custom[1])*1000 + int32(custom[2])
	} else {
		eff := constantEffect{
			Header: effectHeader{
				Type:         ffConstant,
				ID:           -1,
				ReplayLength: uint16(timeoutMs),
			},
			Level: d.currentMagnitude,
		}
		if err := d.raw.ioctl(evSFF, unsafe.Pointer(&eff)); err != nil {
			return 0, fmt.Errorf("ffdev: EVIOCSFF constant: %w", err)
		}
		id = eff.Header.ID
	}

	slot := id
	d.currentEffectSlot = &slot
	if err := d.raw.write(inputEvent{Type: evFF, Code: uint16(id), Value: 1}); err != nil {
		_ = d.removeSlot()
		return 0, fmt.Errorf("ffdev: play write: %w", err)
	}
	return playLengthMs, nil
}

// SetGain maps a client-visible 0..255 amplitude linearly into the
// [LightMag, StrongMag] band, stores it, and writes an FF_GAIN event.
func (d *Device) SetGain(amplitude uint8) error {
	mag := LightMag + int32(amplitude)*(StrongMag-LightMag)/255
	d.currentMagnitude = int16(mag)
	d.currentAmplitude = amplitude
	if err := d.raw.write(inputEvent{Type: evFF, Code: ffGain, Value: mag}); err != nil {
		return fmt.Errorf("ffdev: gain write: %w", err)
	}
	return nil
}

// Off stops any playing effect. Equivalent to UploadAndStart(nil, 0).
func (d *Device) Off() error {
	_, err := d.UploadAndStart(nil, 0)
	return err
}

// SetMagnitude sets current_magnitude directly, used by the dispatcher when
// a Strength or a Primitive amplitude picks the band without going through
// SetGain's linear amplitude mapping.
func (d *Device) SetMagnitude(mag int16) { d.currentMagnitude = mag }

// CurrentAmplitude returns the last amplitude passed to SetGain.
func (d *Device) CurrentAmplitude() uint8 { return d.currentAmplitude }

// CurrentMagnitude returns the last magnitude written to the driver.
func (d *Device) CurrentMagnitude() int16 { return d.currentMagnitude }

// HasSlot reports whether an effect is currently uploaded (I1 in
// SPEC_FULL.md §3: current_effect_slot is None iff the motor is quiescent).
func (d *Device) HasSlot() bool { return d.currentEffectSlot != nil }

// Calibrate reads the driver's calibration blob via ioctl passthrough.
func (d *Device) Calibrate() ([CalibValueMax]byte, error) {
	var buf [CalibValueMax]byte
	if err := d.raw.ioctl(evGCalib, unsafe.Pointer(&buf[0])); err != nil {
		return buf, fmt.Errorf("ffdev: calibration read: %w", err)
	}
	return buf, nil
}

// SetCalibValue writes a calibration blob via ioctl passthrough.
func (d *Device) SetCalibValue(data [CalibValueMax]byte) error {
	if err := d.raw.ioctl(evSCalib, unsafe.Pointer(&data[0])); err != nil {
		return fmt.Errorf("ffdev: calibration write: %w", err)
	}
	return nil
}

// Close releases the underlying device file.
func (d *Device) Close() error { return d.raw.close() }
