package ffdev

import "unsafe"

// Linux ioctl request-number encoding (include/uapi/asm-generic/ioctl.h).
// Computed rather than hardcoded because the size term depends on
// sizeof(struct ff_effect) on the target's word size.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr uintptr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func iow(typ, nr byte, size uintptr) uintptr {
	return ioc(iocWrite, uintptr(typ), uintptr(nr), size)
}

func ior(typ, nr byte, size uintptr) uintptr {
	return ioc(iocRead, uintptr(typ), uintptr(nr), size)
}

// Event device ioctls (linux/input.h). 'E' == 0x45.
var (
	evGBit    = func(ev uintptr, size uintptr) uintptr { return ioc(iocRead, 'E', 0x20+ev, size) }
	evSFF     = iow('E', 0x80, unsafe.Sizeof(periodicEffect{}))
	evRMFF    = iow('E', 0x81, unsafe.Sizeof(int32(0)))
	evGEffect = ior('E', 0x84, unsafe.Sizeof(int32(0)))
	evGCalib  = ior('E', 0x90, CalibValueMax)
	evSCalib  = iow('E', 0x91, CalibValueMax)
)

// Event and effect type constants (linux/input-event-codes.h).
const (
	evFF  = 0x15
	evSyn = 0x00

	ffRumble   = 0x50
	ffPeriodic = 0x51
	ffConstant = 0x52
	ffCustom   = 0x5d
	ffGain     = 0x60
	ffMax      = 0x7f
)

// Capability bitmask bits reported to clients via GetCapabilities. These are
// this daemon's own bit assignment, not a kernel ABI.
const (
	CapAmplitudeControl = 1 << 0
	CapPerformCallback  = 1 << 1
	CapComposeEffects   = 1 << 2
)

// CalibValueMax bounds the raw calibration blob. See DESIGN.md: not given a
// numeric definition in any header reachable from this module's sources.
const CalibValueMax = 32

// effectHeader mirrors the fixed prefix of struct ff_effect.
type effectHeader struct {
	Type            uint16
	ID              int16
	Direction       uint16
	TriggerButton   uint16
	TriggerInterval uint16
	ReplayLength    uint16
	ReplayDelay     uint16
}

// constantEffect mirrors struct ff_constant_effect embedded in the
// ff_effect union, envelope fields zeroed (this adapter never ramps).
type constantEffect struct {
	Header  effectHeader
	Level   int16
	_       [8]byte // ff_envelope, unused
}

// periodicEffect mirrors struct ff_periodic_effect. CustomData points at a
// caller-owned []int16 backing the "custom" waveform payload used to smuggle
// a predefined effect id + duration through the driver, per the upload
// convention this adapter follows (see Device.UploadAndStart).
type periodicEffect struct {
	Header     effectHeader
	Waveform   uint16
	Period     uint16
	Magnitude  int16
	Offset     int16
	Phase      uint16
	_          [8]byte // ff_envelope, unused
	CustomLen  uint32
	CustomData uintptr
}

// inputEvent mirrors struct input_event's tail (time fields elided; the
// kernel fills them in and userspace writes are not required to set them
// for EV_FF play/gain events).
type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}
