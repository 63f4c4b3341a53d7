// Package wire implements the fixed-layout binary frame shared between the
// vibrator daemon and its clients, verbatim across the local UNIX socket and
// the cross-core transport. Every field is encoded little-endian and
// field-by-field: peers on either side of the cross-core link are not
// guaranteed to share a struct layout, so nothing here relies on the memory
// image of a Go struct.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CommandType is the wire tag identifying which union member a frame carries.
type CommandType uint8

const (
	Waveform CommandType = 1 + iota
	Interval
	PredefinedEffect
	Primitive
	Start
	Stop
	SetAmplitude
	SetIntensity
	GetIntensity
	GetCapabilities
	Calibrate
	SetCalibValue
	Composition
)

func (t CommandType) String() string {
	switch t {
	case Waveform:
		return "Waveform"
	case Interval:
		return "Interval"
	case PredefinedEffect:
		return "PredefinedEffect"
	case Primitive:
		return "Primitive"
	case Start:
		return "Start"
	case Stop:
		return "Stop"
	case SetAmplitude:
		return "SetAmplitude"
	case SetIntensity:
		return "SetIntensity"
	case GetIntensity:
		return "GetIntensity"
	case GetCapabilities:
		return "GetCapabilities"
	case Calibrate:
		return "Calibrate"
	case SetCalibValue:
		return "SetCalibValue"
	case Composition:
		return "Composition"
	default:
		return fmt.Sprintf("CommandType(%d)", uint8(t))
	}
}

// Intensity is the user-level master volume for haptics.
type Intensity uint8

const (
	IntensityOff Intensity = iota
	IntensityLow
	IntensityMedium
	IntensityHigh
)

func (i Intensity) Valid() bool { return i <= IntensityHigh }

// Strength selects the fixed magnitude band a PredefinedEffect plays at.
type Strength uint8

const (
	StrengthLight Strength = iota
	StrengthMedium
	StrengthStrong
	StrengthDefault
)

func (s Strength) Valid() bool { return s <= StrengthDefault }

// CalibValueMax bounds the raw calibration blob exchanged by Calibrate and
// SetCalibValue. The driver ABI this was distilled from never states the
// number in a header reachable from here; 32 bytes is a documented
// assumption (see DESIGN.md) covering a small per-axis table.
const CalibValueMax = 32

// Frame sizes, per the wire layout in SPEC_FULL.md §6.
const (
	HeaderSize         = 8
	ResultSize         = 4
	waveformFieldsSize = 1 + 1 + 2 + 24 + 24*4 // repeat, length, count, amplitudes, timings
	effectPayloadSize  = 4 + 4 + 4             // effect_id, play_length, es|amplitude
)

// RequestLen returns the minimum number of bytes a request of the given
// type must carry, header included.
func RequestLen(t CommandType) int {
	switch t {
	case Waveform, Interval, Composition:
		return HeaderSize + waveformFieldsSize
	case PredefinedEffect, Primitive:
		return HeaderSize + effectPayloadSize
	case Start:
		return HeaderSize + 4
	case Stop:
		return HeaderSize
	case SetAmplitude:
		return HeaderSize + 1
	case SetIntensity:
		return HeaderSize + 1
	case GetIntensity, GetCapabilities:
		return HeaderSize
	case Calibrate:
		return HeaderSize
	case SetCalibValue:
		return HeaderSize + CalibValueMax
	default:
		return HeaderSize
	}
}

// ResponseLen returns the exact number of bytes a reply to the given type
// must be. A response of ResultSize carries only the bare int32 result; any
// larger response carries a full header plus payload.
func ResponseLen(t CommandType) int {
	switch t {
	case PredefinedEffect, Primitive:
		return HeaderSize + effectPayloadSize
	case GetIntensity, GetCapabilities:
		return HeaderSize + 4
	case Calibrate:
		return HeaderSize + CalibValueMax
	default:
		return ResultSize
	}
}

// Status is a negative-errno style result code. It implements error so
// dispatcher code can return it directly and transport code can serialize
// the same value without a second translation table.
type Status int32

const (
	OK        Status = 0
	EINVAL    Status = -22
	ENOTSUP   Status = -95
	ENODEV    Status = -19
	EIO       Status = -5
	EOVERFLOW Status = -75
)

func (s Status) Error() string {
	switch s {
	case EINVAL:
		return "invalid argument"
	case ENOTSUP:
		return "not supported"
	case ENODEV:
		return "no device"
	case EIO:
		return "device I/O error"
	case EOVERFLOW:
		return "response too large"
	default:
		return fmt.Sprintf("status %d", int32(s))
	}
}

// StatusFromErrno negates a positive errno-like value into a Status,
// leaving already-negative or zero values untouched.
func StatusFromErrno(errno int) Status {
	if errno > 0 {
		return Status(-errno)
	}
	return Status(errno)
}

// Command is the decoded request: every field a tagged variant might need,
// projected onto one struct the way the reference protocol's own
// vibrator_t union is a single C struct with a discriminant tag.
type Command struct {
	Type CommandType

	// Waveform
	Timings    [24]uint32
	Amplitudes [24]uint8
	Length     uint8
	Repeat     int8

	// Interval reuses Timings[0]=duration_ms, Timings[1]=interval_ms.
	Count int16

	// PredefinedEffect / Primitive
	EffectID  int32
	Strength  Strength
	Amplitude float32

	// Start
	TimeoutMs uint32

	// SetAmplitude
	RawAmplitude uint8

	// SetIntensity
	Intensity Intensity

	// SetCalibValue
	Calib [CalibValueMax]byte
}

// Header is the fixed 8-byte prefix common to every frame.
type Header struct {
	Result      int32
	Type        CommandType
	RequestLen  uint8
	ResponseLen uint8
}

func decodeHeader(buf []byte) Header {
	return Header{
		Result:      int32(binary.LittleEndian.Uint32(buf[0:4])),
		Type:        CommandType(buf[4]),
		RequestLen:  buf[5],
		ResponseLen: buf[6],
		// buf[7] is _pad
	}
}

func encodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Result))
	buf[4] = byte(h.Type)
	buf[5] = h.RequestLen
	buf[6] = h.ResponseLen
	buf[7] = 0
}

// DecodeRequest parses a client request. buf must be at least
// RequestLen(header.Type) bytes; the caller is responsible for enforcing
// that length contract before calling this.
func DecodeRequest(buf []byte) (Header, Command, error) {
	if len(buf) < HeaderSize {
		return Header{}, Command{}, fmt.Errorf("wire: frame shorter than header: %d bytes", len(buf))
	}
	hdr := decodeHeader(buf)
	need := RequestLen(hdr.Type)
	if len(buf) < need {
		return hdr, Command{}, fmt.Errorf("wire: %s request needs %d bytes, got %d", hdr.Type, need, len(buf))
	}

	var cmd Command
	cmd.Type = hdr.Type
	p := buf[HeaderSize:]

	switch hdr.Type {
	case Waveform, Interval, Composition:
		cmd.Repeat = int8(p[0])
		cmd.Length = p[1]
		cmd.Count = int16(binary.LittleEndian.Uint16(p[2:4]))
		copy(cmd.Amplitudes[:], p[4:28])
		for i := 0; i < 24; i++ {
			cmd.Timings[i] = binary.LittleEndian.Uint32(p[28+4*i : 32+4*i])
		}
	case PredefinedEffect:
		cmd.EffectID = int32(binary.LittleEndian.Uint32(p[0:4]))
		cmd.Strength = Strength(p[8])
	case Primitive:
		cmd.EffectID = int32(binary.LittleEndian.Uint32(p[0:4]))
		bits := binary.LittleEndian.Uint32(p[8:12])
		cmd.Amplitude = math.Float32frombits(bits)
	case Start:
		cmd.TimeoutMs = binary.LittleEndian.Uint32(p[0:4])
	case SetAmplitude:
		cmd.RawAmplitude = p[0]
	case SetIntensity:
		cmd.Intensity = Intensity(p[0])
	case SetCalibValue:
		copy(cmd.Calib[:], p[0:CalibValueMax])
	case Stop, GetIntensity, GetCapabilities, Calibrate:
		// no payload
	}
	return hdr, cmd, nil
}

// Reply is what the dispatcher hands back to the transport for encoding.
type Reply struct {
	Result       Status
	PlayLengthMs int32
	EffectID     int32
	Intensity    Intensity
	Capabilities int32
	Calib        [CalibValueMax]byte
}

// EncodeReply serializes r for a reply to a request of type t, producing
// exactly ResponseLen(t) bytes.
func EncodeReply(t CommandType, r Reply) []byte {
	n := ResponseLen(t)
	buf := make([]byte, n)
	if n == ResultSize {
		binary.LittleEndian.PutUint32(buf, uint32(int32(r.Result)))
		return buf
	}

	encodeHeader(buf, Header{Result: int32(r.Result), Type: t, ResponseLen: uint8(n)})
	p := buf[HeaderSize:]
	switch t {
	case PredefinedEffect, Primitive:
		binary.LittleEndian.PutUint32(p[0:4], uint32(r.EffectID))
		binary.LittleEndian.PutUint32(p[4:8], uint32(r.PlayLengthMs))
	case GetIntensity:
		binary.LittleEndian.PutUint32(p[0:4], uint32(r.Intensity))
	case GetCapabilities:
		binary.LittleEndian.PutUint32(p[0:4], uint32(r.Capabilities))
	case Calibrate:
		copy(p[0:CalibValueMax], r.Calib[:])
	}
	return buf
}

// EncodeRequest serializes cmd into a request frame for the given type,
// used by clients (vibratorctl) rather than the daemon itself.
func EncodeRequest(t CommandType, cmd Command) []byte {
	n := RequestLen(t)
	buf := make([]byte, n)
	encodeHeader(buf, Header{Type: t, RequestLen: uint8(n), ResponseLen: uint8(ResponseLen(t))})
	p := buf[HeaderSize:]

	switch t {
	case Waveform, Interval, Composition:
		p[0] = byte(cmd.Repeat)
		p[1] = cmd.Length
		binary.LittleEndian.PutUint16(p[2:4], uint16(cmd.Count))
		copy(p[4:28], cmd.Amplitudes[:])
		for i := 0; i < 24; i++ {
			binary.LittleEndian.PutUint32(p[28+4*i:32+4*i], cmd.Timings[i])
		}
	case PredefinedEffect:
		binary.LittleEndian.PutUint32(p[0:4], uint32(cmd.EffectID))
		p[8] = byte(cmd.Strength)
	case Primitive:
		binary.LittleEndian.PutUint32(p[0:4], uint32(cmd.EffectID))
		binary.LittleEndian.PutUint32(p[8:12], math.Float32bits(cmd.Amplitude))
	case Start:
		binary.LittleEndian.PutUint32(p[0:4], cmd.TimeoutMs)
	case SetAmplitude:
		p[0] = cmd.RawAmplitude
	case SetIntensity:
		p[0] = byte(cmd.Intensity)
	case SetCalibValue:
		copy(p[0:CalibValueMax], cmd.Calib[:])
	}
	return buf
}

// DecodeReply parses a reply previously produced by EncodeReply, given the
// command type the caller sent the request for.
func DecodeReply(t CommandType, buf []byte) (Reply, error) {
	n := ResponseLen(t)
	if len(buf) < n {
		return Reply{}, fmt.Errorf("wire: %s reply needs %d bytes, got %d", t, n, len(buf))
	}
	if n == ResultSize {
		return Reply{Result: Status(int32(binary.LittleEndian.Uint32(buf)))}, nil
	}
	hdr := decodeHeader(buf)
	r := Reply{Result: Status(hdr.Result)}
	p := buf[HeaderSize:]
	switch t {
	case PredefinedEffect, Primitive:
		r.EffectID = int32(binary.LittleEndian.Uint32(p[0:4]))
		r.PlayLengthMs = int32(binary.LittleEndian.Uint32(p[4:8]))
	case GetIntensity:
		r.Intensity = Intensity(binary.LittleEndian.Uint32(p[0:4]))
	case GetCapabilities:
		r.Capabilities = int32(binary.LittleEndian.Uint32(p[0:4]))
	case Calibrate:
		copy(r.Calib[:], p[0:CalibValueMax])
	}
	return r, nil
}
