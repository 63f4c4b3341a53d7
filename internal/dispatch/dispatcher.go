// Package dispatch translates a decoded wire.Command into calls on the FF
// device adapter and the playback engine, enforcing the preemption
// protocol and validation rules in SPEC_FULL.md §4.4.
package dispatch

import (
	"errors"
	"syscall"

	"vibratord/internal/ffdev"
	"vibratord/internal/intensity"
	"vibratord/internal/playback"
	"vibratord/internal/strength"
	"vibratord/internal/wire"
)

// Dispatcher owns the single FF device, the waveform player and the
// interval timer. It must only be called from the event-loop goroutine —
// it does not lock against itself, only against the playback worker via
// Player/Interval's own synchronization.
type Dispatcher struct {
	dev      *ffdev.Device
	player   *playback.Player
	interval *playback.Interval
	store    intensity.Store

	compositionEnabled bool // see DESIGN.md: Composition variant deferred
}

// New builds a Dispatcher around an already-open, already-probed device.
func New(dev *ffdev.Device, store intensity.Store) *Dispatcher {
	return &Dispatcher{
		dev:      dev,
		player:   playback.NewPlayer(),
		interval: playback.NewInterval(),
		store:    store,
	}
}

// LoadPersistedIntensity is the bootstrap step that seeds the device's
// intensity from the persistent store before the event loop starts
// serving requests.
func (d *Dispatcher) LoadPersistedIntensity() error {
	v, err := d.store.Load()
	if err != nil {
		v = intensity.Default
	}
	d.dev.SetIntensity(v)
	return err
}

// Dispatch routes cmd to its handler and returns the fully-populated reply.
func (d *Dispatcher) Dispatch(cmd wire.Command) wire.Reply {
	switch cmd.Type {
	case wire.Waveform:
		return d.handleWaveform(cmd)
	case wire.Interval:
		return d.handleInterval(cmd)
	case wire.PredefinedEffect:
		return d.handlePredefinedEffect(cmd)
	case wire.Primitive:
		return d.handlePrimitive(cmd)
	case wire.Start:
		return d.handleStart(cmd)
	case wire.Stop:
		return d.handleStop()
	case wire.SetAmplitude:
		return d.handleSetAmplitude(cmd)
	case wire.SetIntensity:
		return d.handleSetIntensity(cmd)
	case wire.GetIntensity:
		return d.handleGetIntensity()
	case wire.GetCapabilities:
		return d.handleGetCapabilities()
	case wire.Calibrate:
		return d.handleCalibrate()
	case wire.SetCalibValue:
		return d.handleSetCalibValue(cmd)
	case wire.Composition:
		return wire.Reply{Result: wire.ENOTSUP}
	default:
		return wire.Reply{Result: wire.EINVAL}
	}
}

func (d *Dispatcher) handleWaveform(cmd wire.Command) wire.Reply {
	if cmd.Repeat < -1 || int(cmd.Repeat) >= int(cmd.Length) || cmd.Length == 0 || cmd.Length > 24 {
		return wire.Reply{Result: wire.EINVAL}
	}
	if !strength.ShouldVibrate(d.dev.Intensity()) {
		return wire.Reply{Result: wire.ENOTSUP}
	}

	repeat := cmd.Repeat
	if !strength.ShouldRepeat(repeat, cmd.Timings, cmd.Length) {
		repeat = -1
	}
	wave := playback.Wave{
		Timings:    cmd.Timings,
		Amplitudes: cmd.Amplitudes,
		Length:     cmd.Length,
		Repeat:     repeat,
	}

	d.player.PreemptForWaveform()
	d.player.Play(d.dev, wave, d.dev.Intensity())
	return wire.Reply{Result: wire.OK}
}

func (d *Dispatcher) handleInterval(cmd wire.Command) wire.Reply {
	duration := int32(cmd.Timings[0])
	interval := int32(cmd.Timings[1])
	if duration <= 0 || interval < 0 || cmd.Count < 0 {
		return wire.Reply{Result: wire.EINVAL}
	}

	d.player.PreemptNonWaveform()
	d.interval.Start(d.dev, duration, interval, cmd.Count)
	return wire.Reply{Result: wire.OK}
}

func (d *Dispatcher) handlePredefinedEffect(cmd wire.Command) wire.Reply {
	if !strength.ShouldVibrate(d.dev.Intensity()) {
		return wire.Reply{Result: wire.ENOTSUP}
	}
	if !cmd.Strength.Valid() {
		return wire.Reply{Result: wire.EINVAL}
	}
	d.player.PreemptNonWaveform()
	d.dev.SetMagnitude(strength.ToMagnitude(cmd.Strength, d.dev.CurrentMagnitude()))

	effectID := cmd.EffectID
	playLen, err := d.dev.UploadAndStart(&effectID, 0)
	if err != nil {
		return deviceErrorReply(err)
	}
	return wire.Reply{Result: wire.OK, EffectID: cmd.EffectID, PlayLengthMs: playLen}
}

func (d *Dispatcher) handlePrimitive(cmd wire.Command) wire.Reply {
	if !strength.ShouldVibrate(d.dev.Intensity()) {
		return wire.Reply{Result: wire.ENOTSUP}
	}
	if cmd.Amplitude < 0.0 || cmd.Amplitude > 1.0 {
		return wire.Reply{Result: wire.EINVAL}
	}
	d.player.PreemptNonWaveform()
	d.dev.SetMagnitude(strength.AmplitudeToMagnitude(uint8(cmd.Amplitude * 255)))

	effectID := cmd.EffectID
	playLen, err := d.dev.UploadAndStart(&effectID, 0)
	if err != nil {
		return deviceErrorReply(err)
	}
	return wire.Reply{Result: wire.OK, EffectID: cmd.EffectID, PlayLengthMs: playLen}
}

func (d *Dispatcher) handleStart(cmd wire.Command) wire.Reply {
	if !strength.ShouldVibrate(d.dev.Intensity()) {
		return wire.Reply{Result: wire.ENOTSUP}
	}
	// Order matters: the driver may reset gain on enable, so enable first
	// then set gain.
	if _, err := d.dev.UploadAndStart(nil, cmd.TimeoutMs); err != nil {
		return deviceErrorReply(err)
	}
	if err := d.dev.SetGain(strength.Scale(d.dev.CurrentAmplitude(), d.dev.Intensity())); err != nil {
		return deviceErrorReply(err)
	}
	return wire.Reply{Result: wire.OK}
}

func (d *Dispatcher) handleStop() wire.Reply {
	d.player.PreemptNonWaveform()
	d.interval.Stop()
	if err := d.dev.Off(); err != nil {
		return deviceErrorReply(err)
	}
	return wire.Reply{Result: wire.OK}
}

func (d *Dispatcher) handleSetAmplitude(cmd wire.Command) wire.Reply {
	if err := d.dev.SetGain(cmd.RawAmplitude); err != nil {
		return deviceErrorReply(err)
	}
	return wire.Reply{Result: wire.OK}
}

func (d *Dispatcher) handleSetIntensity(cmd wire.Command) wire.Reply {
	if !cmd.Intensity.Valid() {
		return wire.Reply{Result: wire.EINVAL}
	}
	d.dev.SetIntensity(cmd.Intensity)
	if err := d.store.Save(cmd.Intensity); err != nil {
		return wire.Reply{Result: wire.EIO}
	}
	return wire.Reply{Result: wire.OK}
}

func (d *Dispatcher) handleGetIntensity() wire.Reply {
	v, err := d.store.Load()
	if err != nil {
		v = intensity.Default
	}
	d.dev.SetIntensity(v)
	return wire.Reply{Result: wire.OK, Intensity: v}
}

func (d *Dispatcher) handleGetCapabilities() wire.Reply {
	return wire.Reply{Result: wire.OK, Capabilities: d.dev.Capabilities()}
}

func (d *Dispatcher) handleCalibrate() wire.Reply {
	calib, err := d.dev.Calibrate()
	if err != nil {
		return deviceErrorReply(err)
	}
	return wire.Reply{Result: wire.OK, Calib: calib}
}

func (d *Dispatcher) handleSetCalibValue(cmd wire.Command) wire.Reply {
	if err := d.dev.SetCalibValue(cmd.Calib); err != nil {
		return deviceErrorReply(err)
	}
	return wire.Reply{Result: wire.OK}
}

// deviceErrorReply surfaces an ioctl/write failure as a negated errno when
// the underlying error is a syscall.Errno, or a generic I/O status
// otherwise. The FF slot has already been invalidated by ffdev by the time
// this is called, so the next command starts clean.
func deviceErrorReply(err error) wire.Reply {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return wire.Reply{Result: wire.StatusFromErrno(int(errno))}
	}
	return wire.Reply{Result: wire.EIO}
}
